package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
)

const (
	commandTimeout  = 2 * time.Minute
	registerTimeout = 10 * time.Second
	closeTimeout    = 10 * time.Second
)

// Bot connects [Actions] to the Discord gateway.
type Bot struct {
	cfg     shared.DiscordConfig
	actions *Actions
	logger  *log.Logger
	ctx     context.Context
	client  *bot.Client
}

func New(cfg shared.DiscordConfig, actions *Actions, logger *log.Logger) *Bot {
	return &Bot{
		cfg:     cfg,
		actions: actions,
		logger:  shared.WithLogger(logger, "module", "discord"),
		ctx:     context.Background(),
	}
}

// Run connects, registers commands and serves interactions until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.Token == "" {
		return fmt.Errorf("%w: discord.token", shared.ErrMissingConfig)
	}
	b.ctx = ctx

	client, err := disgo.New(b.cfg.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMembers, gateway.IntentGuildVoiceStates),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagMembers, cache.FlagRoles),
		),
		bot.WithEventListenerFunc(b.onCommand),
		bot.WithEventListenerFunc(b.onComponent),
		bot.WithEventListenerFunc(b.onReady),
		bot.WithLogger(slog.New(b.logger)),
	)
	if err != nil {
		return fmt.Errorf("failed to create discord client: %w", err)
	}
	b.client = client

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	if err := b.register(); err != nil {
		b.logger.Error("failed to register commands", "error", err)
	}

	<-ctx.Done()
	b.logger.Info("disconnecting")

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	client.Close(closeCtx)
	return nil
}

// register installs the commands in the configured guild, or globally when none is set.
func (b *Bot) register() error {
	cmds := Commands()
	if b.cfg.GuildID == "" {
		created, err := b.client.Rest.SetGlobalCommands(b.client.ApplicationID, cmds)
		if err != nil {
			return err
		}
		b.logger.Info("registered global commands", "count", len(created))
		return nil
	}

	guildID, err := snowflake.Parse(b.cfg.GuildID)
	if err != nil {
		return fmt.Errorf("%w: discord.guild_id: %v", shared.ErrInvalidConfig, err)
	}
	created, err := b.client.Rest.SetGuildCommands(b.client.ApplicationID, guildID, cmds)
	if err != nil {
		return err
	}
	b.logger.Info("registered guild commands", "guild", guildID, "count", len(created))
	return nil
}

func (b *Bot) onReady(event *events.Ready) {
	b.logger.Info("ready", "user", event.User.Username, "id", event.User.ID)
}

// spawn runs f off the gateway goroutine and recovers its panics.
func (b *Bot) spawn(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("interaction handler panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		f()
	}()
}

// interaction is what both command and component events expose about their invoker.
type interaction interface {
	GuildID() *snowflake.ID
	User() discord.User
	Member() *discord.ResolvedMember
	Locale() discord.Locale
	Client() *bot.Client
}

func (b *Bot) invocation(i interaction) (Invocation, bool) {
	guildID := i.GuildID()
	if guildID == nil {
		return Invocation{}, false
	}
	user := i.User()
	inv := Invocation{
		Guild: *guildID,
		User:  user.ID,
		Profile: models.DiscordProfile{
			ID:            user.ID.String(),
			Username:      user.Username,
			Discriminator: user.Discriminator,
			GuildID:       guildID.String(),
			Locale:        string(i.Locale()),
		},
	}
	if m := i.Member(); m != nil {
		if m.Nick != nil {
			inv.Profile.Nickname = *m.Nick
		}
		for _, id := range m.RoleIDs {
			if role, ok := i.Client().Caches.Role(*guildID, id); ok {
				inv.Roles = append(inv.Roles, role.Name)
			}
		}
	}
	return inv, true
}

func buttonStyle(s Style) discord.ButtonStyle {
	switch s {
	case Primary:
		return discord.ButtonStylePrimary
	case Success:
		return discord.ButtonStyleSuccess
	case Danger:
		return discord.ButtonStyleDanger
	default:
		return discord.ButtonStyleSecondary
	}
}

// container renders a reply as a components V2 container.
func container(r Reply) discord.ContainerComponent {
	content := r.Content
	if strings.TrimSpace(content) == "" {
		content = "Done."
	}
	subs := []discord.ContainerSubComponent{discord.NewTextDisplay(content)}
	for _, row := range r.Rows {
		var buttons []discord.InteractiveComponent
		for _, btn := range row {
			c := discord.NewButton(buttonStyle(btn.Style), btn.Label, btn.ID, "", 0)
			if btn.Disabled {
				c = c.WithDisabled(true)
			}
			buttons = append(buttons, c)
		}
		subs = append(subs, discord.NewActionRow(buttons...))
	}
	return discord.NewContainer(subs...)
}

func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, r Reply) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		SetEphemeral(r.Ephemeral).
		AddComponents(container(r)).
		Build())
	if err != nil {
		b.logger.Warn("failed to respond", "command", event.Data.CommandName(), "error", err)
	}
}

// deferred acknowledges the command, runs f and edits the acknowledgement with its reply.
func (b *Bot) deferred(event *events.ApplicationCommandInteractionCreate, ephemeral bool, f func(ctx context.Context) Reply) {
	if err := event.DeferCreateMessage(ephemeral); err != nil {
		b.logger.Warn("failed to defer", "command", event.Data.CommandName(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	r := f(ctx)

	_, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetIsComponentsV2(true).
			SetComponents(container(r)).
			Build())
	if err != nil {
		b.logger.Warn("failed to update response", "command", event.Data.CommandName(), "error", err)
	}
}

func (b *Bot) onCommand(event *events.ApplicationCommandInteractionCreate) {
	b.spawn(func() { b.command(event) })
}

func (b *Bot) command(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	inv, ok := b.invocation(event)
	if !ok {
		b.respond(event, ephemeral("This command can only be used in a server."))
		return
	}

	b.logger.Debug("command", "name", data.CommandName(), "user", inv.Profile.Username, "guild", inv.Guild)
	a := b.actions
	sub := ""
	if data.SubCommandName != nil {
		sub = *data.SubCommandName
	}

	switch data.CommandName() {
	case "play":
		query, _ := data.OptString("query")
		next, _ := data.OptBool("next")
		b.deferred(event, false, func(ctx context.Context) Reply {
			a.Register(ctx, inv)
			return a.Play(ctx, inv, query, next)
		})
	case "queue":
		if sub == "show" {
			page, _ := data.OptInt("page")
			b.respond(event, a.Queue(inv, page))
			return
		}
		index, _ := data.OptInt("index")
		b.respond(event, a.EditQueue(inv, sub, index))
	case "media":
		b.respond(event, a.Media(inv))
	case "playlist":
		var o PlaylistOpts
		o.Query, _ = data.OptString("query")
		o.Name, _ = data.OptString("name")
		o.Index, _ = data.OptInt("index")
		o.To, _ = data.OptInt("to")
		o.Page, _ = data.OptInt("page")
		o.Next, _ = data.OptBool("next")
		b.deferred(event, sub != "play", func(ctx context.Context) Reply {
			a.Register(ctx, inv)
			return a.Playlist(ctx, inv, sub, o)
		})
	case "stash":
		b.deferred(event, sub == "save", func(ctx context.Context) Reply {
			a.Register(ctx, inv)
			return a.Stash(ctx, inv, sub)
		})
	case "link":
		service, _ := data.OptString("service")
		b.deferred(event, true, func(ctx context.Context) Reply {
			a.Register(ctx, inv)
			return a.Link(ctx, inv, service)
		})
	case "admin":
		target, _ := data.OptString("name")
		if sub == "removetrack" {
			target, _ = data.OptString("id")
		}
		b.deferred(event, true, func(ctx context.Context) Reply {
			return a.Admin(ctx, inv, sub, target)
		})
	default:
		b.respond(event, ephemeral("Unknown command."))
	}
}

func (b *Bot) onComponent(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()
	if !strings.HasPrefix(customID, "queue:") && !strings.HasPrefix(customID, "media:") {
		return
	}
	b.spawn(func() {
		inv, ok := b.invocation(event)
		if !ok {
			return
		}
		r := b.actions.Button(inv, customID)

		var err error
		if r.Ephemeral {
			err = event.CreateMessage(discord.NewMessageCreateBuilder().
				SetIsComponentsV2(true).
				SetEphemeral(true).
				AddComponents(container(r)).
				Build())
		} else {
			err = event.UpdateMessage(discord.NewMessageUpdateBuilder().
				SetIsComponentsV2(true).
				SetComponents(container(r)).
				Build())
		}
		if err != nil {
			b.logger.Warn("failed to update message", "button", customID, "error", err)
		}
	})
}
