package bot

import (
	"github.com/desertthunder/goose/internal/models"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/omit"
)

var guildOnly = []discord.InteractionContextType{discord.InteractionContextTypeGuild}

func queryOption(desc string) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{Name: "query", Description: desc, Required: true}
}

func indexOption(name, desc string, required bool) discord.ApplicationCommandOptionInt {
	minValue := 1
	return discord.ApplicationCommandOptionInt{Name: name, Description: desc, Required: required, MinValue: &minValue}
}

func pageOption() discord.ApplicationCommandOptionInt {
	return indexOption("page", "Page to show", false)
}

func nameOption() discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{Name: "name", Description: "Playlist name", Required: true}
}

func nextOption() discord.ApplicationCommandOptionBool {
	return discord.ApplicationCommandOptionBool{Name: "next", Description: "Play after the current track"}
}

const playDescription = "A search, a YouTube or Spotify link, a Subsonic album, or a saved playlist"

// Commands returns the application commands the bot registers.
func Commands() []discord.ApplicationCommandCreate {
	adminPerm := discord.PermissionAdministrator

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        "play",
			Description: "Queue tracks",
			Contexts:    guildOnly,
			Options: []discord.ApplicationCommandOption{
				queryOption(playDescription),
				nextOption(),
			},
		},
		discord.SlashCommandCreate{
			Name:        "queue",
			Description: "Show or edit the queue",
			Contexts:    guildOnly,
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "show",
					Description: "Show the queue",
					Options:     []discord.ApplicationCommandOption{pageOption()},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "jump",
					Description: "Play the track at a position",
					Options: []discord.ApplicationCommandOption{
						indexOption("index", "Position of the track", true),
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "remove",
					Description: "Remove a track from the queue",
					Options: []discord.ApplicationCommandOption{
						indexOption("index", "Position of the track", true),
					},
				},
				discord.ApplicationCommandOptionSubCommand{Name: "skip", Description: "Finish the current track"},
				discord.ApplicationCommandOptionSubCommand{Name: "empty", Description: "Empty the queue"},
			},
		},
		discord.SlashCommandCreate{
			Name:        "media",
			Description: "Show playback controls",
			Contexts:    guildOnly,
		},
		discord.SlashCommandCreate{
			Name:        "playlist",
			Description: "Edit your playlist workspace",
			Contexts:    guildOnly,
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "show",
					Description: "Show your workspace",
					Options:     []discord.ApplicationCommandOption{pageOption()},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "add",
					Description: "Add tracks to your workspace",
					Options: []discord.ApplicationCommandOption{
						queryOption(playDescription),
						indexOption("index", "Position to insert at", false),
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "remove",
					Description: "Remove a track from your workspace",
					Options: []discord.ApplicationCommandOption{
						indexOption("index", "Position of the track", true),
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "move",
					Description: "Move a track within your workspace",
					Options: []discord.ApplicationCommandOption{
						indexOption("index", "Position of the track", true),
						indexOption("to", "New position", true),
					},
				},
				discord.ApplicationCommandOptionSubCommand{Name: "empty", Description: "Empty your workspace"},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "save",
					Description: "Save your workspace as a playlist",
					Options:     []discord.ApplicationCommandOption{nameOption()},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "load",
					Description: "Load a playlist into your workspace",
					Options:     []discord.ApplicationCommandOption{nameOption()},
				},
				discord.ApplicationCommandOptionSubCommand{Name: "copy", Description: "Copy the queue into your workspace"},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "play",
					Description: "Queue your workspace",
					Options:     []discord.ApplicationCommandOption{nextOption()},
				},
				discord.ApplicationCommandOptionSubCommand{Name: "list", Description: "List saved playlists"},
			},
		},
		discord.SlashCommandCreate{
			Name:        "stash",
			Description: "Keep the queue for later",
			Contexts:    guildOnly,
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{Name: "save", Description: "Stash the queue"},
				discord.ApplicationCommandOptionSubCommand{Name: "load", Description: "Queue your stash"},
			},
		},
		discord.SlashCommandCreate{
			Name:        "link",
			Description: "Link a music account",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "service",
					Description: "Service to link",
					Required:    true,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Spotify", Value: models.ServiceSpotify},
						{Name: "Napster", Value: models.ServiceNapster},
						{Name: "Last.fm", Value: models.ServiceLastFM},
					},
				},
			},
		},
		discord.SlashCommandCreate{
			Name:                     "admin",
			Description:              "Library maintenance",
			DefaultMemberPermissions: omit.New(&adminPerm),
			Contexts:                 guildOnly,
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "removeplaylist",
					Description: "Delete a saved playlist",
					Options:     []discord.ApplicationCommandOption{nameOption()},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "removetrack",
					Description: "Delete a track from the library",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionString{Name: "id", Description: "YouTube ID", Required: true},
					},
				},
			},
		},
	}
}
