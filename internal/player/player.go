// Package player holds the per-guild playback queues.
//
// A [Queue] is a state machine, Empty → Playing ⇄ Paused → Empty, with looping and shuffle
// as modifiers. Every transition that lands on a new current track reports a play to the
// [models.PlayLogger] without waiting for it.
//
// [Players] owns the queues of all guilds through a [sessions.Registry]; a decommissioned
// queue removes itself.
package player

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/sessions"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/disgoorg/snowflake/v2"
)

// Players maps guilds to their queues.
type Players struct {
	registry *sessions.Registry[*Queue]
	logger   *log.Logger
}

func NewPlayers(plays models.PlayLogger, logger *log.Logger) *Players {
	p := &Players{logger: shared.WithLogger(logger, "module", "players")}
	p.registry = sessions.NewRegistry(func(guild snowflake.ID) *Queue {
		q := NewQueue(guild, plays, logger)
		q.evict = func() { p.registry.Evict(guild) }
		p.logger.Debug("queue created", "guild", guild)
		return q
	})
	return p
}

// Get returns the guild's queue if one exists.
func (p *Players) Get(guild snowflake.ID) (*Queue, bool) {
	return p.registry.Get(guild)
}

// GetOrCreate returns the guild's queue, creating it on first playback.
func (p *Players) GetOrCreate(guild snowflake.ID) *Queue {
	q, _ := p.registry.GetOrCreate(guild)
	return q
}

// Len returns the number of live queues.
func (p *Players) Len() int {
	return p.registry.Len()
}

// DecommissionAll tears every queue down, for shutdown.
func (p *Players) DecommissionAll() {
	p.registry.Range(func(_ snowflake.ID, q *Queue) bool {
		q.Decommission()
		return true
	})
}
