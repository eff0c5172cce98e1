package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/goose/internal/shared"
)

// LinkState is a pending account-link request. The state string travels through the
// provider's OAuth redirect and identifies the Discord user on the way back.
type LinkState struct {
	State     string
	DiscordID string
	Service   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LinkStateRepository stores single-use OAuth states.
type LinkStateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLinkStateRepository creates a new LinkStateRepository with the given database connection
func NewLinkStateRepository(db *sql.DB) *LinkStateRepository {
	return &LinkStateRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create issues a fresh state for discordID valid for ttl.
func (r *LinkStateRepository) Create(ctx context.Context, discordID, service string, ttl time.Duration) (*LinkState, error) {
	now := r.now()
	s := &LinkState{
		State:     shared.RandomHex(16),
		DiscordID: discordID,
		Service:   service,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	query := `
		INSERT INTO link_states (state, discord_id, service, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, s.State, s.DiscordID, s.Service, s.CreatedAt, s.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to create link state: %w", err)
	}
	return s, nil
}

// Consume marks state used and returns it. Unknown, expired, reused or mismatched states
// wrap [shared.ErrInvalidState].
func (r *LinkStateRepository) Consume(ctx context.Context, state, service string) (*LinkState, error) {
	query := `
		SELECT state, discord_id, service, created_at, expires_at
		FROM link_states
		WHERE state = ? AND used_at IS NULL
	`

	var s LinkState
	err := r.db.QueryRowContext(ctx, query, state).Scan(&s.State, &s.DiscordID, &s.Service, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: unknown state", shared.ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to read link state: %w", err)
	}

	now := r.now()
	if !now.Before(s.ExpiresAt) {
		return nil, fmt.Errorf("%w: state expired", shared.ErrInvalidState)
	}
	if s.Service != service {
		return nil, fmt.Errorf("%w: state issued for %s", shared.ErrInvalidState, s.Service)
	}

	notFound := fmt.Errorf("%w: state already used", shared.ErrInvalidState)
	if err := execOne(r.db, notFound, `UPDATE link_states SET used_at = ? WHERE state = ? AND used_at IS NULL`, now, state); err != nil {
		return nil, err
	}
	return &s, nil
}

// Prune deletes expired and used states and returns how many were removed.
func (r *LinkStateRepository) Prune(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM link_states WHERE used_at IS NOT NULL OR expires_at <= ?`, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to prune link states: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}
