package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables this service owns. User accounts live in
// the account service's schema; games and stats reference user ids only.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS games (
			code                TEXT PRIMARY KEY,
			host_id             BIGINT NOT NULL,
			guest_id            BIGINT,
			board               JSONB NOT NULL,
			next_to_play        BIGINT,
			turn                INTEGER NOT NULL DEFAULT 0,
			winner_id           BIGINT,
			loser_id            BIGINT,
			host_bomb_used      BOOLEAN NOT NULL DEFAULT FALSE,
			guest_bomb_used     BOOLEAN NOT NULL DEFAULT FALSE,
			host_laser_used     BOOLEAN NOT NULL DEFAULT FALSE,
			guest_laser_used    BOOLEAN NOT NULL DEFAULT FALSE,
			host_bacteria_used  BOOLEAN NOT NULL DEFAULT FALSE,
			guest_bacteria_used BOOLEAN NOT NULL DEFAULT FALSE,
			status              TEXT NOT NULL DEFAULT 'in-progress',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS games_host_id_idx ON games (host_id)`,
		`CREATE INDEX IF NOT EXISTS games_guest_id_idx ON games (guest_id)`,
		`CREATE TABLE IF NOT EXISTS stats (
			user_id       BIGINT PRIMARY KEY,
			games_played  INTEGER NOT NULL DEFAULT 0,
			games_won     INTEGER NOT NULL DEFAULT 0,
			games_lost    INTEGER NOT NULL DEFAULT 0,
			pieces_placed INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}
