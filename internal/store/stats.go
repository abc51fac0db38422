package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Stats are the durable per-user counters, updated as a side effect of moves.
type Stats struct {
	UserID       int64 `json:"userId"`
	GamesPlayed  int   `json:"gamesPlayed"`
	GamesWon     int   `json:"gamesWon"`
	GamesLost    int   `json:"gamesLost"`
	PiecesPlaced int   `json:"piecesPlaced"`
}

// StatsDelta is a set of counter increments applied atomically.
type StatsDelta struct {
	GamesPlayed  int
	GamesWon     int
	GamesLost    int
	PiecesPlaced int
}

var ErrStatsNotFound = errors.New("STATS_NOT_FOUND: No stats for user")

// StatsStore is the Stats Store collaborator.
type StatsStore interface {
	Increment(ctx context.Context, userID int64, delta StatsDelta) error
	GetStats(ctx context.Context, userID int64) (*Stats, error)
}

func (p *Postgres) Increment(ctx context.Context, userID int64, delta StatsDelta) error {
	query := `
		INSERT INTO stats (user_id, games_played, games_won, games_lost, pieces_placed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			games_played  = stats.games_played + EXCLUDED.games_played,
			games_won     = stats.games_won + EXCLUDED.games_won,
			games_lost    = stats.games_lost + EXCLUDED.games_lost,
			pieces_placed = stats.pieces_placed + EXCLUDED.pieces_placed
	`

	_, err := p.pool.Exec(ctx, query, userID,
		delta.GamesPlayed, delta.GamesWon, delta.GamesLost, delta.PiecesPlaced)
	if err != nil {
		return fmt.Errorf("failed to increment stats for user %d: %w", userID, err)
	}

	return nil
}

func (p *Postgres) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	query := `
		SELECT user_id, games_played, games_won, games_lost, pieces_placed
		FROM stats WHERE user_id = $1
	`

	var s Stats
	err := p.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.GamesPlayed, &s.GamesWon, &s.GamesLost, &s.PiecesPlaced)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for user %d: %w", userID, err)
	}

	return &s, nil
}
