package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/game"
)

type GameStatus string

const (
	StatusInProgress  GameStatus = "in-progress"
	StatusDraw        GameStatus = "draw"
	StatusInterrupted GameStatus = "interrupted"
)

// Game is the durable game entity, keyed by its 6-character code.
type Game struct {
	Code              string     `json:"code"`
	HostID            int64      `json:"hostId"`
	GuestID           *int64     `json:"guestId"`
	Board             game.Board `json:"board"`
	NextToPlay        *int64     `json:"nextToPlay"`
	Turn              int        `json:"turn"`
	WinnerID          *int64     `json:"winnerId"`
	LoserID           *int64     `json:"loserId"`
	HostBombUsed      bool       `json:"hostBombUsed"`
	GuestBombUsed     bool       `json:"guestBombUsed"`
	HostLaserUsed     bool       `json:"hostLaserUsed"`
	GuestLaserUsed    bool       `json:"guestLaserUsed"`
	HostBacteriaUsed  bool       `json:"hostBacteriaUsed"`
	GuestBacteriaUsed bool       `json:"guestBacteriaUsed"`
	Status            GameStatus `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Terminal reports whether the game has ended (win or draw).
func (g *Game) Terminal() bool {
	return g.NextToPlay == nil
}

func (g *Game) IsHost(userID int64) bool {
	return g.HostID == userID
}

func (g *Game) IsParticipant(userID int64) bool {
	if g.HostID == userID {
		return true
	}
	return g.GuestID != nil && *g.GuestID == userID
}

// ColorOf returns the assigned color for a participant. Host always plays
// red, guest yellow.
func (g *Game) ColorOf(userID int64) (game.Cell, bool) {
	if g.HostID == userID {
		return game.Red, true
	}
	if g.GuestID != nil && *g.GuestID == userID {
		return game.Yellow, true
	}
	return game.Empty, false
}

// OpponentOf returns the other participant's id, if both are present.
func (g *Game) OpponentOf(userID int64) *int64 {
	if g.HostID == userID {
		return g.GuestID
	}
	if g.GuestID != nil && *g.GuestID == userID {
		host := g.HostID
		return &host
	}
	return nil
}

// Per-player single-use ability flags, resolved by role.

func (g *Game) BombUsedBy(userID int64) bool {
	if g.IsHost(userID) {
		return g.HostBombUsed
	}
	return g.GuestBombUsed
}

func (g *Game) LaserUsedBy(userID int64) bool {
	if g.IsHost(userID) {
		return g.HostLaserUsed
	}
	return g.GuestLaserUsed
}

func (g *Game) BacteriaUsedBy(userID int64) bool {
	if g.IsHost(userID) {
		return g.HostBacteriaUsed
	}
	return g.GuestBacteriaUsed
}

// GamePatch is a field-level update. Nil fields are left unchanged.
// NextToPlay is a double pointer so a patch can distinguish "leave
// unchanged" (nil) from "set to NULL" (pointer to nil).
type GamePatch struct {
	GuestID           *int64
	Board             *game.Board
	NextToPlay        **int64
	Turn              *int
	WinnerID          *int64
	LoserID           *int64
	HostBombUsed      *bool
	GuestBombUsed     *bool
	HostLaserUsed     *bool
	GuestLaserUsed    *bool
	HostBacteriaUsed  *bool
	GuestBacteriaUsed *bool
	Status            *GameStatus
}

var (
	ErrGameNotFound = errors.New("GAME_NOT_FOUND: Game not found")
	ErrCodeTaken    = errors.New("CODE_TAKEN: Game code already exists")
	// ErrTurnConflict means a concurrent update won the race; the caller read
	// a stale turn value and must re-fetch before retrying.
	ErrTurnConflict = errors.New("TURN_CONFLICT: Game was updated concurrently")
)

// GameStore is the Game Record Store consumed by the lobby manager and the
// game engine.
type GameStore interface {
	CreateGame(ctx context.Context, g *Game) error
	FindByCode(ctx context.Context, code string) (*Game, error)
	FindOpenByUser(ctx context.Context, userID int64) (*Game, error)
	UpdateGame(ctx context.Context, code string, patch GamePatch, expectedTurn *int) error
}

const gameColumns = `code, host_id, guest_id, board, next_to_play, turn,
	winner_id, loser_id,
	host_bomb_used, guest_bomb_used, host_laser_used, guest_laser_used,
	host_bacteria_used, guest_bacteria_used,
	status, created_at, updated_at`

func (p *Postgres) CreateGame(ctx context.Context, g *Game) error {
	board, err := json.Marshal(g.Board)
	if err != nil {
		return fmt.Errorf("failed to serialize board: %w", err)
	}

	query := `
		INSERT INTO games (code, host_id, guest_id, board, next_to_play, turn, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = p.pool.Exec(ctx, query,
		g.Code, g.HostID, g.GuestID, board, g.NextToPlay, g.Turn, string(g.Status))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create game %s: %w", g.Code, err)
	}

	return nil
}

func (p *Postgres) FindByCode(ctx context.Context, code string) (*Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE code = $1`

	row := p.pool.QueryRow(ctx, query, code)
	return scanGame(row)
}

// FindOpenByUser returns the user's most recent open game: one that is not
// terminal yet, or that ended in the last few minutes. Used to rehydrate a
// reconnecting player.
func (p *Postgres) FindOpenByUser(ctx context.Context, userID int64) (*Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE (host_id = $1 OR guest_id = $1)
		  AND guest_id IS NOT NULL
		  AND (next_to_play IS NOT NULL OR updated_at > now() - interval '5 minutes')
		ORDER BY updated_at DESC
		LIMIT 1
	`

	row := p.pool.QueryRow(ctx, query, userID)
	return scanGame(row)
}

func (p *Postgres) UpdateGame(ctx context.Context, code string, patch GamePatch, expectedTurn *int) error {
	set := []string{"updated_at = now()"}
	args := []any{code}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.GuestID != nil {
		add("guest_id", *patch.GuestID)
	}
	if patch.Board != nil {
		board, err := json.Marshal(*patch.Board)
		if err != nil {
			return fmt.Errorf("failed to serialize board: %w", err)
		}
		add("board", board)
	}
	if patch.NextToPlay != nil {
		add("next_to_play", *patch.NextToPlay)
	}
	if patch.Turn != nil {
		add("turn", *patch.Turn)
	}
	if patch.WinnerID != nil {
		add("winner_id", *patch.WinnerID)
	}
	if patch.LoserID != nil {
		add("loser_id", *patch.LoserID)
	}
	if patch.HostBombUsed != nil {
		add("host_bomb_used", *patch.HostBombUsed)
	}
	if patch.GuestBombUsed != nil {
		add("guest_bomb_used", *patch.GuestBombUsed)
	}
	if patch.HostLaserUsed != nil {
		add("host_laser_used", *patch.HostLaserUsed)
	}
	if patch.GuestLaserUsed != nil {
		add("guest_laser_used", *patch.GuestLaserUsed)
	}
	if patch.HostBacteriaUsed != nil {
		add("host_bacteria_used", *patch.HostBacteriaUsed)
	}
	if patch.GuestBacteriaUsed != nil {
		add("guest_bacteria_used", *patch.GuestBacteriaUsed)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}

	query := fmt.Sprintf("UPDATE games SET %s WHERE code = $1", joinClauses(set))
	if expectedTurn != nil {
		args = append(args, *expectedTurn)
		query += fmt.Sprintf(" AND turn = $%d", len(args))
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update game %s: %w", code, err)
	}

	if tag.RowsAffected() == 0 {
		if expectedTurn == nil {
			return ErrGameNotFound
		}
		// Distinguish a vanished game from a lost race on turn.
		if _, err := p.FindByCode(ctx, code); err != nil {
			return err
		}
		return ErrTurnConflict
	}

	return nil
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func scanGame(row pgx.Row) (*Game, error) {
	var g Game
	var board []byte
	var status string

	err := row.Scan(
		&g.Code, &g.HostID, &g.GuestID, &board, &g.NextToPlay, &g.Turn,
		&g.WinnerID, &g.LoserID,
		&g.HostBombUsed, &g.GuestBombUsed, &g.HostLaserUsed, &g.GuestLaserUsed,
		&g.HostBacteriaUsed, &g.GuestBacteriaUsed,
		&status, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan game row: %w", err)
	}

	if err := json.Unmarshal(board, &g.Board); err != nil {
		return nil, fmt.Errorf("failed to deserialize board for %s: %w", g.Code, err)
	}
	g.Status = GameStatus(status)

	return &g, nil
}
