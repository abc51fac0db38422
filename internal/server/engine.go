package server

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/game"
	"github.com/Valentin-Gelly/puissance-4-beyond/internal/store"
)

// Engine owns move legality, board mutation, win/draw detection and turn
// handoff. Every operation works against a freshly fetched Game entity, and
// all mutating operations for one code are serialized through a per-code
// lock held across the fetch→update span, so two in-flight moves can never
// both pass the turn check against a stale read. The store update also
// carries the previously read turn value as a guard, so a lost update
// surfaces as a conflict instead of a silent clobber.
type Engine struct {
	games store.GameStore
	stats store.StatsStore
	log   zerolog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*codeLock
}

// codeLock is a refcounted per-game mutex. Entries are removed once no move
// holds or waits on them, so the map stays bounded by in-flight moves.
type codeLock struct {
	mu   sync.Mutex
	refs int
}

type EngineOption func(*Engine)

// WithRand injects the randomness source used by the bacteria move, so tests
// can supply deterministic sequences.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		e.rng = rng
	}
}

func NewEngine(games store.GameStore, stats store.StatsStore, log zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		games: games,
		stats: stats,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		locks: make(map[string]*codeLock),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lockCode(code string) func() {
	e.locksMu.Lock()
	l, exists := e.locks[code]
	if !exists {
		l = &codeLock{}
		e.locks[code] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, code)
		}
		e.locksMu.Unlock()
	}
}

// MoveOutcome is what an accepted move produced. Game holds the post-move
// entity state.
type MoveOutcome struct {
	Game         *store.Game
	Color        game.Cell
	PiecesPlaced int
	Winner       game.Cell
	Draw         bool
}

// PlayMove drops a piece in col for the requester. The piece color is always
// the requester's role color; whatever the client sent is not trusted. A full
// or out-of-range column is implicitly rejected: no cell changes, no turn
// change, and a nil outcome so callers broadcast nothing.
func (e *Engine) PlayMove(ctx context.Context, code string, userID int64, col int) (*MoveOutcome, error) {
	unlock := e.lockCode(code)
	defer unlock()

	g, err := e.games.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if g.GuestID == nil {
		return nil, ErrNoOpponent
	}
	if g.NextToPlay == nil || *g.NextToPlay != userID {
		return nil, ErrNotYourTurn
	}

	color, _ := g.ColorOf(userID)
	board := g.Board
	if _, ok := board.Drop(col, color); !ok {
		return nil, nil
	}

	return e.finishMove(ctx, g, board, userID, color, 1, store.GamePatch{})
}

// UseSpecialMove resolves one of the three single-use abilities. It shares
// the win/draw/persist pipeline of a normal move and differs only in the
// board mutation.
func (e *Engine) UseSpecialMove(ctx context.Context, code string, userID int64, req SpecialMoveRequest) (*MoveOutcome, error) {
	unlock := e.lockCode(code)
	defer unlock()

	g, err := e.games.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if g.GuestID == nil {
		return nil, ErrNoOpponent
	}
	if g.NextToPlay == nil || *g.NextToPlay != userID {
		return nil, ErrNotYourTurn
	}

	color, _ := g.ColorOf(userID)
	isHost := g.IsHost(userID)
	board := g.Board
	pieces := 0
	var patch store.GamePatch
	used := true

	switch req.Type {
	case SpecialBomb:
		if g.BombUsedBy(userID) {
			return nil, ErrAlreadyUsed
		}
		if req.Row == nil || req.Col == nil || !game.ValidCell(*req.Row, *req.Col) ||
			board[*req.Row][*req.Col] == game.Empty {
			return nil, ErrEmptyCell
		}
		board.Bomb(*req.Row, *req.Col)
		if isHost {
			patch.HostBombUsed = &used
		} else {
			patch.GuestBombUsed = &used
		}

	case SpecialLaser:
		if g.LaserUsedBy(userID) {
			return nil, ErrAlreadyUsed
		}
		if req.Col == nil || !game.ValidColumn(*req.Col) {
			return nil, ErrInvalidColumn
		}
		board.Laser(*req.Col)
		if isHost {
			patch.HostLaserUsed = &used
		} else {
			patch.GuestLaserUsed = &used
		}

	case SpecialBacteria:
		if g.BacteriaUsedBy(userID) {
			return nil, ErrAlreadyUsed
		}
		pieces = e.spreadBacteria(&board)
		if isHost {
			patch.HostBacteriaUsed = &used
		} else {
			patch.GuestBacteriaUsed = &used
		}

	default:
		return nil, ErrInvalidColumn
	}

	return e.finishMove(ctx, g, board, userID, color, pieces, patch)
}

// spreadBacteria drops between 3 and 7 random pieces of random colors by the
// normal gravity rule, silently skipping full columns. Returns the count
// actually placed.
func (e *Engine) spreadBacteria(board *game.Board) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()

	count := 3 + e.rng.Intn(5)
	placed := 0
	for range count {
		col := e.rng.Intn(game.Cols)
		color := game.Red
		if e.rng.Intn(2) == 1 {
			color = game.Yellow
		}
		if _, ok := board.Drop(col, color); ok {
			placed++
		}
	}
	return placed
}

// finishMove runs steps shared by every accepted move: win/draw evaluation,
// persistence of the new state, stats side effects and outcome assembly.
// Win evaluation only considers the mover's color, which is equivalent to a
// full four-in-a-row scan for that color.
func (e *Engine) finishMove(ctx context.Context, g *store.Game, board game.Board, userID int64, color game.Cell, pieces int, patch store.GamePatch) (*MoveOutcome, error) {
	win := board.CheckWin(color)
	draw := !win && board.Full()

	var next *int64
	if !win && !draw {
		next = g.OpponentOf(userID)
	}

	turn := g.Turn + 1
	patch.Board = &board
	patch.NextToPlay = &next
	patch.Turn = &turn

	opponent := g.OpponentOf(userID)
	if win && opponent != nil {
		patch.WinnerID = &userID
		patch.LoserID = opponent
	}
	if draw {
		status := store.StatusDraw
		patch.Status = &status
	}

	expected := g.Turn
	if err := e.games.UpdateGame(ctx, g.Code, patch, &expected); err != nil {
		return nil, err
	}

	e.applyStats(ctx, g, userID, opponent, pieces, win, draw)

	applyGamePatch(g, patch)

	outcome := &MoveOutcome{
		Game:         g,
		Color:        color,
		PiecesPlaced: pieces,
		Draw:         draw,
	}
	if win {
		outcome.Winner = color
	}
	return outcome, nil
}

// applyStats updates the Stats Store. Failures here are logged and swallowed:
// the move has already been persisted and must not be reported as failed.
func (e *Engine) applyStats(ctx context.Context, g *store.Game, userID int64, opponent *int64, pieces int, win, draw bool) {
	var err error
	switch {
	case win && opponent != nil:
		err = e.stats.Increment(ctx, userID, store.StatsDelta{GamesPlayed: pieces, GamesWon: pieces})
		if err == nil {
			err = e.stats.Increment(ctx, *opponent, store.StatsDelta{GamesPlayed: pieces, GamesLost: pieces})
		}
	case draw:
		err = e.stats.Increment(ctx, userID, store.StatsDelta{GamesPlayed: 1})
		if err == nil && opponent != nil {
			err = e.stats.Increment(ctx, *opponent, store.StatsDelta{GamesPlayed: 1})
		}
	default:
		err = e.stats.Increment(ctx, userID, store.StatsDelta{PiecesPlaced: pieces})
	}

	if err != nil {
		e.log.Error().Err(err).Str("code", g.Code).Msg("failed to update stats")
	}
}

// applyGamePatch folds an already-persisted patch back into the in-memory
// entity, so the caller broadcasts exactly what was written.
func applyGamePatch(g *store.Game, patch store.GamePatch) {
	if patch.Board != nil {
		g.Board = *patch.Board
	}
	if patch.NextToPlay != nil {
		g.NextToPlay = *patch.NextToPlay
	}
	if patch.Turn != nil {
		g.Turn = *patch.Turn
	}
	if patch.WinnerID != nil {
		g.WinnerID = patch.WinnerID
	}
	if patch.LoserID != nil {
		g.LoserID = patch.LoserID
	}
	if patch.HostBombUsed != nil {
		g.HostBombUsed = *patch.HostBombUsed
	}
	if patch.GuestBombUsed != nil {
		g.GuestBombUsed = *patch.GuestBombUsed
	}
	if patch.HostLaserUsed != nil {
		g.HostLaserUsed = *patch.HostLaserUsed
	}
	if patch.GuestLaserUsed != nil {
		g.GuestLaserUsed = *patch.GuestLaserUsed
	}
	if patch.HostBacteriaUsed != nil {
		g.HostBacteriaUsed = *patch.HostBacteriaUsed
	}
	if patch.GuestBacteriaUsed != nil {
		g.GuestBacteriaUsed = *patch.GuestBacteriaUsed
	}
	if patch.Status != nil {
		g.Status = *patch.Status
	}
}
