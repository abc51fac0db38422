package server

import (
	"context"
	"errors"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/game"
	"github.com/Valentin-Gelly/puissance-4-beyond/internal/store"
)

// LobbyManager pairs two connections into a game. A lobby is just a Game
// entity without a guest; there is no separate lobby record.
type LobbyManager struct {
	games    store.GameStore
	registry *ConnectionRegistry
}

func NewLobbyManager(games store.GameStore, registry *ConnectionRegistry) *LobbyManager {
	return &LobbyManager{
		games:    games,
		registry: registry,
	}
}

// CreateLobby generates a code, creates the Game entity with an empty board
// and the requester to play first, and registers the requester as host.
// Codes are not checked against in-flight lobbies; uniqueness is enforced by
// the store, so creation retries on a collision.
func (lm *LobbyManager) CreateLobby(ctx context.Context, connID string) (*store.Game, error) {
	entry, ok := lm.registry.Lookup(connID)
	if !ok {
		return nil, ErrLobbyNotFound
	}

	hostID := entry.Identity.ID

	for {
		nextToPlay := hostID
		g := &store.Game{
			Code:       game.GenerateCode(),
			HostID:     hostID,
			Board:      game.NewBoard(),
			NextToPlay: &nextToPlay,
			Status:     store.StatusInProgress,
		}

		err := lm.games.CreateGame(ctx, g)
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}

		isHost := true
		lm.registry.Update(connID, ConnectionPatch{Code: &g.Code, IsHost: &isHost})
		return g, nil
	}
}

// JoinLobby attaches the requester as guest of an open lobby. A code that
// resolves to nothing, or to a lobby that already has a guest, reads the
// same from the outside: LobbyNotFound.
func (lm *LobbyManager) JoinLobby(ctx context.Context, connID, code string) (*store.Game, error) {
	entry, ok := lm.registry.Lookup(connID)
	if !ok {
		return nil, ErrLobbyNotFound
	}

	code = game.NormalizeCode(code)
	g, err := lm.games.FindByCode(ctx, code)
	if errors.Is(err, store.ErrGameNotFound) {
		return nil, ErrLobbyNotFound
	}
	if err != nil {
		return nil, err
	}

	if g.IsParticipant(entry.Identity.ID) {
		return nil, ErrLobbySelfJoin
	}
	if g.GuestID != nil {
		return nil, ErrLobbyNotFound
	}

	guestID := entry.Identity.ID
	if err := lm.games.UpdateGame(ctx, code, store.GamePatch{GuestID: &guestID}, nil); err != nil {
		return nil, err
	}
	g.GuestID = &guestID

	isHost := false
	lm.registry.Update(connID, ConnectionPatch{Code: &code, IsHost: &isHost})

	return g, nil
}

// SetCode binds a connection to a known code without the join handshake,
// used after page navigation. Only participants of the game may bind.
func (lm *LobbyManager) SetCode(ctx context.Context, connID, code string) (*store.Game, error) {
	entry, ok := lm.registry.Lookup(connID)
	if !ok {
		return nil, ErrLobbyNotFound
	}

	code = game.NormalizeCode(code)
	g, err := lm.games.FindByCode(ctx, code)
	if errors.Is(err, store.ErrGameNotFound) {
		return nil, ErrLobbyNotFound
	}
	if err != nil {
		return nil, err
	}

	if !g.IsParticipant(entry.Identity.ID) {
		if g.GuestID != nil {
			return nil, ErrLobbyFull
		}
		return nil, ErrLobbyNotFound
	}

	isHost := g.IsHost(entry.Identity.ID)
	lm.registry.Update(connID, ConnectionPatch{Code: &code, IsHost: &isHost})

	return g, nil
}

// StartGame resets the board for a fresh session. Only the host may trigger
// it, and only once a guest is present. Host always moves first.
func (lm *LobbyManager) StartGame(ctx context.Context, connID string) (*store.Game, error) {
	entry, ok := lm.registry.Lookup(connID)
	if !ok || entry.Code == "" {
		return nil, ErrLobbyNotFound
	}
	if !entry.IsHost {
		return nil, ErrNotHost
	}

	g, err := lm.games.FindByCode(ctx, entry.Code)
	if errors.Is(err, store.ErrGameNotFound) {
		return nil, ErrLobbyNotFound
	}
	if err != nil {
		return nil, err
	}

	if g.GuestID == nil {
		return nil, ErrNoOpponent
	}

	board := game.NewBoard()
	nextToPlay := &g.HostID
	status := store.StatusInProgress
	patch := store.GamePatch{
		Board:      &board,
		NextToPlay: &nextToPlay,
		Status:     &status,
	}
	if err := lm.games.UpdateGame(ctx, entry.Code, patch, nil); err != nil {
		return nil, err
	}

	g.Board = board
	g.NextToPlay = nextToPlay
	g.Status = status

	return g, nil
}
