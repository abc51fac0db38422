package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/auth"
	"github.com/Valentin-Gelly/puissance-4-beyond/internal/game"
	"github.com/Valentin-Gelly/puissance-4-beyond/internal/store"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.helloWorldHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ws", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) helloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Hello World"}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("failed to encode hello response")
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := map[string]string{"status": "up"}
	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			status["status"] = "down"
			status["error"] = err.Error()
		}
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.Error().Err(err).Msg("failed to encode health response")
	}
}

// websocketHandler authenticates the credential from the query string before
// upgrading; a bad token never reaches the websocket layer. Each accepted
// socket gets a fresh connection id, an optional rehydration snapshot, and
// then a read loop until the peer goes away.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to accept websocket")
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing websocket")

	connID := uuid.New().String()
	logger := s.log.With().
		Str("connection", connID).
		Int64("user", identity.ID).
		Logger()

	s.registry.Register(connID, socket, identity)
	defer func() {
		s.registry.Unregister(connID)
		s.rateLimiter.RemoveConnection(connID)
		logger.Info().Msg("connection closed")
	}()

	logger.Info().Str("username", identity.Username).Msg("connection opened")

	ctx := r.Context()
	s.rehydrate(ctx, connID, identity, logger)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if !s.rateLimiter.Allow(connID) {
			s.sendErrorText(connID, "RATE_LIMITED: Too many messages, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames are dropped, not answered.
			logger.Debug().Err(err).Msg("dropping malformed message")
			continue
		}

		s.dispatch(ctx, connID, msg, logger)
	}
}

func (s *Server) dispatch(ctx context.Context, connID string, msg ClientMessage, logger zerolog.Logger) {
	switch msg.Type {
	case MsgCreateLobby:
		s.handleCreateLobby(ctx, connID)
	case MsgJoinLobby:
		s.handleJoinLobby(ctx, connID, msg.Code)
	case MsgSetCode:
		s.handleSetCode(ctx, connID, msg.Code)
	case MsgStartGame:
		s.handleStartGame(ctx, connID)
	case MsgPlayMove:
		s.handlePlayMove(ctx, connID, msg.Move, logger)
	case MsgUseSpecialMove:
		s.handleUseSpecialMove(ctx, connID, msg.Move, logger)
	default:
		logger.Debug().Str("type", msg.Type).Msg("dropping unknown message type")
	}
}

// rehydrate reattaches a connection to its open game, if any, and replays the
// current state as a reconnected snapshot. Runs before the first client
// message is read so the client never acts on a stale board.
func (s *Server) rehydrate(ctx context.Context, connID string, identity auth.Identity, logger zerolog.Logger) {
	g, err := s.games.FindOpenByUser(ctx, identity.ID)
	if errors.Is(err, store.ErrGameNotFound) {
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to look up open game")
		return
	}

	isHost := g.IsHost(identity.ID)
	s.registry.Update(connID, ConnectionPatch{Code: &g.Code, IsHost: &isHost})

	color, _ := g.ColorOf(identity.ID)
	var winner game.Cell
	if g.WinnerID != nil {
		winner, _ = g.ColorOf(*g.WinnerID)
	}

	s.broadcast.Send(connID, ReconnectedMessage{
		Type:         MsgReconnected,
		Board:        g.Board,
		IsMyTurn:     g.NextToPlay != nil && *g.NextToPlay == identity.ID,
		Color:        color,
		Opponent:     s.usernameOfOpponent(g, identity.ID),
		Winner:       winner,
		Draw:         g.Status == store.StatusDraw,
		BombUsed:     g.BombUsedBy(identity.ID),
		LaserUsed:    g.LaserUsedBy(identity.ID),
		BacteriaUsed: g.BacteriaUsedBy(identity.ID),
	})

	logger.Info().Str("code", g.Code).Msg("rehydrated connection into open game")
}

// ============================================================================
// MESSAGE HANDLERS
// ============================================================================

func (s *Server) handleCreateLobby(ctx context.Context, connID string) {
	g, err := s.lobby.CreateLobby(ctx, connID)
	if err != nil {
		s.sendError(connID, err)
		return
	}

	s.broadcast.Send(connID, LobbyCreatedMessage{
		Type:   MsgLobbyCreated,
		Code:   g.Code,
		Status: "waiting",
	})
}

func (s *Server) handleJoinLobby(ctx context.Context, connID, code string) {
	entry, ok := s.registry.Lookup(connID)
	if !ok {
		return
	}

	g, err := s.lobby.JoinLobby(ctx, connID, code)
	if err != nil {
		s.sendError(connID, err)
		return
	}

	s.broadcast.Send(connID, JoinedLobbyMessage{
		Type: MsgJoinedLobby,
		Code: g.Code,
		Host: s.usernameOf(g.Code, g.HostID),
	})

	for _, peer := range s.registry.AllWithCode(g.Code) {
		if peer.Identity.ID != g.HostID {
			continue
		}
		s.broadcast.Send(peer.ID, GuestJoinedMessage{
			Type:  MsgGuestJoined,
			Code:  g.Code,
			Guest: entry.Identity.Username,
		})
	}
}

func (s *Server) handleSetCode(ctx context.Context, connID, code string) {
	if _, err := s.lobby.SetCode(ctx, connID, code); err != nil {
		s.sendError(connID, err)
	}
}

func (s *Server) handleStartGame(ctx context.Context, connID string) {
	g, err := s.lobby.StartGame(ctx, connID)
	if err != nil {
		s.sendError(connID, err)
		return
	}

	s.broadcast.ToLobby(g.Code, func(entry ConnectionEntry) any {
		color, _ := g.ColorOf(entry.Identity.ID)
		return GameStartedMessage{
			Type:     MsgGameStarted,
			Code:     g.Code,
			Color:    color,
			IsMyTurn: entry.Identity.ID == g.HostID,
			Opponent: s.usernameOfOpponent(g, entry.Identity.ID),
			Board:    g.Board,
		}
	})
}

func (s *Server) handlePlayMove(ctx context.Context, connID string, raw json.RawMessage, logger zerolog.Logger) {
	var req MoveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Debug().Err(err).Msg("dropping malformed move")
		return
	}

	entry, ok := s.registry.Lookup(connID)
	if !ok || entry.Code == "" {
		s.sendError(connID, ErrLobbyNotFound)
		return
	}

	outcome, err := s.engine.PlayMove(ctx, entry.Code, entry.Identity.ID, req.Col)
	if err != nil {
		s.sendError(connID, err)
		return
	}
	if outcome == nil {
		// Full or out-of-range column: nothing changed, nothing to announce.
		return
	}

	g := outcome.Game
	s.broadcast.ToLobby(g.Code, func(peer ConnectionEntry) any {
		return MovePlayedMessage{
			Type:     MsgMovePlayed,
			Board:    g.Board,
			IsMyTurn: g.NextToPlay != nil && *g.NextToPlay == peer.Identity.ID,
			Winner:   outcome.Winner,
			Draw:     outcome.Draw,
		}
	})
}

func (s *Server) handleUseSpecialMove(ctx context.Context, connID string, raw json.RawMessage, logger zerolog.Logger) {
	var req SpecialMoveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Debug().Err(err).Msg("dropping malformed special move")
		return
	}

	entry, ok := s.registry.Lookup(connID)
	if !ok || entry.Code == "" {
		s.sendError(connID, ErrLobbyNotFound)
		return
	}

	outcome, err := s.engine.UseSpecialMove(ctx, entry.Code, entry.Identity.ID, req)
	if err != nil {
		s.sendError(connID, err)
		return
	}

	g := outcome.Game
	used := true
	s.broadcast.ToLobby(g.Code, func(peer ConnectionEntry) any {
		msg := SpecialMoveUsedMessage{
			Type:     MsgSpecialMoveUsed,
			MoveType: req.Type,
			Board:    g.Board,
			IsMyTurn: g.NextToPlay != nil && *g.NextToPlay == peer.Identity.ID,
			Winner:   outcome.Winner,
			Draw:     outcome.Draw,
		}
		switch req.Type {
		case SpecialBomb:
			msg.BombUsed = &used
		case SpecialLaser:
			msg.LaserUsed = &used
		case SpecialBacteria:
			msg.BacteriaUsed = &used
		}
		return msg
	})
}

// ============================================================================
// HELPERS
// ============================================================================

// sendError reports a failure to the originating connection only.
func (s *Server) sendError(connID string, err error) {
	s.sendErrorText(connID, err.Error())
}

func (s *Server) sendErrorText(connID, message string) {
	s.broadcast.Send(connID, ErrorMessage{
		Type:    MsgError,
		Message: message,
	})
}

// usernameOf resolves a participant's display name through their live
// connections; an offline participant resolves to empty.
func (s *Server) usernameOf(code string, userID int64) string {
	for _, entry := range s.registry.AllWithCode(code) {
		if entry.Identity.ID == userID {
			return entry.Identity.Username
		}
	}
	return ""
}

func (s *Server) usernameOfOpponent(g *store.Game, userID int64) string {
	opponent := g.OpponentOf(userID)
	if opponent == nil {
		return ""
	}
	return s.usernameOf(g.Code, *opponent)
}
