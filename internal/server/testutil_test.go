package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/auth"
	"github.com/Valentin-Gelly/puissance-4-beyond/internal/store"
)

const testSecret = "test-secret"

// ============================================================================
// IN-MEMORY STORES
// ============================================================================

// memGameStore is an in-memory GameStore with the same contract as the
// Postgres one, including the optimistic turn guard.
type memGameStore struct {
	mu    sync.Mutex
	games map[string]*store.Game
}

func newMemGameStore() *memGameStore {
	return &memGameStore{games: make(map[string]*store.Game)}
}

func cloneGame(g *store.Game) *store.Game {
	clone := *g
	if g.GuestID != nil {
		v := *g.GuestID
		clone.GuestID = &v
	}
	if g.NextToPlay != nil {
		v := *g.NextToPlay
		clone.NextToPlay = &v
	}
	if g.WinnerID != nil {
		v := *g.WinnerID
		clone.WinnerID = &v
	}
	if g.LoserID != nil {
		v := *g.LoserID
		clone.LoserID = &v
	}
	return &clone
}

func (m *memGameStore) CreateGame(ctx context.Context, g *store.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[g.Code]; exists {
		return store.ErrCodeTaken
	}

	clone := cloneGame(g)
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = clone.CreatedAt
	m.games[g.Code] = clone
	return nil
}

func (m *memGameStore) FindByCode(ctx context.Context, code string) (*store.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, exists := m.games[code]
	if !exists {
		return nil, store.ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (m *memGameStore) FindOpenByUser(ctx context.Context, userID int64) (*store.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *store.Game
	for _, g := range m.games {
		if !g.IsParticipant(userID) || g.GuestID == nil {
			continue
		}
		if g.NextToPlay == nil && time.Since(g.UpdatedAt) > 5*time.Minute {
			continue
		}
		if best == nil || g.UpdatedAt.After(best.UpdatedAt) {
			best = g
		}
	}

	if best == nil {
		return nil, store.ErrGameNotFound
	}
	return cloneGame(best), nil
}

func (m *memGameStore) UpdateGame(ctx context.Context, code string, patch store.GamePatch, expectedTurn *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, exists := m.games[code]
	if !exists {
		return store.ErrGameNotFound
	}
	if expectedTurn != nil && g.Turn != *expectedTurn {
		return store.ErrTurnConflict
	}

	if patch.GuestID != nil {
		g.GuestID = patch.GuestID
	}
	applyGamePatch(g, patch)
	g.UpdatedAt = time.Now()
	return nil
}

// memStatsStore accumulates deltas in memory.
type memStatsStore struct {
	mu    sync.Mutex
	stats map[int64]store.Stats
	fail  error // when set, Increment returns it
}

func newMemStatsStore() *memStatsStore {
	return &memStatsStore{stats: make(map[int64]store.Stats)}
}

func (m *memStatsStore) Increment(ctx context.Context, userID int64, delta store.StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	s := m.stats[userID]
	s.UserID = userID
	s.GamesPlayed += delta.GamesPlayed
	s.GamesWon += delta.GamesWon
	s.GamesLost += delta.GamesLost
	s.PiecesPlaced += delta.PiecesPlaced
	m.stats[userID] = s
	return nil
}

func (m *memStatsStore) GetStats(ctx context.Context, userID int64) (*store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.stats[userID]
	if !exists {
		return nil, store.ErrStatsNotFound
	}
	return &s, nil
}

// ============================================================================
// SERVER / CONNECTION HELPERS
// ============================================================================

func setupTestServer() (*Server, *memGameStore, *memStatsStore, string, func()) {
	games := newMemGameStore()
	stats := newMemStatsStore()

	s := newServer(nil, games, stats, auth.NewJWTVerifier(testSecret), zerolog.Nop())

	httpServer := httptest.NewServer(s.RegisterRoutes())
	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"

	return s, games, stats, wsURL, httpServer.Close
}

func signTestToken(t *testing.T, id int64, username string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       float64(id),
		"username": username,
	})
	signed, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

// dialAs opens an authenticated websocket for the given user.
func dialAs(t *testing.T, ctx context.Context, wsURL string, id int64, username string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, wsURL+"?token="+url.QueryEscape(signTestToken(t, id, username)), nil)
	assert.NoError(t, err)
	return conn
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg any) {
	t.Helper()
	err := conn.Write(ctx, websocket.MessageText, mustMarshal(msg))
	assert.NoError(t, err)
}

// readMessage reads one frame and decodes it into a generic map, returning
// the discriminator separately.
func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	assert.NoError(t, err)

	var msg map[string]any
	assert.NoError(t, json.Unmarshal(data, &msg))
	msgType, _ := msg["type"].(string)
	return msgType, msg
}

func readTyped[T any](t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) T {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	assert.NoError(t, err)

	var envelope struct {
		Type string `json:"type"`
	}
	assert.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, wantType, envelope.Type)

	var msg T
	assert.NoError(t, json.Unmarshal(data, &msg))
	return msg
}
