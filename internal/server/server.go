package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/auth"
	"github.com/Valentin-Gelly/puissance-4-beyond/internal/store"
)

type Server struct {
	db          *store.Postgres
	games       store.GameStore
	registry    *ConnectionRegistry
	lobby       *LobbyManager
	engine      *Engine
	broadcast   *Broadcaster
	verifier    auth.Verifier
	rateLimiter *RateLimiter
	log         zerolog.Logger
}

// NewServer wires the full service from the environment: PORT, DATABASE_URL,
// JWT_SECRET. The database schema is bootstrapped on startup.
func NewServer(log zerolog.Logger) (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := store.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	verifier := auth.NewJWTVerifier(os.Getenv("JWT_SECRET"))

	s := newServer(db, db, db, verifier, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer
}

// newServer assembles a Server from its collaborators. Tests inject
// in-memory stores and a fixed-seed engine here.
func newServer(db *store.Postgres, games store.GameStore, stats store.StatsStore, verifier auth.Verifier, log zerolog.Logger, engineOpts ...EngineOption) *Server {
	registry := NewConnectionRegistry()

	return &Server{
		db:          db,
		games:       games,
		registry:    registry,
		lobby:       NewLobbyManager(games, registry),
		engine:      NewEngine(games, stats, log, engineOpts...),
		broadcast:   NewBroadcaster(registry, log),
		verifier:    verifier,
		rateLimiter: NewRateLimiter(20, time.Second),
		log:         log,
	}
}

// Close releases the database pool.
func (s *Server) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
