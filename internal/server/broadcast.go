package server

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Broadcaster delivers messages to the live connections of a lobby. Sends
// use a background context: a broadcast is fire-and-forget and must not be
// cancelled by the triggering connection's lifecycle.
type Broadcaster struct {
	registry *ConnectionRegistry
	log      zerolog.Logger
}

func NewBroadcaster(registry *ConnectionRegistry, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		log:      log,
	}
}

// Send writes one message to one connection.
func (b *Broadcaster) Send(connID string, msg any) {
	conn := b.registry.Conn(connID)
	if conn == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		b.log.Warn().Err(err).Str("connection", connID).Msg("failed to write message")
	}
}

// ToLobby sends a personalized message to every connection bound to code.
// build receives the recipient's entry so payloads can carry per-recipient
// fields like isMyTurn.
func (b *Broadcaster) ToLobby(code string, build func(entry ConnectionEntry) any) {
	for _, entry := range b.registry.AllWithCode(code) {
		b.Send(entry.ID, build(entry))
	}
}
