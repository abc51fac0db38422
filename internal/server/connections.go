package server

import (
	"sync"

	"github.com/coder/websocket"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/auth"
)

// ConnectionEntry is the process-local state attached to one live websocket.
// It is never persisted; full game state is reconstructed from the store on
// reconnection, never from registry memory.
type ConnectionEntry struct {
	ID       string
	Identity auth.Identity
	Code     string // current lobby code, empty until bound
	IsHost   bool
}

// ConnectionPatch updates registry fields. Nil fields are left unchanged.
type ConnectionPatch struct {
	Code   *string
	IsHost *bool
}

type registeredConn struct {
	entry ConnectionEntry
	conn  *websocket.Conn
}

// ConnectionRegistry maps live connections to identity and lobby membership.
// Scoped to the server's lifetime; a process restart loses all of it by
// design, the Game Record Store stays authoritative.
type ConnectionRegistry struct {
	conns map[string]*registeredConn // connectionID → entry + socket
	mu    sync.RWMutex
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*registeredConn),
	}
}

func (cr *ConnectionRegistry) Register(id string, conn *websocket.Conn, identity auth.Identity) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.conns[id] = &registeredConn{
		entry: ConnectionEntry{ID: id, Identity: identity},
		conn:  conn,
	}
}

func (cr *ConnectionRegistry) Unregister(id string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.conns, id)
}

func (cr *ConnectionRegistry) Lookup(id string) (ConnectionEntry, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	rc, exists := cr.conns[id]
	if !exists {
		return ConnectionEntry{}, false
	}
	return rc.entry, true
}

func (cr *ConnectionRegistry) Update(id string, patch ConnectionPatch) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	rc, exists := cr.conns[id]
	if !exists {
		return
	}
	if patch.Code != nil {
		rc.entry.Code = *patch.Code
	}
	if patch.IsHost != nil {
		rc.entry.IsHost = *patch.IsHost
	}
}

// AllWithCode returns the entries of every live connection bound to code.
func (cr *ConnectionRegistry) AllWithCode(code string) []ConnectionEntry {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	var entries []ConnectionEntry
	for _, rc := range cr.conns {
		if rc.entry.Code == code {
			entries = append(entries, rc.entry)
		}
	}
	return entries
}

// Conn returns the websocket for a connection id, or nil.
func (cr *ConnectionRegistry) Conn(id string) *websocket.Conn {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	rc, exists := cr.conns[id]
	if !exists {
		return nil
	}
	return rc.conn
}
