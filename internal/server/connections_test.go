package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/auth"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	assert := assert.New(t)
	registry := NewConnectionRegistry()

	registry.Register("c1", nil, auth.Identity{ID: 1, Username: "alice"})

	entry, ok := registry.Lookup("c1")
	assert.True(ok)
	assert.Equal("c1", entry.ID)
	assert.Equal(int64(1), entry.Identity.ID)
	assert.Equal("alice", entry.Identity.Username)
	assert.Empty(entry.Code, "a fresh connection is not bound to a lobby")
	assert.False(entry.IsHost)
}

func TestRegistryLookupUnknown(t *testing.T) {
	registry := NewConnectionRegistry()

	_, ok := registry.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistryUnregister(t *testing.T) {
	assert := assert.New(t)
	registry := NewConnectionRegistry()

	registry.Register("c1", nil, auth.Identity{ID: 1})
	registry.Unregister("c1")

	_, ok := registry.Lookup("c1")
	assert.False(ok)

	// Unregistering twice is harmless.
	registry.Unregister("c1")
}

func TestRegistryUpdate(t *testing.T) {
	assert := assert.New(t)
	registry := NewConnectionRegistry()
	registry.Register("c1", nil, auth.Identity{ID: 1})

	code := "ABC123"
	isHost := true
	registry.Update("c1", ConnectionPatch{Code: &code, IsHost: &isHost})

	entry, _ := registry.Lookup("c1")
	assert.Equal("ABC123", entry.Code)
	assert.True(entry.IsHost)

	// Partial patch leaves the other field alone.
	isHost = false
	registry.Update("c1", ConnectionPatch{IsHost: &isHost})

	entry, _ = registry.Lookup("c1")
	assert.Equal("ABC123", entry.Code)
	assert.False(entry.IsHost)
}

func TestRegistryUpdateUnknownConnection(t *testing.T) {
	registry := NewConnectionRegistry()

	code := "ABC123"
	registry.Update("nope", ConnectionPatch{Code: &code})

	_, ok := registry.Lookup("nope")
	assert.False(t, ok, "updating must not create entries")
}

func TestRegistryAllWithCode(t *testing.T) {
	assert := assert.New(t)
	registry := NewConnectionRegistry()

	code := "ABC123"
	other := "XYZ789"
	registry.Register("c1", nil, auth.Identity{ID: 1})
	registry.Register("c2", nil, auth.Identity{ID: 2})
	registry.Register("c3", nil, auth.Identity{ID: 3})
	registry.Update("c1", ConnectionPatch{Code: &code})
	registry.Update("c2", ConnectionPatch{Code: &code})
	registry.Update("c3", ConnectionPatch{Code: &other})

	entries := registry.AllWithCode("ABC123")
	assert.Len(entries, 2)

	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.ID] = true
	}
	assert.True(ids["c1"])
	assert.True(ids["c2"])

	assert.Empty(registry.AllWithCode("NOSUCH"))
}

func TestRegistryConn(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Register("c1", nil, auth.Identity{ID: 1})

	assert.Nil(t, registry.Conn("c1"))
	assert.Nil(t, registry.Conn("nope"))
}
