package server

import "github.com/Valentin-Gelly/puissance-4-beyond/internal/game"

// Server message types.
const (
	MsgLobbyCreated    = "lobbyCreated"
	MsgGuestJoined     = "guestJoined"
	MsgJoinedLobby     = "joinedLobby"
	MsgGameStarted     = "gameStarted"
	MsgMovePlayed      = "movePlayed"
	MsgSpecialMoveUsed = "specialMoveUsed"
	MsgReconnected     = "reconnected"
	MsgError           = "error"
)

// ============================================================================
// ERROR (error)
// ============================================================================
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ============================================================================
// LOBBY LIFECYCLE (lobbyCreated, guestJoined, joinedLobby)
// ============================================================================
type LobbyCreatedMessage struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

type GuestJoinedMessage struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Guest string `json:"guest"`
}

type JoinedLobbyMessage struct {
	Type string `json:"type"`
	Code string `json:"code"`
	Host string `json:"host"`
}

// ============================================================================
// GAME START (gameStarted)
// ============================================================================
// Personalized per recipient: each player gets their own color and turn flag.
type GameStartedMessage struct {
	Type     string     `json:"type"`
	Code     string     `json:"code"`
	Color    game.Cell  `json:"color"`
	IsMyTurn bool       `json:"isMyTurn"`
	Opponent string     `json:"opponent"`
	Board    game.Board `json:"board"`
}

// ============================================================================
// MOVES (movePlayed, specialMoveUsed)
// ============================================================================
// Winner carries the winning color and serializes as null while the game is
// still running.
type MovePlayedMessage struct {
	Type     string     `json:"type"`
	Board    game.Board `json:"board"`
	IsMyTurn bool       `json:"isMyTurn"`
	Winner   game.Cell  `json:"winner"`
	Draw     bool       `json:"draw"`
}

type SpecialMoveUsedMessage struct {
	Type         string     `json:"type"`
	MoveType     string     `json:"moveType"`
	Board        game.Board `json:"board"`
	IsMyTurn     bool       `json:"isMyTurn"`
	Winner       game.Cell  `json:"winner"`
	Draw         bool       `json:"draw"`
	BombUsed     *bool      `json:"bombUsed,omitempty"`
	LaserUsed    *bool      `json:"laserUsed,omitempty"`
	BacteriaUsed *bool      `json:"bacteriaUsed,omitempty"`
}

// ============================================================================
// RECONNECTION (reconnected)
// ============================================================================
type ReconnectedMessage struct {
	Type         string     `json:"type"`
	Board        game.Board `json:"board"`
	IsMyTurn     bool       `json:"isMyTurn"`
	Color        game.Cell  `json:"color"`
	Opponent     string     `json:"opponent"`
	Winner       game.Cell  `json:"winner"`
	Draw         bool       `json:"draw"`
	BombUsed     bool       `json:"bombUsed"`
	LaserUsed    bool       `json:"laserUsed"`
	BacteriaUsed bool       `json:"bacteriaUsed"`
}
