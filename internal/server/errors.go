package server

import "errors"

// Session-level failure taxonomy. Every one of these is surfaced to the
// originating connection only, as an error message, and never mutates state.
var (
	ErrLobbyNotFound = errors.New("LOBBY_NOT_FOUND: Lobby not found")
	ErrLobbyFull     = errors.New("LOBBY_FULL: Lobby already has two players")
	ErrLobbySelfJoin = errors.New("LOBBY_SELF_JOIN: You cannot join your own lobby")
	ErrNotYourTurn   = errors.New("NOT_YOUR_TURN: It is not your turn")
	ErrNoOpponent    = errors.New("NO_OPPONENT: No opponent has joined yet")
	ErrNotHost       = errors.New("NOT_HOST: Only the host can start the game")
	ErrAlreadyUsed   = errors.New("ALREADY_USED: Special move already used")
	ErrEmptyCell     = errors.New("EMPTY_CELL: Target cell is already empty")
	ErrInvalidColumn = errors.New("INVALID_COLUMN: Column out of range")
)
