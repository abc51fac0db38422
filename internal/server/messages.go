package server

import (
	"encoding/json"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/game"
)

// Client message types. The envelope is a flat discriminated object: every
// inbound message carries a type field plus the fields of its kind.
const (
	MsgCreateLobby    = "createLobby"
	MsgJoinLobby      = "joinLobby"
	MsgSetCode        = "setCode"
	MsgStartGame      = "startGame"
	MsgPlayMove       = "playMove"
	MsgUseSpecialMove = "useSpecialMove"
)

type ClientMessage struct {
	Type string          `json:"type"`
	Code string          `json:"code,omitempty"`
	Move json.RawMessage `json:"move,omitempty"`
}

type MoveRequest struct {
	Col int `json:"col"`
	// Color is still sent by the legacy client but ignored; the piece color
	// comes from the mover's role.
	Color game.Cell `json:"color"`
}

// Special move wire values, as the legacy client sends them.
const (
	SpecialBomb     = "bombe"
	SpecialLaser    = "laser"
	SpecialBacteria = "bacteria"
)

type SpecialMoveRequest struct {
	Type string `json:"type"`
	Row  *int   `json:"row,omitempty"`
	Col  *int   `json:"col,omitempty"`
}
