// pkg/protocol/messages.go
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidl09/car-sim/pkg/core"
)

// Message type constants for the sync protocol.
const (
	// client -> server
	TypePlayerUpdate    = "player:update"
	TypePlayerCustomize = "player:customize"
	TypePlayerSetName   = "player:setname"
	TypePlayerRespawn   = "player:respawn"

	// server -> client
	TypeGameState         = "game:state"
	TypeGameUpdate        = "game:update"
	TypePlayerJoined      = "player:joined"
	TypePlayerLeft        = "player:left"
	TypePlayerCustomized  = "player:customized"
	TypePlayerNameUpdated = "player:nameupdated"
	TypePlayerRespawned   = "player:respawned"
)

// Envelope wraps all JSON messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CustomizePayload is a client's appearance change request. Name is
// optional.
type CustomizePayload struct {
	Color string  `json:"color"`
	Name  *string `json:"name,omitempty"`
}

// SetNamePayload is a client's rename request.
type SetNamePayload struct {
	Name string `json:"name"`
}

// GameStatePayload is the full bootstrap snapshot, sent exactly once per
// connection immediately after connect.
type GameStatePayload struct {
	PlayerID  string         `json:"playerId"`
	Players   []*core.Player `json:"players"`
	WorldSeed int64          `json:"worldSeed"`
}

// GameUpdatePayload relays another player's partial update. Absent fields
// stay absent.
type GameUpdatePayload struct {
	PlayerID string `json:"playerId"`
	core.PlayerUpdate
}

// PlayerLeftPayload announces a disconnect.
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// PlayerCustomizedPayload announces an appearance change.
type PlayerCustomizedPayload struct {
	PlayerID string `json:"playerId"`
	Color    string `json:"color"`
}

// PlayerNameUpdatedPayload announces the server-resolved effective name.
type PlayerNameUpdatedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// PlayerRespawnedPayload announces a reset to spawn state.
type PlayerRespawnedPayload struct {
	PlayerID string       `json:"playerId"`
	Position core.Vector3 `json:"position"`
	Rotation core.Vector3 `json:"rotation"`
	Velocity core.Vector3 `json:"velocity"`
	Health   float64      `json:"health"`
	JoinTime time.Time    `json:"joinTime"`
}

// Marshal builds a wire-ready envelope for the given type and payload.
// A nil payload produces an envelope with no payload field.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
