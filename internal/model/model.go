package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which
// represent tables in the session database schema.
var DatabaseModels = []interface{}{
	&Session{},
	&PlayerEvent{},
	&StateSample{},
}

// Session is one server run against one world seed.
type Session struct {
	ID        uint `gorm:"primarykey"`
	WorldSeed int64
	StartedAt time.Time
	EndedAt   sql.NullTime
}

// PlayerEvent is a discrete lifecycle or collision event. Payload carries
// the kind-specific fields as JSON.
type PlayerEvent struct {
	ID        uint `gorm:"primarykey"`
	SessionID uint `gorm:"index"`
	PlayerID  string
	Kind      string // "join", "leave", "collision"
	Payload   datatypes.JSON
	CreatedAt time.Time
}

// StateSample is one sampled movement state of a player.
type StateSample struct {
	ID        uint   `gorm:"primarykey"`
	SessionID uint   `gorm:"index"`
	PlayerID  string `gorm:"index"`
	PosX      float64
	PosY      float64
	PosZ      float64
	RotY      float64
	VelX      float64
	VelY      float64
	VelZ      float64
	CreatedAt time.Time
}

//////////////////////
// RECORD STRUCTURES //
//////////////////////

// CollisionRecord is the payload of a "collision" PlayerEvent.
type CollisionRecord struct {
	PlayerID    string    `json:"playerId"`
	OtherID     string    `json:"otherId,omitempty"`
	Obstacle    string    `json:"obstacle,omitempty"`
	ImpactSpeed float64   `json:"impactSpeed"`
	Damage      float64   `json:"damage"`
	Time        time.Time `json:"time"`
}

// JoinRecord is the payload of a "join" PlayerEvent.
type JoinRecord struct {
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Time     time.Time `json:"time"`
}

// LeaveRecord is the payload of a "leave" PlayerEvent.
type LeaveRecord struct {
	PlayerID string    `json:"playerId"`
	Time     time.Time `json:"time"`
}
