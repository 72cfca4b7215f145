// pkg/core/player.go
package core

import (
	"math"
	"time"
)

const (
	// MaxHealth is the health a player spawns and respawns with.
	MaxHealth = 100.0

	// SpeedScale converts a velocity magnitude in world units per tick to
	// the km/h figure shown on the HUD.
	SpeedScale = 200.0
)

// VehicleColors is the palette players are assigned from and may pick from.
var VehicleColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Player is one connected vehicle. The server owns the authoritative copy;
// clients hold mirrors updated by broadcasts.
type Player struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
	Velocity Vector3 `json:"velocity"`
	Color    string  `json:"color"`
	// Health is clamped to [0, MaxHealth]. NaN never survives a write.
	Health        float64   `json:"health"`
	JoinTime      time.Time `json:"joinTime"`
	LastCollision time.Time `json:"lastCollision,omitempty"`
	LastUpdate    time.Time `json:"lastUpdate,omitempty"`
}

// SpeedKmh returns the display speed of the player.
func (p *Player) SpeedKmh() float64 {
	return p.Velocity.Magnitude() * SpeedScale
}

// Clone returns a copy safe to hand outside a lock.
func (p *Player) Clone() *Player {
	c := *p
	return &c
}

// ClampHealth normalizes a health value: NaN becomes MaxHealth, then the
// result is clamped to [0, MaxHealth].
func ClampHealth(h float64) float64 {
	if math.IsNaN(h) {
		h = MaxHealth
	}
	return math.Max(0, math.Min(MaxHealth, h))
}

// PlayerUpdate is a partial state change. A nil field means "not included",
// never "set to zero".
type PlayerUpdate struct {
	Position *Vector3 `json:"position,omitempty"`
	Rotation *Vector3 `json:"rotation,omitempty"`
	Velocity *Vector3 `json:"velocity,omitempty"`
	Color    *string  `json:"color,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Health   *float64 `json:"health,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u *PlayerUpdate) Empty() bool {
	return u.Position == nil && u.Rotation == nil && u.Velocity == nil &&
		u.Color == nil && u.Name == nil && u.Health == nil
}

// ApplyTo merges the present fields of u into p, last write wins.
// Health passes through ClampHealth.
func (u *PlayerUpdate) ApplyTo(p *Player) {
	if u.Position != nil {
		p.Position = *u.Position
	}
	if u.Rotation != nil {
		p.Rotation = *u.Rotation
	}
	if u.Velocity != nil {
		p.Velocity = *u.Velocity
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Health != nil {
		p.Health = ClampHealth(*u.Health)
	}
}
