// internal/registry/registry.go
package registry

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/davidl09/car-sim/pkg/core"
)

const (
	spawnExtent = 50.0
	maxNameLen  = 24
)

var nameAdjectives = []string{
	"Swift", "Turbo", "Crimson", "Midnight", "Neon",
	"Rusty", "Blazing", "Silent", "Lucky", "Rogue",
}

var nameNouns = []string{
	"Racer", "Drifter", "Comet", "Viper", "Falcon",
	"Bandit", "Phantom", "Stallion", "Rocket", "Nomad",
}

// Registry is the server's authoritative table of connected players,
// keyed by connection id. All methods are safe for concurrent use; every
// returned Player is a copy.
//
// Unknown ids are not errors: lookups return nil and mutations are no-ops,
// since a disconnect can race any in-flight message.
type Registry struct {
	mu      sync.Mutex
	players map[string]*core.Player
	names   map[string]string // lowercased name -> owning connection id
	rng     *rand.Rand
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		players: make(map[string]*core.Player),
		names:   make(map[string]string),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// Add creates a player for a new connection: random unique name, random
// spawn inside the spawn square, full health, protection armed from now.
func (r *Registry) Add(connID string) *core.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &core.Player{
		ID:       connID,
		Name:     r.randomNameLocked(connID),
		Position: r.spawnPositionLocked(),
		Rotation: core.Vector3{Y: r.rng.Float64() * 2 * math.Pi},
		Color:    core.VehicleColors[r.rng.Intn(len(core.VehicleColors))],
		Health:   core.MaxHealth,
		JoinTime: r.now(),
	}
	r.players[connID] = p
	r.names[strings.ToLower(p.Name)] = connID
	return p.Clone()
}

// Get returns a copy of the player, or nil if the id is unknown.
func (r *Registry) Get(connID string) *core.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[connID]; ok {
		return p.Clone()
	}
	return nil
}

// Update merges a partial update into the player, last write wins. A
// requested name is normalized and de-conflicted; the returned copy
// carries the effective name. Returns nil for unknown ids.
func (r *Registry) Update(connID string, u *core.PlayerUpdate) *core.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[connID]
	if !ok {
		return nil
	}
	if u.Name != nil {
		resolved := r.resolveNameLocked(*u.Name, connID)
		if resolved == "" {
			u.Name = nil
		} else {
			delete(r.names, strings.ToLower(p.Name))
			r.names[strings.ToLower(resolved)] = connID
			u.Name = &resolved
		}
	}
	u.ApplyTo(p)
	p.LastUpdate = r.now()
	return p.Clone()
}

// SetName applies a rename only. Returns the player with the effective
// name, or nil for unknown ids.
func (r *Registry) SetName(connID, name string) *core.Player {
	return r.Update(connID, &core.PlayerUpdate{Name: &name})
}

// Respawn re-rolls the spawn state: fresh position and facing, zero
// velocity, full health, protection re-armed. Name and color persist.
// Returns nil for unknown ids.
func (r *Registry) Respawn(connID string) *core.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[connID]
	if !ok {
		return nil
	}
	p.Position = r.spawnPositionLocked()
	p.Rotation = core.Vector3{Y: r.rng.Float64() * 2 * math.Pi}
	p.Velocity = core.Vector3{}
	p.Health = core.MaxHealth
	p.JoinTime = r.now()
	p.LastCollision = time.Time{}
	return p.Clone()
}

// Remove drops the player and frees its name. Idempotent; reports whether
// a player was present.
func (r *Registry) Remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[connID]
	if !ok {
		return false
	}
	delete(r.names, strings.ToLower(p.Name))
	delete(r.players, connID)
	return true
}

// Players returns a snapshot copy of all connected players.
func (r *Registry) Players() []*core.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*core.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Clone())
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

func (r *Registry) spawnPositionLocked() core.Vector3 {
	return core.Vector3{
		X: (r.rng.Float64()*2 - 1) * spawnExtent,
		Z: (r.rng.Float64()*2 - 1) * spawnExtent,
	}
}

func (r *Registry) randomNameLocked(selfID string) string {
	base := nameAdjectives[r.rng.Intn(len(nameAdjectives))] +
		nameNouns[r.rng.Intn(len(nameNouns))]
	return r.deconflictLocked(base, selfID)
}

// resolveNameLocked normalizes a requested name and resolves conflicts
// case-insensitively. An empty result means "keep the current name".
func (r *Registry) resolveNameLocked(requested, selfID string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		return ""
	}
	if runes := []rune(name); len(runes) > maxNameLen {
		name = string(runes[:maxNameLen])
	}
	return r.deconflictLocked(name, selfID)
}

func (r *Registry) deconflictLocked(base, selfID string) string {
	name := base
	for n := 2; ; n++ {
		owner, taken := r.names[strings.ToLower(name)]
		if !taken || owner == selfID {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, n)
	}
}
