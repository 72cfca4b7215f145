// internal/recorder/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/davidl09/car-sim/internal/config"
	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/pkg/core"
)

// sample is one recorded movement state.
type sample struct {
	PlayerID string       `json:"playerId"`
	Position core.Vector3 `json:"position"`
	Rotation core.Vector3 `json:"rotation"`
	Velocity core.Vector3 `json:"velocity"`
	Time     time.Time    `json:"time"`
}

// Backend stores session telemetry in memory and exports it to a JSON
// file when the session ends.
type Backend struct {
	cfg config.MemoryConfig

	mu         sync.Mutex
	worldSeed  int64
	startedAt  time.Time
	joins      []model.JoinRecord
	leaves     []model.LeaveRecord
	collisions []model.CollisionRecord
	samples    []sample
	active     bool
}

// New creates a new memory backend.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close exports any session still in progress.
func (b *Backend) Close() error {
	return b.EndSession()
}

// StartSession begins recording, resetting all collections.
func (b *Backend) StartSession(worldSeed int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.worldSeed = worldSeed
	b.startedAt = time.Now()
	b.joins = nil
	b.leaves = nil
	b.collisions = nil
	b.samples = nil
	b.active = true
	return nil
}

// EndSession finalizes and exports the session data. Ending an inactive
// session is a no-op.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return nil
	}
	b.active = false
	return b.exportJSON()
}

// RecordJoin records a player joining.
func (b *Backend) RecordJoin(p *core.Player) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.joins = append(b.joins, model.JoinRecord{
		PlayerID: p.ID,
		Name:     p.Name,
		Color:    p.Color,
		Time:     p.JoinTime,
	})
	return nil
}

// RecordLeave records a player disconnecting.
func (b *Backend) RecordLeave(playerID string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.leaves = append(b.leaves, model.LeaveRecord{PlayerID: playerID, Time: at})
	return nil
}

// RecordCollision records a resolved impact.
func (b *Backend) RecordCollision(rec *model.CollisionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.collisions = append(b.collisions, *rec)
	return nil
}

// RecordSample records one movement state.
func (b *Backend) RecordSample(playerID string, pos, rot, vel core.Vector3, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, sample{
		PlayerID: playerID,
		Position: pos,
		Rotation: rot,
		Velocity: vel,
		Time:     at,
	})
	return nil
}
