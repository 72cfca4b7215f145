// internal/store/store.go
package store

import (
	"sync"
	"time"

	"github.com/davidl09/car-sim/pkg/core"
)

// Store is a client's mirror of the game state: its own player plus every
// remote player it has heard about. Server broadcasts are merged last
// write wins; the local entry is also written directly each simulation
// tick, and a later server echo simply overwrites it.
type Store struct {
	mu        sync.Mutex
	players   map[string]*core.Player
	ownID     string
	worldSeed int64
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]*core.Player),
		now:     time.Now,
	}
}

// Bootstrap replaces the whole mirror from a full state snapshot.
func (s *Store) Bootstrap(ownID string, players []*core.Player, worldSeed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ownID = ownID
	s.worldSeed = worldSeed
	s.players = make(map[string]*core.Player, len(players))
	for _, p := range players {
		s.players[p.ID] = p.Clone()
	}
}

func (s *Store) OwnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownID
}

func (s *Store) WorldSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worldSeed
}

// Put inserts or replaces a full player record.
func (s *Store) Put(p *core.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p.Clone()
}

// Merge applies a partial update. An unknown id creates a fresh entry
// with defaults, since an update can arrive ahead of the join broadcast.
func (s *Store) Merge(id string, u *core.PlayerUpdate) *core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		p = &core.Player{ID: id, Health: core.MaxHealth, JoinTime: s.now()}
		s.players[id] = p
	}
	u.ApplyTo(p)
	p.LastUpdate = s.now()
	return p.Clone()
}

// Remove drops a player from the mirror. Unknown ids are no-ops.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
}

// Damage subtracts amount from a player's health, guarding against NaN
// creep and clamping to [0, MaxHealth]. Stamps LastCollision. Returns the
// resulting copy, or nil for unknown ids.
func (s *Store) Damage(id string, amount float64) *core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil
	}
	p.Health = core.ClampHealth(core.ClampHealth(p.Health) - amount)
	p.LastCollision = s.now()
	return p.Clone()
}

// ResetHealth restores a player to full health without touching position
// or vitals stamps. Returns the resulting copy, or nil for unknown ids.
func (s *Store) ResetHealth(id string) *core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil
	}
	p.Health = core.MaxHealth
	return p.Clone()
}

// ApplyRespawn resets a player to the spawn state announced by the server.
func (s *Store) ApplyRespawn(id string, pos, rot, vel core.Vector3, health float64, joinTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		p = &core.Player{ID: id}
		s.players[id] = p
	}
	p.Position = pos
	p.Rotation = rot
	p.Velocity = vel
	p.Health = core.ClampHealth(health)
	p.JoinTime = joinTime
	p.LastCollision = time.Time{}
}

// Get returns a copy of one player, or nil if unknown.
func (s *Store) Get(id string) *core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[id]; ok {
		return p.Clone()
	}
	return nil
}

// Self returns a copy of the local player, or nil before bootstrap.
func (s *Store) Self() *core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[s.ownID]; ok {
		return p.Clone()
	}
	return nil
}

// Others returns copies of every player except the local one.
func (s *Store) Others() []*core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*core.Player, 0, len(s.players))
	for id, p := range s.players {
		if id == s.ownID {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}
