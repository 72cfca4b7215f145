// internal/collision/resolver.go
package collision

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/davidl09/car-sim/internal/store"
	"github.com/davidl09/car-sim/pkg/core"
)

const (
	// SpawnProtection is the window after join or respawn during which a
	// player takes no collision damage.
	SpawnProtection = 10 * time.Second

	// DamageCooldown throttles repeat damage from the same pair or
	// obstacle while vehicles stay in contact.
	DamageCooldown = 2 * time.Second

	MaxDamage      = 30.0
	MinDamageSpeed = 0.15

	vehicleHalfWidth  = 1.0
	vehicleHalfLength = 2.0

	restitution    = 0.5
	vehicleDamping = 0.65
	treeDamping    = 0.35

	// broad-phase cutoff for the pair test
	proximityCutoff = 3 * 2 * vehicleHalfLength
)

// MaxSpeed is the velocity magnitude shown as 200 km/h. Impact speed is
// expressed as a fraction of it.
const MaxSpeed = 1.0

// TreeSource yields nearby tree obstacles. *worldgen.Atlas satisfies it.
type TreeSource interface {
	TreesNear(pos core.Vector3, radius float64) []core.Tree
}

// Event is one resolved impact against the local player.
type Event struct {
	PlayerID    string
	OtherID     string // empty for obstacle hits
	Obstacle    string // "tree:<x>:<z>" or empty
	ImpactSpeed float64
	Damage      float64
}

// Resolver detects and resolves collisions involving the local player
// only. Each client runs its own resolver and damages itself; a
// symmetric crash produces the same damage on both sides because both
// compute it from the same averaged impact speed.
type Resolver struct {
	store *store.Store
	trees TreeSource

	mu        sync.Mutex
	cooldowns map[string]time.Time
	now       func() time.Time
}

func NewResolver(st *store.Store, trees TreeSource) *Resolver {
	return &Resolver{
		store:     st,
		trees:     trees,
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Step runs one resolution pass: every remote vehicle, then nearby trees.
// Push-back always applies; damage is gated by spawn protection and the
// per-contact cooldown. Returns the events that dealt damage.
func (r *Resolver) Step() []Event {
	self := r.store.Self()
	if self == nil {
		return nil
	}
	now := r.now()
	protected := now.Sub(self.JoinTime) < SpawnProtection

	var events []Event
	for _, other := range r.store.Others() {
		dx := self.Position.X - other.Position.X
		dz := self.Position.Z - other.Position.Z
		if dx*dx+dz*dz > proximityCutoff*proximityCutoff {
			continue
		}
		pen := vehicleOverlap(self, other)
		if pen <= 0 {
			continue
		}
		r.pushBack(self, other.Position, pen, vehicleDamping)

		impact := (self.Velocity.Magnitude() + other.Velocity.Magnitude()) / 2
		key := pairKey(self.ID, other.ID)
		if ev, ok := r.applyDamage(self, key, impact, now, protected); ok {
			ev.OtherID = other.ID
			events = append(events, ev)
		}
		// push-back moved us; later checks use the updated position
		self = r.store.Self()
	}

	if r.trees != nil {
		for _, tr := range r.trees.TreesNear(self.Position, proximityCutoff) {
			treePos := core.Vector3{X: tr.X, Z: tr.Z}
			pen := vehicleHalfWidth + tr.Radius - self.Position.DistanceXZ(treePos)
			if pen <= 0 {
				continue
			}
			r.pushBack(self, treePos, pen, treeDamping)

			key := fmt.Sprintf("tree:%.1f:%.1f", tr.X, tr.Z)
			if ev, ok := r.applyDamage(self, key, self.Velocity.Magnitude(), now, protected); ok {
				ev.Obstacle = key
				events = append(events, ev)
			}
			self = r.store.Self()
		}
	}

	r.purgeStale(now)
	return events
}

// Damage computes the health cost of an impact at the given speed.
func Damage(impactSpeed float64) float64 {
	if impactSpeed < MinDamageSpeed {
		return 0
	}
	return math.Min(MaxDamage, impactSpeed/MaxSpeed*MaxDamage)
}

func (r *Resolver) applyDamage(self *core.Player, key string, impact float64, now time.Time, protected bool) (Event, bool) {
	if protected {
		return Event{}, false
	}
	dmg := Damage(impact)
	if dmg <= 0 {
		return Event{}, false
	}

	r.mu.Lock()
	if last, ok := r.cooldowns[key]; ok && now.Sub(last) < DamageCooldown {
		r.mu.Unlock()
		return Event{}, false
	}
	r.cooldowns[key] = now
	r.mu.Unlock()

	r.store.Damage(self.ID, dmg)
	return Event{PlayerID: self.ID, ImpactSpeed: impact, Damage: dmg}, true
}

// pushBack separates the local vehicle from whatever it hit and bleeds
// off velocity. Writes through the store so the next outbound update
// carries the corrected state.
func (r *Resolver) pushBack(self *core.Player, from core.Vector3, penetration, damping float64) {
	sep := core.Vector3{X: self.Position.X - from.X, Z: self.Position.Z - from.Z}.Normalize()
	if sep == (core.Vector3{}) {
		sep = core.Vector3{X: 1}
	}
	pos := self.Position.Add(sep.Scale(penetration * restitution))
	vel := self.Velocity.Scale(damping)
	r.store.Merge(self.ID, &core.PlayerUpdate{Position: &pos, Velocity: &vel})
}

// vehicleOverlap returns the penetration depth between two vehicle
// footprints, or <= 0 when they are apart. Footprints are approximated
// by the axis-aligned extents of each rotated rectangle.
func vehicleOverlap(a, b *core.Player) float64 {
	axX, axZ := footprintExtents(a.Rotation.Y)
	bxX, bxZ := footprintExtents(b.Rotation.Y)

	dx := math.Abs(a.Position.X - b.Position.X)
	dz := math.Abs(a.Position.Z - b.Position.Z)
	penX := axX + bxX - dx
	penZ := axZ + bxZ - dz
	if penX <= 0 || penZ <= 0 {
		return 0
	}
	return math.Min(penX, penZ)
}

func footprintExtents(yaw float64) (ex, ez float64) {
	sin, cos := math.Abs(math.Sin(yaw)), math.Abs(math.Cos(yaw))
	ex = sin*vehicleHalfLength + cos*vehicleHalfWidth
	ez = cos*vehicleHalfLength + sin*vehicleHalfWidth
	return ex, ez
}

func pairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1]
}

// purgeStale drops cooldown entries old enough to be inert, keeping the
// map bounded over a long session.
func (r *Resolver) purgeStale(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, at := range r.cooldowns {
		if now.Sub(at) >= DamageCooldown {
			delete(r.cooldowns, key)
		}
	}
}
