// internal/worldgen/atlas.go
package worldgen

import (
	"sync"

	"github.com/davidl09/car-sim/pkg/core"
)

type chunkKey struct {
	X, Z int
}

// Atlas caches generated chunks. Chunks are immutable, so eviction is
// always safe: a re-generated chunk is identical to the evicted one.
type Atlas struct {
	gen    *Generator
	mu     sync.RWMutex
	chunks map[chunkKey]*core.Chunk
}

func NewAtlas(gen *Generator) *Atlas {
	return &Atlas{
		gen:    gen,
		chunks: make(map[chunkKey]*core.Chunk),
	}
}

// Get returns the chunk at (cx, cz), generating and caching it on first
// access.
func (a *Atlas) Get(cx, cz int) *core.Chunk {
	key := chunkKey{cx, cz}

	a.mu.RLock()
	c, ok := a.chunks[key]
	a.mu.RUnlock()
	if ok {
		return c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok = a.chunks[key]; ok {
		return c
	}
	c = a.gen.Generate(cx, cz)
	a.chunks[key] = c
	return c
}

// Len returns the number of cached chunks.
func (a *Atlas) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chunks)
}

// EvictBeyond drops cached chunks whose Chebyshev distance from every
// center position exceeds keepRadius chunks. Returns the number evicted.
// With no centers everything is dropped.
func (a *Atlas) EvictBeyond(centers []core.Vector3, keepRadius int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	evicted := 0
	for key, c := range a.chunks {
		if nearAny(c, centers, keepRadius) {
			continue
		}
		delete(a.chunks, key)
		evicted++
	}
	return evicted
}

func nearAny(c *core.Chunk, centers []core.Vector3, keepRadius int) bool {
	for _, p := range centers {
		dx := c.X - core.ChunkCoord(p.X)
		dz := c.Z - core.ChunkCoord(p.Z)
		if dx < 0 {
			dx = -dx
		}
		if dz < 0 {
			dz = -dz
		}
		if dx <= keepRadius && dz <= keepRadius {
			return true
		}
	}
	return false
}

// TreesNear returns all trees within radius of pos, scanning the 3x3
// chunk neighborhood around it. Missing chunks are generated on demand.
func (a *Atlas) TreesNear(pos core.Vector3, radius float64) []core.Tree {
	cx := core.ChunkCoord(pos.X)
	cz := core.ChunkCoord(pos.Z)

	var out []core.Tree
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			for _, t := range a.Get(cx+dx, cz+dz).Trees {
				if pos.DistanceXZ(core.Vector3{X: t.X, Z: t.Z}) <= radius+t.Radius {
					out = append(out, t)
				}
			}
		}
	}
	return out
}
