// internal/worldgen/generator.go
package worldgen

import (
	"math"

	"github.com/davidl09/car-sim/pkg/core"
)

// Feature stream salts. Each feature family draws from its own LCG stream
// so streams never interleave.
const (
	saltTerrain   = 0x74657272
	saltRoads     = 0x726f6164
	saltBuildings = 0x626c6467
	saltTrees     = 0x74726565
)

const (
	cityRoadSpacing = 64.0
	cityRoadWidth   = 8.0
	suburbRoadWidth = 6.0
	ruralRoadWidth  = 5.0

	buildingRoadMargin = 2.0
	placementRetries   = 8
)

// Generator produces world chunks deterministically from a seed. It holds
// no mutable state; Generate is safe to call from any goroutine.
type Generator struct {
	seed int64
}

func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed}
}

func (g *Generator) Seed() int64 { return g.seed }

// Generate builds the chunk at (cx, cz). The same generator inputs always
// yield a structurally identical chunk, across processes and platforms.
func (g *Generator) Generate(cx, cz int) *core.Chunk {
	c := &core.Chunk{
		X:       cx,
		Z:       cz,
		Terrain: g.terrainAt(cx, cz),
	}
	g.genRoads(c)
	g.genBuildings(c)
	g.genTrees(c)
	return c
}

func (g *Generator) terrainAt(cx, cz int) core.TerrainType {
	draw := newSeq(chunkSeed(g.seed, cx, cz) ^ saltTerrain).next()
	switch {
	case draw < 0.25:
		return core.TerrainCity
	case draw < 0.5:
		return core.TerrainSuburb
	default:
		return core.TerrainCountry
	}
}

func (g *Generator) genRoads(c *core.Chunk) {
	ox := float64(c.X * core.ChunkSize)
	oz := float64(c.Z * core.ChunkSize)
	s := newSeq(chunkSeed(g.seed, c.X, c.Z) ^ saltRoads)

	switch c.Terrain {
	case core.TerrainCity:
		// Regular grid at fixed spacing. Grid lines sit on chunk-relative
		// offsets so adjacent city chunks line up.
		for off := 0.0; off < core.ChunkSize; off += cityRoadSpacing {
			c.Roads = append(c.Roads,
				core.Road{X1: ox + off, Z1: oz, X2: ox + off, Z2: oz + core.ChunkSize, Width: cityRoadWidth},
				core.Road{X1: ox, Z1: oz + off, X2: ox + core.ChunkSize, Z2: oz + off, Width: cityRoadWidth},
			)
		}

	case core.TerrainSuburb:
		// One or two arterials plus a few irregular cross streets.
		arterials := 1 + s.intn(2)
		for i := 0; i < arterials; i++ {
			z := oz + s.rangef(0.2, 0.8)*core.ChunkSize
			c.Roads = append(c.Roads, core.Road{X1: ox, Z1: z, X2: ox + core.ChunkSize, Z2: z, Width: suburbRoadWidth})
		}
		for i, n := 0, 2+s.intn(3); i < n; i++ {
			x := ox + s.rangef(0.1, 0.9)*core.ChunkSize
			z1 := oz + s.rangef(0, 0.3)*core.ChunkSize
			z2 := oz + s.rangef(0.7, 1.0)*core.ChunkSize
			c.Roads = append(c.Roads, core.Road{X1: x, Z1: z1, X2: x, Z2: z2, Width: suburbRoadWidth})
		}

	case core.TerrainCountry:
		// A single spine with occasional branches.
		z := oz + s.rangef(0.3, 0.7)*core.ChunkSize
		c.Roads = append(c.Roads, core.Road{X1: ox, Z1: z, X2: ox + core.ChunkSize, Z2: z, Width: ruralRoadWidth})
		if s.next() < 0.3 {
			x := ox + s.rangef(0.2, 0.8)*core.ChunkSize
			c.Roads = append(c.Roads, core.Road{X1: x, Z1: oz, X2: x, Z2: oz + core.ChunkSize, Width: ruralRoadWidth})
		}
		if s.next() < 0.15 {
			c.Roads = append(c.Roads, core.Road{X1: ox, Z1: oz, X2: ox + core.ChunkSize, Z2: oz + core.ChunkSize, Width: ruralRoadWidth})
		}
	}
}

func (g *Generator) genBuildings(c *core.Chunk) {
	if c.Terrain == core.TerrainCountry {
		return
	}
	ox := float64(c.X * core.ChunkSize)
	oz := float64(c.Z * core.ChunkSize)
	s := newSeq(chunkSeed(g.seed, c.X, c.Z) ^ saltBuildings)

	clusters := 2 + s.intn(2)
	perCluster := 2
	minH, maxH := 5.0, 15.0
	if c.Terrain == core.TerrainCity {
		clusters = 3 + s.intn(3)
		perCluster = 4
		minH, maxH = 15.0, 60.0
	}

	for i := 0; i < clusters; i++ {
		centerX := ox + s.rangef(0.15, 0.85)*core.ChunkSize
		centerZ := oz + s.rangef(0.15, 0.85)*core.ChunkSize
		for j, n := 0, perCluster+s.intn(perCluster+1); j < n; j++ {
			b := core.Building{
				Height: s.rangef(minH, maxH),
				Width:  s.rangef(8, 20),
				Depth:  s.rangef(8, 20),
			}
			// Polar placement around the cluster center, re-rolled a
			// bounded number of times when it lands on a road.
			placed := false
			for try := 0; try < placementRetries; try++ {
				ang := s.rangef(0, 2*math.Pi)
				dist := s.rangef(5, 40)
				b.X = centerX + math.Cos(ang)*dist
				b.Z = centerZ + math.Sin(ang)*dist
				pad := math.Max(b.Width, b.Depth)/2 + buildingRoadMargin
				if !roadBlocked(c.Roads, b.X, b.Z, pad) {
					placed = true
					break
				}
			}
			if placed {
				c.Buildings = append(c.Buildings, b)
			}
		}
	}
}

func (g *Generator) genTrees(c *core.Chunk) {
	if c.Terrain == core.TerrainCity {
		return
	}
	ox := float64(c.X * core.ChunkSize)
	oz := float64(c.Z * core.ChunkSize)
	s := newSeq(chunkSeed(g.seed, c.X, c.Z) ^ saltTrees)

	count := 20 + s.intn(21)
	if c.Terrain == core.TerrainSuburb {
		count = 5 + s.intn(8)
	}
	for i := 0; i < count; i++ {
		t := core.Tree{
			X:      ox + s.next()*core.ChunkSize,
			Z:      oz + s.next()*core.ChunkSize,
			Height: s.rangef(4, 10),
			Radius: s.rangef(0.5, 1.5),
		}
		if roadBlocked(c.Roads, t.X, t.Z, t.Radius+1) {
			continue
		}
		c.Trees = append(c.Trees, t)
	}
}

// roadBlocked reports whether a point padded by pad lands inside any road
// footprint. Axis-aligned segments use a rectangle test, diagonals the
// perpendicular distance to the segment.
func roadBlocked(roads []core.Road, x, z, pad float64) bool {
	for _, r := range roads {
		half := r.Width/2 + pad
		switch {
		case r.X1 == r.X2:
			if math.Abs(x-r.X1) <= half &&
				z >= math.Min(r.Z1, r.Z2)-half && z <= math.Max(r.Z1, r.Z2)+half {
				return true
			}
		case r.Z1 == r.Z2:
			if math.Abs(z-r.Z1) <= half &&
				x >= math.Min(r.X1, r.X2)-half && x <= math.Max(r.X1, r.X2)+half {
				return true
			}
		default:
			if segmentDistance(r, x, z) <= half {
				return true
			}
		}
	}
	return false
}

// segmentDistance is the distance from (x, z) to the road's center line
// segment.
func segmentDistance(r core.Road, x, z float64) float64 {
	dx, dz := r.X2-r.X1, r.Z2-r.Z1
	lenSq := dx*dx + dz*dz
	if lenSq == 0 {
		return math.Hypot(x-r.X1, z-r.Z1)
	}
	t := ((x-r.X1)*dx + (z-r.Z1)*dz) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(x-(r.X1+t*dx), z-(r.Z1+t*dz))
}
