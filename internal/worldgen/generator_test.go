package worldgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/pkg/core"
)

func TestGenerateDeterministic(t *testing.T) {
	a := NewGenerator(12345)
	b := NewGenerator(12345)

	for _, coord := range [][2]int{{0, 0}, {3, -7}, {-100, 250}, {1 << 20, -(1 << 20)}} {
		ca := a.Generate(coord[0], coord[1])
		cb := b.Generate(coord[0], coord[1])
		assert.Equal(t, ca, cb, "chunk %v", coord)
	}
}

func TestGenerateSeedSensitive(t *testing.T) {
	a := NewGenerator(1).Generate(0, 0)
	b := NewGenerator(2).Generate(0, 0)
	// terrain, roads or obstacles must differ somewhere
	assert.NotEqual(t, a, b)
}

func TestTerrainDistribution(t *testing.T) {
	g := NewGenerator(99)
	counts := map[core.TerrainType]int{}
	for x := -10; x < 10; x++ {
		for z := -10; z < 10; z++ {
			counts[g.Generate(x, z).Terrain]++
		}
	}
	// all three tiers should appear over 400 chunks
	assert.Greater(t, counts[core.TerrainCity], 0)
	assert.Greater(t, counts[core.TerrainSuburb], 0)
	assert.Greater(t, counts[core.TerrainCountry], 0)
	// country is the most probable tier
	assert.Greater(t, counts[core.TerrainCountry], counts[core.TerrainCity]/2)
}

func TestTerrainFeaturesByTier(t *testing.T) {
	g := NewGenerator(7)
	for x := -8; x < 8; x++ {
		for z := -8; z < 8; z++ {
			c := g.Generate(x, z)
			require.NotEmpty(t, c.Roads, "every chunk has at least one road")
			switch c.Terrain {
			case core.TerrainCity:
				assert.Empty(t, c.Trees, "no trees in city chunks")
				assert.NotEmpty(t, c.Buildings)
			case core.TerrainCountry:
				assert.Empty(t, c.Buildings, "no buildings in country chunks")
			}
		}
	}
}

func TestBuildingsAvoidRoads(t *testing.T) {
	g := NewGenerator(4242)
	for x := 0; x < 6; x++ {
		for z := 0; z < 6; z++ {
			c := g.Generate(x, z)
			for _, b := range c.Buildings {
				pad := math.Max(b.Width, b.Depth)/2 + buildingRoadMargin
				assert.False(t, roadBlocked(c.Roads, b.X, b.Z, pad),
					"building at (%.1f, %.1f) in chunk (%d, %d) sits on a road", b.X, b.Z, x, z)
			}
		}
	}
}

func TestFeaturesInsideChunkBounds(t *testing.T) {
	g := NewGenerator(1)
	c := g.Generate(-3, 5)
	ox, oz := float64(-3*core.ChunkSize), float64(5*core.ChunkSize)
	for _, tr := range c.Trees {
		assert.GreaterOrEqual(t, tr.X, ox)
		assert.Less(t, tr.X, ox+core.ChunkSize)
		assert.GreaterOrEqual(t, tr.Z, oz)
		assert.Less(t, tr.Z, oz+core.ChunkSize)
	}
}

func TestAtlasCachesAndEvicts(t *testing.T) {
	atlas := NewAtlas(NewGenerator(55))

	c1 := atlas.Get(0, 0)
	c2 := atlas.Get(0, 0)
	assert.Same(t, c1, c2, "second Get returns the cached chunk")

	for x := -5; x <= 5; x++ {
		for z := -5; z <= 5; z++ {
			atlas.Get(x, z)
		}
	}
	require.Equal(t, 121, atlas.Len())

	center := []core.Vector3{{X: 10, Z: 10}} // chunk (0, 0)
	evicted := atlas.EvictBeyond(center, 2)
	assert.Equal(t, 121-25, evicted)
	assert.Equal(t, 25, atlas.Len())

	// evicted chunks regenerate identically
	again := atlas.Get(5, 5)
	assert.Equal(t, NewGenerator(55).Generate(5, 5), again)

	assert.Equal(t, 25, atlas.EvictBeyond(nil, 3))
	assert.Equal(t, 0, atlas.Len())
}

func TestTreesNear(t *testing.T) {
	atlas := NewAtlas(NewGenerator(55))

	// find a country chunk and query around one of its trees
	g := NewGenerator(55)
	for x := 0; x < 20; x++ {
		c := g.Generate(x, 0)
		if c.Terrain == core.TerrainCountry && len(c.Trees) > 0 {
			tr := c.Trees[0]
			near := atlas.TreesNear(core.Vector3{X: tr.X, Z: tr.Z}, 5)
			require.NotEmpty(t, near)
			return
		}
	}
	t.Fatal("no country chunk with trees in search range")
}
