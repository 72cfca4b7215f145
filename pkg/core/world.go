// pkg/core/world.go
package core

import "math"

// ChunkSize is the side length of one world chunk in world units.
const ChunkSize = 256

// TerrainType classifies a chunk's density tier.
type TerrainType string

const (
	TerrainCity    TerrainType = "city"
	TerrainSuburb  TerrainType = "suburb"
	TerrainCountry TerrainType = "country"
)

// Building is an axis-aligned box obstacle. X and Z are the footprint
// center in world coordinates.
type Building struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
}

// Tree is a cylindrical obstacle centered at (X, Z).
type Tree struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

// Road is a straight segment with a width. Segments may be axis-aligned or
// diagonal.
type Road struct {
	X1    float64 `json:"x1"`
	Z1    float64 `json:"z1"`
	X2    float64 `json:"x2"`
	Z2    float64 `json:"z2"`
	Width float64 `json:"width"`
}

// Chunk is one generated square of the world. Chunks are immutable once
// generated: the same seed and coordinates always produce the same chunk.
type Chunk struct {
	X         int         `json:"x"`
	Z         int         `json:"z"`
	Terrain   TerrainType `json:"terrain"`
	Buildings []Building  `json:"buildings"`
	Trees     []Tree      `json:"trees"`
	Roads     []Road      `json:"roads"`
}

// ChunkCoord returns the chunk coordinate containing a world position on
// one axis.
func ChunkCoord(v float64) int {
	return int(math.Floor(v / ChunkSize))
}
