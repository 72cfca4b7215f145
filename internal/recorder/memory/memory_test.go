package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/internal/config"
	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/pkg/core"
)

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(777))

	joined := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, b.RecordJoin(&core.Player{ID: "p1", Name: "Racer", Color: "#e6194b", JoinTime: joined}))
	require.NoError(t, b.RecordSample("p1", core.Vector3{X: 5}, core.Vector3{Y: 1}, core.Vector3{X: 0.3}, joined.Add(time.Second)))
	require.NoError(t, b.RecordCollision(&model.CollisionRecord{PlayerID: "p1", OtherID: "p2", Damage: 12}))
	require.NoError(t, b.RecordLeave("p1", joined.Add(time.Minute)))
	require.NoError(t, b.EndSession())

	f, err := os.Open(b.GetExportedFilePath())
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export sessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, int64(777), export.WorldSeed)
	require.Len(t, export.Joins, 1)
	assert.Equal(t, "Racer", export.Joins[0].Name)
	require.Len(t, export.Samples, 1)
	assert.Equal(t, 5.0, export.Samples[0].Position.X)
	require.Len(t, export.Collisions, 1)
	assert.Equal(t, 12.0, export.Collisions[0].Damage)
	require.Len(t, export.Leaves, 1)
}

func TestEndSessionIdempotent(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartSession(1))
	require.NoError(t, b.EndSession())
	require.NoError(t, b.EndSession(), "second end is a no-op")
}

func TestStartSessionResets(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: false})
	require.NoError(t, b.StartSession(1))
	require.NoError(t, b.RecordLeave("p1", time.Now()))
	require.NoError(t, b.StartSession(2))
	assert.Empty(t, b.leaves)
}
