package sqlitestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/internal/config"
	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/pkg/core"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(config.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		FlushInterval: time.Hour, // flush manually in tests
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	return b
}

func TestSessionLifecycle(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.StartSession(42))
	require.NoError(t, b.RecordJoin(&core.Player{ID: "p1", Name: "Racer", JoinTime: time.Now()}))
	require.NoError(t, b.RecordSample("p1", core.Vector3{X: 1}, core.Vector3{}, core.Vector3{Z: 0.2}, time.Now()))
	require.NoError(t, b.RecordCollision(&model.CollisionRecord{PlayerID: "p1", Damage: 9}))
	require.NoError(t, b.RecordLeave("p1", time.Now()))
	require.NoError(t, b.EndSession())

	var sessions []model.Session
	require.NoError(t, b.db.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(42), sessions[0].WorldSeed)
	assert.True(t, sessions[0].EndedAt.Valid)

	var events []model.PlayerEvent
	require.NoError(t, b.db.Order("id").Find(&events).Error)
	require.Len(t, events, 3)
	assert.Equal(t, "join", events[0].Kind)
	assert.Equal(t, "collision", events[1].Kind)
	assert.Equal(t, "leave", events[2].Kind)
	assert.Equal(t, sessions[0].ID, events[0].SessionID)

	var samples []model.StateSample
	require.NoError(t, b.db.Find(&samples).Error)
	require.Len(t, samples, 1)
	assert.Equal(t, 1.0, samples[0].PosX)

	require.NoError(t, b.Close())
}

func TestFlushPersistsPending(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartSession(1))
	require.NoError(t, b.RecordLeave("p1", time.Now()))

	b.flush()

	var count int64
	require.NoError(t, b.db.Model(&model.PlayerEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, b.Close())
}
