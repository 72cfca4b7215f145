package monitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/internal/registry"
	"github.com/davidl09/car-sim/internal/worldgen"
)

func TestSnapshot(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Add("a")
	reg.Add("b")
	atlas := worldgen.NewAtlas(worldgen.NewGenerator(1))
	atlas.Get(0, 0)

	s := NewService(Dependencies{
		Registry:       reg,
		Atlas:          atlas,
		Logger:         zerolog.Nop(),
		BroadcastCount: func() uint64 { return 7 },
	})

	st := s.Snapshot()
	assert.Equal(t, 2, st.Players)
	assert.Equal(t, 1, st.CachedChunks)
	assert.Equal(t, uint64(7), st.Broadcasts)
	assert.Greater(t, st.Goroutines, 0)
}

func TestStartStop(t *testing.T) {
	s := NewService(Dependencies{
		Logger:   zerolog.Nop(),
		Interval: 10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "double start is a no-op")

	require.Eventually(t, s.IsRunning, time.Second, 5*time.Millisecond)
	s.Stop()
	require.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)
}
