package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/davidl09/car-sim/internal/influx"
	"github.com/davidl09/car-sim/internal/registry"
	"github.com/davidl09/car-sim/internal/worldgen"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Registry *registry.Registry
	Atlas    *worldgen.Atlas
	Influx   *influx.Manager
	Logger   zerolog.Logger
	Interval time.Duration

	// BroadcastCount snapshots the hub's lifetime broadcast counter.
	BroadcastCount func() uint64
}

// Status is one sampled runtime snapshot.
type Status struct {
	Players      int
	CachedChunks int
	Broadcasts   uint64
	Goroutines   int
	HeapAllocMB  float64
}

// Service periodically samples server runtime stats and ships them to
// InfluxDB when a manager is available.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot collects the current runtime status.
func (s *Service) Snapshot() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(mem.HeapAlloc) / (1 << 20),
	}
	if s.deps.Registry != nil {
		st.Players = s.deps.Registry.Count()
	}
	if s.deps.Atlas != nil {
		st.CachedChunks = s.deps.Atlas.Len()
	}
	if s.deps.BroadcastCount != nil {
		st.Broadcasts = s.deps.BroadcastCount()
	}
	return st
}

// Start starts the monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug().Dur("interval", s.deps.Interval).Msg("status monitor started")
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				st := s.Snapshot()
				s.deps.Logger.Debug().
					Int("players", st.Players).
					Int("chunks", st.CachedChunks).
					Uint64("broadcasts", st.Broadcasts).
					Int("goroutines", st.Goroutines).
					Msg("server status")
				s.ship(st)
			}
		}
	}()

	return nil
}

// Stop stops the monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

func (s *Service) ship(st Status) {
	if s.deps.Influx == nil {
		return
	}
	point := influxdb2.NewPoint(
		"server_status",
		map[string]string{"service": "carsim-server"},
		map[string]interface{}{
			"players":      st.Players,
			"cachedChunks": st.CachedChunks,
			"broadcasts":   int64(st.Broadcasts),
			"goroutines":   st.Goroutines,
			"heapAllocMB":  st.HeapAllocMB,
		},
		time.Now(),
	)
	bucket := viper.GetString("influx.bucket")
	if err := s.deps.Influx.WritePoint(context.Background(), bucket, point); err != nil {
		s.deps.Logger.Error().Err(err).Msg("failed to write status point")
	}
}
