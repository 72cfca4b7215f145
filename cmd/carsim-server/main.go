// cmd/carsim-server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/davidl09/car-sim/internal/config"
	"github.com/davidl09/car-sim/internal/hub"
	"github.com/davidl09/car-sim/internal/influx"
	"github.com/davidl09/car-sim/internal/logging"
	"github.com/davidl09/car-sim/internal/monitor"
	intotel "github.com/davidl09/car-sim/internal/otel"
	"github.com/davidl09/car-sim/internal/recorder"
	"github.com/davidl09/car-sim/internal/registry"
	"github.com/davidl09/car-sim/internal/worldgen"
	"github.com/davidl09/car-sim/pkg/core"
)

const appName = "carsim-server"

func main() {
	configDir := flag.String("config", ".", "directory containing carsim.cfg.json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	if err := config.Load(configDir); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager := logging.NewManager()
	err := logManager.Setup(logging.Options{
		Level:          config.GetString("logLevel"),
		Console:        os.Stderr,
		LogToFile:      config.GetBool("logToFile"),
		LogsDir:        config.GetString("logsDir"),
		AppName:        appName,
		GraylogEnabled: config.GetBool("graylog.enabled"),
		GraylogAddress: config.GetString("graylog.address"),
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logManager.Close()
	log := logManager.Logger()

	serverCfg := config.GetServerConfig()
	worldCfg := config.GetWorldConfig()
	storageCfg := config.GetStorageConfig()
	influxCfg := config.GetInfluxConfig()

	seed := worldCfg.Seed
	if seed == 0 {
		seed = rand.New(rand.NewSource(time.Now().UnixNano())).Int63()
	}
	log.Info().Int64("seed", seed).Msg("world seed resolved")

	atlas := worldgen.NewAtlas(worldgen.NewGenerator(seed))
	reg := registry.NewRegistry()

	backend, err := recorder.NewBackend(storageCfg, log)
	if err != nil {
		return fmt.Errorf("creating recorder backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing recorder backend: %w", err)
	}
	if err := backend.StartSession(seed); err != nil {
		log.Error().Err(err).Msg("failed to start recorder session")
	}

	otelCfg := config.GetOTelConfig()
	var otelProvider *intotel.Provider
	if otelCfg.Enabled {
		providerCfg := intotel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ExportInterval: otelCfg.ExportInterval,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		}
		if providerCfg.Endpoint == "" {
			providerCfg.MetricWriter = os.Stdout
		}
		otelProvider, err = intotel.New(providerCfg)
		if err != nil {
			log.Warn().Err(err).Msg("otel metrics disabled")
			otelProvider = nil
		}
	}

	var influxManager *influx.Manager
	if influxCfg.Enabled {
		backupPath := filepath.Join(config.GetString("logsDir"), "influx_backup.gz")
		influxManager = influx.NewManager(log, backupPath)
		if err := influxManager.Connect(); err != nil {
			log.Warn().Err(err).Msg("influx unavailable, metrics buffered to backup file")
		}
	}

	h, err := hub.New(hub.Config{
		Logger:         log,
		Registry:       reg,
		Recorder:       backend,
		WorldSeed:      seed,
		UpdateRateHz:   serverCfg.UpdateRateHz,
		MaxConnections: serverCfg.MaxConnections,
		AllowedOrigins: serverCfg.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("creating hub: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go h.Run(hubCtx)

	monitorService := monitor.NewService(monitor.Dependencies{
		Registry:       reg,
		Atlas:          atlas,
		Influx:         influxManager,
		Logger:         log,
		Interval:       viper.GetDuration("monitor.interval"),
		BroadcastCount: h.BroadcastCount,
	})
	if err := monitorService.Start(); err != nil {
		log.Warn().Err(err).Msg("monitor failed to start")
	}

	evictDone := make(chan struct{})
	go chunkLoop(atlas, reg, worldCfg, log, evictDone)

	wsServer := hub.NewServer(h)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","players":%d}`, reg.Count())
	})

	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		WriteTimeout: serverCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	close(evictDone)
	stopHub()
	monitorService.Stop()

	if err := backend.EndSession(); err != nil {
		log.Error().Err(err).Msg("failed to end recorder session")
	}
	if err := backend.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close recorder backend")
	}
	if influxManager != nil {
		influxManager.Close()
	}
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown incomplete")
		}
	}

	log.Info().Msg("goodbye")
	return nil
}

// chunkLoop keeps the server's chunk cache in step with where players
// actually are: warm around every connected player, released far away.
func chunkLoop(atlas *worldgen.Atlas, reg *registry.Registry, cfg config.WorldConfig, log zerolog.Logger, done <-chan struct{}) {
	interval := cfg.EvictInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			evicted := refreshChunks(atlas, reg, cfg.KeepRadius)
			log.Debug().Int("evicted", evicted).Int("cached", atlas.Len()).Msg("chunk cache refreshed")
		}
	}
}

// refreshChunks generates the keepRadius neighborhood around every
// connected player and drops cached chunks no player is near anymore.
// With no players connected the whole cache is released. Returns the
// number of chunks evicted.
func refreshChunks(atlas *worldgen.Atlas, reg *registry.Registry, keepRadius int) int {
	players := reg.Players()
	centers := make([]core.Vector3, 0, len(players))
	for _, p := range players {
		cx := core.ChunkCoord(p.Position.X)
		cz := core.ChunkCoord(p.Position.Z)
		for dx := -keepRadius; dx <= keepRadius; dx++ {
			for dz := -keepRadius; dz <= keepRadius; dz++ {
				atlas.Get(cx+dx, cz+dz)
			}
		}
		centers = append(centers, p.Position)
	}
	return atlas.EvictBeyond(centers, keepRadius)
}
