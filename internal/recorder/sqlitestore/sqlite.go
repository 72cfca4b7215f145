// Package sqlitestore implements the recorder.Backend interface on a
// SQLite file via GORM. Writes are queued and flushed in batches so the
// hub's hot path never waits on the database.
package sqlitestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/davidl09/car-sim/internal/config"
	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/internal/queue"
	"github.com/davidl09/car-sim/pkg/core"
)

const flushBatchSize = 200

// Backend records session telemetry into a SQLite file.
type Backend struct {
	cfg config.SQLiteConfig
	log zerolog.Logger
	db  *gorm.DB

	mu        sync.Mutex
	sessionID uint

	events   *queue.Queue[model.PlayerEvent]
	samples  *queue.Queue[model.StateSample]
	stopChan chan struct{}
	doneChan chan struct{}
}

// New opens (or creates) the database file.
func New(cfg config.SQLiteConfig, log zerolog.Logger) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", cfg.Path, err)
	}
	return &Backend{
		cfg:      cfg,
		log:      log.With().Str("component", "recorder").Logger(),
		db:       db,
		events:   queue.New[model.PlayerEvent](),
		samples:  queue.New[model.StateSample](),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema and starts the flush goroutine.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	go b.flushLoop()
	return nil
}

// Close stops the flush goroutine, flushes remaining writes and closes
// the database.
func (b *Backend) Close() error {
	close(b.stopChan)
	<-b.doneChan
	b.flush()

	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// StartSession inserts a session row; subsequent records attach to it.
func (b *Backend) StartSession(worldSeed int64) error {
	session := model.Session{WorldSeed: worldSeed, StartedAt: time.Now()}
	if err := b.db.Create(&session).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	b.mu.Lock()
	b.sessionID = session.ID
	b.mu.Unlock()
	b.log.Info().Uint("session", session.ID).Int64("seed", worldSeed).Msg("session started")
	return nil
}

// EndSession flushes pending writes and stamps the session end time.
func (b *Backend) EndSession() error {
	b.flush()

	b.mu.Lock()
	id := b.sessionID
	b.sessionID = 0
	b.mu.Unlock()
	if id == 0 {
		return nil
	}
	return b.db.Model(&model.Session{}).Where("id = ?", id).
		Update("ended_at", time.Now()).Error
}

// RecordJoin queues a join event.
func (b *Backend) RecordJoin(p *core.Player) error {
	return b.queueEvent(p.ID, "join", model.JoinRecord{
		PlayerID: p.ID,
		Name:     p.Name,
		Color:    p.Color,
		Time:     p.JoinTime,
	})
}

// RecordLeave queues a leave event.
func (b *Backend) RecordLeave(playerID string, at time.Time) error {
	return b.queueEvent(playerID, "leave", model.LeaveRecord{PlayerID: playerID, Time: at})
}

// RecordCollision queues a collision event.
func (b *Backend) RecordCollision(rec *model.CollisionRecord) error {
	return b.queueEvent(rec.PlayerID, "collision", rec)
}

// RecordSample queues a movement sample.
func (b *Backend) RecordSample(playerID string, pos, rot, vel core.Vector3, at time.Time) error {
	b.mu.Lock()
	id := b.sessionID
	b.mu.Unlock()

	b.samples.Push(model.StateSample{
		SessionID: id,
		PlayerID:  playerID,
		PosX:      pos.X,
		PosY:      pos.Y,
		PosZ:      pos.Z,
		RotY:      rot.Y,
		VelX:      vel.X,
		VelY:      vel.Y,
		VelZ:      vel.Z,
		CreatedAt: at,
	})
	return nil
}

func (b *Backend) queueEvent(playerID, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	b.mu.Lock()
	id := b.sessionID
	b.mu.Unlock()

	b.events.Push(model.PlayerEvent{
		SessionID: id,
		PlayerID:  playerID,
		Kind:      kind,
		Payload:   datatypes.JSON(raw),
		CreatedAt: time.Now(),
	})
	return nil
}

func (b *Backend) flushLoop() {
	defer close(b.doneChan)

	interval := b.cfg.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

// flush drains both queues into the database in batches.
func (b *Backend) flush() {
	for {
		events := b.events.Drain(flushBatchSize)
		if len(events) == 0 {
			break
		}
		if err := b.db.Create(&events).Error; err != nil {
			b.log.Error().Err(err).Int("count", len(events)).Msg("flush events failed")
		}
	}
	for {
		samples := b.samples.Drain(flushBatchSize)
		if len(samples) == 0 {
			break
		}
		if err := b.db.Create(&samples).Error; err != nil {
			b.log.Error().Err(err).Int("count", len(samples)).Msg("flush samples failed")
		}
	}
}
