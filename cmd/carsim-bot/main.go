// cmd/carsim-bot/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidl09/car-sim/internal/collision"
	"github.com/davidl09/car-sim/internal/logging"
	"github.com/davidl09/car-sim/internal/netclient"
	"github.com/davidl09/car-sim/internal/store"
	"github.com/davidl09/car-sim/internal/worldgen"
	"github.com/davidl09/car-sim/pkg/core"
	"github.com/davidl09/car-sim/pkg/protocol"
)

const (
	driveTickRate = 20 // Hz
	maxAccel      = 0.04
	steerJitter   = 0.3
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "server websocket URL")
	numBots := flag.Int("bots", 1, "number of simulated drivers")
	duration := flag.Duration("duration", time.Minute, "how long to drive before disconnecting")
	logLevel := flag.String("logLevel", "info", "log level")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(logging.ParseLevel(*logLevel)).
		With().Timestamp().Logger()

	var wg sync.WaitGroup
	for i := 0; i < *numBots; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bot := newBot(log.With().Int("bot", n).Logger())
			if err := bot.drive(*serverURL, *duration); err != nil {
				log.Error().Err(err).Int("bot", n).Msg("bot stopped")
			}
		}(i)
		// stagger connections a little
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()
	fmt.Println("all bots finished")
}

// bot is one simulated driver. It keeps a local world view the same way
// a browser client would and wanders the map at a fixed tick rate.
type bot struct {
	log      zerolog.Logger
	store    *store.Store
	client   *netclient.Client
	rng      *rand.Rand
	bootOnce sync.Once
	bootedCh chan struct{}

	mu       sync.Mutex
	atlas    *worldgen.Atlas
	resolver *collision.Resolver

	heading float64
	speed   float64
}

func newBot(log zerolog.Logger) *bot {
	return &bot{
		log:      log,
		store:    store.NewStore(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		bootedCh: make(chan struct{}),
	}
}

func (b *bot) drive(serverURL string, duration time.Duration) error {
	b.client = netclient.New(b.log, b.handle)
	if err := b.client.Dial(serverURL); err != nil {
		return err
	}
	defer b.client.Close()

	select {
	case <-b.bootedCh:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("no game state received within 10s")
	}
	b.log.Info().Str("id", b.store.OwnID()).Int64("seed", b.store.WorldSeed()).Msg("joined")

	ticker := time.NewTicker(time.Second / driveTickRate)
	defer ticker.Stop()
	deadline := time.After(duration)

	for {
		select {
		case <-deadline:
			b.log.Info().Msg("drive time over")
			return nil
		case <-ticker.C:
			if b.client.Disconnected() {
				return fmt.Errorf("lost connection to server")
			}
			b.tick()
		}
	}
}

// tick advances the wander steering model one step, resolves local
// collisions, and ships the movement frame.
func (b *bot) tick() {
	self := b.store.Self()
	if self == nil {
		return
	}

	if self.Health <= 0 {
		if err := b.client.Send(protocol.TypePlayerRespawn, nil); err != nil {
			b.log.Warn().Err(err).Msg("respawn request failed")
		}
		return
	}

	b.heading += (b.rng.Float64()*2 - 1) * steerJitter / driveTickRate
	b.speed += (b.rng.Float64()*2 - 1) * maxAccel
	b.speed = math.Max(0, math.Min(0.8, b.speed))

	vel := core.Vector3{
		X: math.Sin(b.heading) * b.speed,
		Z: math.Cos(b.heading) * b.speed,
	}
	pos := self.Position.Add(vel)
	rot := core.Vector3{Y: b.heading}

	update := &core.PlayerUpdate{Position: &pos, Rotation: &rot, Velocity: &vel}
	b.store.Merge(b.store.OwnID(), update)

	b.mu.Lock()
	resolver := b.resolver
	b.mu.Unlock()
	if resolver != nil {
		events := resolver.Step()
		for _, ev := range events {
			b.log.Debug().
				Str("other", ev.OtherID).
				Str("obstacle", ev.Obstacle).
				Float64("damage", ev.Damage).
				Msg("collision")
		}
		// damage travels as a JSON update so the server sees the new health
		if len(events) > 0 {
			if post := b.store.Self(); post != nil {
				health := post.Health
				if err := b.client.Send(protocol.TypePlayerUpdate, core.PlayerUpdate{Health: &health}); err != nil {
					b.log.Warn().Err(err).Msg("health report failed")
				}
				if health <= 0 {
					b.log.Info().Msg("wrecked")
				}
			}
		}
	}

	// collisions may have nudged us, send whatever the store now holds
	if post := b.store.Self(); post != nil {
		p, r, v := post.Position, post.Rotation, post.Velocity
		b.client.SendBinary(protocol.EncodeMovement(&core.PlayerUpdate{
			Position: &p, Rotation: &r, Velocity: &v,
		}))
	}
}

// handle applies server broadcasts to the local world view.
func (b *bot) handle(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeGameState:
		var state protocol.GameStatePayload
		if err := json.Unmarshal(env.Payload, &state); err != nil {
			b.log.Warn().Err(err).Msg("bad game state")
			return
		}
		// a reconnect re-sends the bootstrap under a fresh id
		b.store.Bootstrap(state.PlayerID, state.Players, state.WorldSeed)

		atlas := worldgen.NewAtlas(worldgen.NewGenerator(state.WorldSeed))
		b.mu.Lock()
		b.atlas = atlas
		b.resolver = collision.NewResolver(b.store, atlas)
		b.mu.Unlock()
		b.bootOnce.Do(func() { close(b.bootedCh) })

	case protocol.TypeGameUpdate:
		var update protocol.GameUpdatePayload
		if err := json.Unmarshal(env.Payload, &update); err != nil {
			return
		}
		b.store.Merge(update.PlayerID, &update.PlayerUpdate)

	case protocol.TypePlayerJoined:
		var p core.Player
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		b.store.Put(&p)

	case protocol.TypePlayerLeft:
		var payload protocol.PlayerLeftPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		b.store.Remove(payload.PlayerID)

	case protocol.TypePlayerCustomized:
		var payload protocol.PlayerCustomizedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		b.store.Merge(payload.PlayerID, &core.PlayerUpdate{Color: &payload.Color})

	case protocol.TypePlayerNameUpdated:
		var payload protocol.PlayerNameUpdatedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		b.store.Merge(payload.PlayerID, &core.PlayerUpdate{Name: &payload.Name})

	case protocol.TypePlayerRespawned:
		var payload protocol.PlayerRespawnedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		b.store.ApplyRespawn(
			payload.PlayerID,
			payload.Position, payload.Rotation, payload.Velocity,
			payload.Health, payload.JoinTime,
		)
	}
}
