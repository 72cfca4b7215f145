// internal/hub/hub.go
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/internal/recorder"
	"github.com/davidl09/car-sim/internal/registry"
	"github.com/davidl09/car-sim/pkg/core"
	"github.com/davidl09/car-sim/pkg/protocol"
)

// Config wires the hub's collaborators and tunables.
type Config struct {
	Logger         zerolog.Logger
	Registry       *registry.Registry
	Recorder       recorder.Backend
	WorldSeed      int64
	UpdateRateHz   int
	MaxConnections int64
	AllowedOrigins []string
}

// outbound is one frame headed for the clients. except names a client id
// to skip, empty meaning everyone.
type outbound struct {
	data   []byte
	except string
}

// Hub owns the client set. Register, unregister and fan-out all run on
// the single Run goroutine; per-client dispatch runs on each client's
// reader goroutine against the thread-safe registry.
type Hub struct {
	cfg Config
	log zerolog.Logger

	clients    map[*Client]bool
	byID       map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound

	broadcasts atomic.Uint64

	received  metric.Int64Counter
	fannedOut metric.Int64Counter
}

// New creates a hub. Uses the global OTel meter for metrics (no-op if
// not configured).
func New(cfg Config) (*Hub, error) {
	h := &Hub{
		cfg:        cfg,
		log:        cfg.Logger.With().Str("component", "hub").Logger(),
		clients:    make(map[*Client]bool),
		byID:       make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
	}
	if h.cfg.Recorder == nil {
		h.cfg.Recorder = recorder.Nop{}
	}

	m := meter()
	var err error
	h.received, err = m.Int64Counter(
		"hub.messages.received",
		metric.WithDescription("Total messages received from clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}
	h.fannedOut, err = m.Int64Counter(
		"hub.messages.broadcast",
		metric.WithDescription("Total frames fanned out to clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating broadcast counter: %w", err)
	}
	return h, nil
}

// BroadcastCount returns the lifetime number of fan-out operations.
func (h *Hub) BroadcastCount() uint64 {
	return h.broadcasts.Load()
}

// Run processes hub events until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.byID[c.id] = c
			h.onJoin(c)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			delete(h.byID, c.id)
			close(c.send)
			h.onLeave(c)

		case out := <-h.broadcast:
			h.fanOut(out)
		}
	}
}

// onJoin sends the bootstrap snapshot to the new client and announces it
// to everyone, the newcomer included.
func (h *Hub) onJoin(c *Client) {
	player := h.cfg.Registry.Get(c.id)
	if player == nil {
		return
	}

	state, err := protocol.Marshal(protocol.TypeGameState, protocol.GameStatePayload{
		PlayerID:  c.id,
		Players:   h.cfg.Registry.Players(),
		WorldSeed: h.cfg.WorldSeed,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal game state")
		return
	}
	c.enqueue(state)

	if joined, err := protocol.Marshal(protocol.TypePlayerJoined, player); err == nil {
		h.fanOut(outbound{data: joined})
	}

	if err := h.cfg.Recorder.RecordJoin(player); err != nil {
		h.log.Error().Err(err).Msg("record join")
	}
	h.log.Info().Str("player", c.id).Str("name", player.Name).Msg("player joined")
}

func (h *Hub) onLeave(c *Client) {
	h.cfg.Registry.Remove(c.id)

	if left, err := protocol.Marshal(protocol.TypePlayerLeft, protocol.PlayerLeftPayload{PlayerID: c.id}); err == nil {
		h.fanOut(outbound{data: left})
	}
	if err := h.cfg.Recorder.RecordLeave(c.id, time.Now()); err != nil {
		h.log.Error().Err(err).Msg("record leave")
	}
	h.log.Info().Str("player", c.id).Msg("player left")
}

func (h *Hub) fanOut(out outbound) {
	h.broadcasts.Add(1)
	h.fannedOut.Add(context.Background(), 1)
	for c := range h.clients {
		if out.except != "" && c.id == out.except {
			continue
		}
		c.enqueue(out.data)
	}
}

// handleBinary processes a compact movement frame.
func (h *Hub) handleBinary(c *Client, data []byte) {
	h.countReceived(protocol.TypePlayerUpdate)
	update, err := protocol.DecodeMovement(data)
	if err != nil {
		c.log.Debug().Err(err).Msg("bad movement frame")
		return
	}
	h.applyUpdate(c, update)
}

// handleEnvelope processes one JSON message from a client.
func (h *Hub) handleEnvelope(c *Client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug().Err(err).Msg("bad envelope")
		return
	}
	h.countReceived(env.Type)

	switch env.Type {
	case protocol.TypePlayerUpdate:
		var update core.PlayerUpdate
		if err := json.Unmarshal(env.Payload, &update); err != nil {
			c.log.Debug().Err(err).Msg("bad update payload")
			return
		}
		h.applyUpdate(c, &update)

	case protocol.TypePlayerCustomize:
		var payload protocol.CustomizePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.log.Debug().Err(err).Msg("bad customize payload")
			return
		}
		h.applyCustomize(c, &payload)

	case protocol.TypePlayerSetName:
		var payload protocol.SetNamePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.log.Debug().Err(err).Msg("bad setname payload")
			return
		}
		h.applySetName(c, payload.Name)

	case protocol.TypePlayerRespawn:
		h.applyRespawn(c)

	default:
		c.log.Debug().Str("type", env.Type).Msg("unknown message type")
	}
}

// applyUpdate merges a movement/health update and relays it to everyone
// else. Excess updates beyond the per-client rate are dropped silently.
func (h *Hub) applyUpdate(c *Client, update *core.PlayerUpdate) {
	// renames travel via player:setname, not the movement path
	update.Name = nil
	if update.Empty() {
		return
	}
	if !c.limiter.Allow() {
		return
	}

	before := h.cfg.Registry.Get(c.id)
	player := h.cfg.Registry.Update(c.id, update)
	if player == nil {
		return
	}

	// clients resolve collisions locally and report the result as a
	// health drop
	if update.Health != nil && before != nil && player.Health < before.Health {
		err := h.cfg.Recorder.RecordCollision(&model.CollisionRecord{
			PlayerID:    c.id,
			ImpactSpeed: player.Velocity.Magnitude(),
			Damage:      before.Health - player.Health,
			Time:        time.Now(),
		})
		if err != nil {
			h.log.Error().Err(err).Msg("record collision")
		}
	}

	relay, err := protocol.Marshal(protocol.TypeGameUpdate, protocol.GameUpdatePayload{
		PlayerID:     c.id,
		PlayerUpdate: *update,
	})
	if err != nil {
		return
	}
	h.broadcast <- outbound{data: relay, except: c.id}

	if update.Position != nil {
		err := h.cfg.Recorder.RecordSample(c.id, player.Position, player.Rotation, player.Velocity, time.Now())
		if err != nil {
			h.log.Error().Err(err).Msg("record sample")
		}
	}
}

func (h *Hub) applyCustomize(c *Client, payload *protocol.CustomizePayload) {
	update := &core.PlayerUpdate{Color: &payload.Color, Name: payload.Name}
	player := h.cfg.Registry.Update(c.id, update)
	if player == nil {
		return
	}

	if msg, err := protocol.Marshal(protocol.TypePlayerCustomized, protocol.PlayerCustomizedPayload{
		PlayerID: c.id,
		Color:    player.Color,
	}); err == nil {
		h.broadcast <- outbound{data: msg, except: c.id}
	}

	// the effective name goes to everyone, the requester included, since
	// the registry may have adjusted it
	if payload.Name != nil {
		h.announceName(c.id, player.Name)
	}
}

func (h *Hub) applySetName(c *Client, name string) {
	player := h.cfg.Registry.SetName(c.id, name)
	if player == nil {
		return
	}
	h.announceName(c.id, player.Name)
}

func (h *Hub) announceName(playerID, name string) {
	msg, err := protocol.Marshal(protocol.TypePlayerNameUpdated, protocol.PlayerNameUpdatedPayload{
		PlayerID: playerID,
		Name:     name,
	})
	if err != nil {
		return
	}
	h.broadcast <- outbound{data: msg}
}

func (h *Hub) applyRespawn(c *Client) {
	player := h.cfg.Registry.Respawn(c.id)
	if player == nil {
		return
	}

	msg, err := protocol.Marshal(protocol.TypePlayerRespawned, protocol.PlayerRespawnedPayload{
		PlayerID: c.id,
		Position: player.Position,
		Rotation: player.Rotation,
		Velocity: player.Velocity,
		Health:   player.Health,
		JoinTime: player.JoinTime,
	})
	if err != nil {
		return
	}
	h.broadcast <- outbound{data: msg}
}

func (h *Hub) countReceived(msgType string) {
	h.received.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("type", msgType)))
}
