package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/internal/recorder"
	"github.com/davidl09/car-sim/internal/registry"
	"github.com/davidl09/car-sim/pkg/core"
	"github.com/davidl09/car-sim/pkg/protocol"
)

func startTestHub(t *testing.T, maxConns int64) *httptest.Server {
	t.Helper()

	h, err := New(Config{
		Logger:         zerolog.Nop(),
		Registry:       registry.NewRegistry(),
		WorldSeed:      999,
		UpdateRateHz:   100,
		MaxConnections: maxConns,
		AllowedOrigins: []string{"*"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(NewServer(h).ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, protocol.GameStatePayload) {
	t.Helper()

	wsURL := strings.Replace(srv.URL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	env := readEnvelope(t, conn)
	require.Equal(t, protocol.TypeGameState, env.Type)
	var state protocol.GameStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &state))
	return conn, state
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// readUntil skips envelopes until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) protocol.Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := readEnvelope(t, conn)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("never received %s", msgType)
	return protocol.Envelope{}
}

func TestConnectReceivesGameState(t *testing.T) {
	srv := startTestHub(t, 4)

	_, state := dial(t, srv)
	assert.NotEmpty(t, state.PlayerID)
	assert.Equal(t, int64(999), state.WorldSeed)
	require.Len(t, state.Players, 1)
	assert.Equal(t, state.PlayerID, state.Players[0].ID)
	assert.Equal(t, core.MaxHealth, state.Players[0].Health)
}

func TestJoinAnnouncedToEveryone(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, _ := dial(t, srv)
	// the joining player hears its own announcement too
	env := readUntil(t, connA, protocol.TypePlayerJoined)
	var self core.Player
	require.NoError(t, json.Unmarshal(env.Payload, &self))

	_, stateB := dial(t, srv)
	assert.Len(t, stateB.Players, 2, "bootstrap snapshot includes the earlier player")

	env = readUntil(t, connA, protocol.TypePlayerJoined)
	var joined core.Player
	require.NoError(t, json.Unmarshal(env.Payload, &joined))
	assert.Equal(t, stateB.PlayerID, joined.ID)
}

func TestUpdateRelayedExceptSender(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, stateA := dial(t, srv)
	connB, _ := dial(t, srv)
	readUntil(t, connA, protocol.TypePlayerJoined) // own join
	readUntil(t, connA, protocol.TypePlayerJoined) // B's join
	readUntil(t, connB, protocol.TypePlayerJoined)

	update, err := protocol.Marshal(protocol.TypePlayerUpdate, core.PlayerUpdate{
		Position: &core.Vector3{X: 42, Z: -7},
	})
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, update))

	env := readUntil(t, connB, protocol.TypeGameUpdate)
	var relayed protocol.GameUpdatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &relayed))
	assert.Equal(t, stateA.PlayerID, relayed.PlayerID)
	require.NotNil(t, relayed.Position)
	assert.Equal(t, 42.0, relayed.Position.X)
	assert.Nil(t, relayed.Velocity, "absent fields stay absent")

	// the sender's next message must be the name announcement, proving
	// its own update was not echoed back
	setname, err := protocol.Marshal(protocol.TypePlayerSetName, protocol.SetNamePayload{Name: "Echo"})
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, setname))

	env = readEnvelope(t, connA)
	assert.Equal(t, protocol.TypePlayerNameUpdated, env.Type)
}

func TestNameOnlyUpdateNotRelayed(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, _ := dial(t, srv)
	connB, _ := dial(t, srv)
	readUntil(t, connB, protocol.TypePlayerJoined)

	name := "Smuggled"
	update, err := protocol.Marshal(protocol.TypePlayerUpdate, core.PlayerUpdate{Name: &name})
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, update))

	// the rename announcement that follows must be the peer's next
	// message, with no movement broadcast in between
	setname, err := protocol.Marshal(protocol.TypePlayerSetName, protocol.SetNamePayload{Name: "Proper"})
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, setname))

	env := readEnvelope(t, connB)
	assert.Equal(t, protocol.TypePlayerNameUpdated, env.Type)
}

func TestBinaryMovementRelayed(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, stateA := dial(t, srv)
	connB, _ := dial(t, srv)

	vel := core.Vector3{X: 0.5}
	frame := protocol.EncodeMovement(&core.PlayerUpdate{Velocity: &vel})
	require.NoError(t, connA.WriteMessage(websocket.BinaryMessage, frame))

	env := readUntil(t, connB, protocol.TypeGameUpdate)
	var relayed protocol.GameUpdatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &relayed))
	assert.Equal(t, stateA.PlayerID, relayed.PlayerID)
	require.NotNil(t, relayed.Velocity)
	assert.InDelta(t, 0.5, relayed.Velocity.X, 1e-6)
	assert.Nil(t, relayed.Position)
}

func TestSetNameConflictResolved(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, _ := dial(t, srv)
	connB, stateB := dial(t, srv)

	rename := func(conn *websocket.Conn) {
		msg, err := protocol.Marshal(protocol.TypePlayerSetName, protocol.SetNamePayload{Name: "Racer"})
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
	}

	rename(connA)
	env := readUntil(t, connA, protocol.TypePlayerNameUpdated)
	var first protocol.PlayerNameUpdatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &first))
	assert.Equal(t, "Racer", first.Name)

	rename(connB)
	env = readUntil(t, connB, protocol.TypePlayerNameUpdated)
	var second protocol.PlayerNameUpdatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &second))
	assert.Equal(t, stateB.PlayerID, second.PlayerID)
	assert.Equal(t, "Racer-2", second.Name, "server resolves the conflict and announces the effective name")
}

func TestRespawnAnnouncedWithFreshVitals(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, stateA := dial(t, srv)

	msg, err := protocol.Marshal(protocol.TypePlayerRespawn, nil)
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, msg))

	env := readUntil(t, connA, protocol.TypePlayerRespawned)
	var respawn protocol.PlayerRespawnedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &respawn))
	assert.Equal(t, stateA.PlayerID, respawn.PlayerID)
	assert.Equal(t, core.MaxHealth, respawn.Health)
	assert.Equal(t, core.Vector3{}, respawn.Velocity)
	assert.False(t, respawn.JoinTime.IsZero())
}

func TestLeaveAnnounced(t *testing.T) {
	srv := startTestHub(t, 4)

	connA, stateA := dial(t, srv)
	connB, _ := dial(t, srv)

	require.NoError(t, connA.Close())

	env := readUntil(t, connB, protocol.TypePlayerLeft)
	var left protocol.PlayerLeftPayload
	require.NoError(t, json.Unmarshal(env.Payload, &left))
	assert.Equal(t, stateA.PlayerID, left.PlayerID)
}

func TestConnectionCap(t *testing.T) {
	srv := startTestHub(t, 1)

	dial(t, srv)

	wsURL := strings.Replace(srv.URL, "http", "ws", 1)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type captureRecorder struct {
	recorder.Nop
	mu         sync.Mutex
	collisions []*model.CollisionRecord
}

func (c *captureRecorder) RecordCollision(r *model.CollisionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collisions = append(c.collisions, r)
	return nil
}

func TestHealthDropRecordedAsCollision(t *testing.T) {
	rec := &captureRecorder{}
	h, err := New(Config{
		Logger:         zerolog.Nop(),
		Registry:       registry.NewRegistry(),
		Recorder:       rec,
		WorldSeed:      1,
		UpdateRateHz:   100,
		MaxConnections: 4,
		AllowedOrigins: []string{"*"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(NewServer(h).ServeWS))
	defer srv.Close()

	conn, state := dial(t, srv)
	health := 70.0
	data, err := protocol.Marshal(protocol.TypePlayerUpdate, core.PlayerUpdate{Health: &health})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.collisions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, state.PlayerID, rec.collisions[0].PlayerID)
	assert.InDelta(t, 30.0, rec.collisions[0].Damage, 1e-9)
}
