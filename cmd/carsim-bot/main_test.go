// cmd/carsim-bot/main_test.go
package main

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/pkg/core"
	"github.com/davidl09/car-sim/pkg/protocol"
)

func gameState(t *testing.T, id string, seed int64) protocol.Envelope {
	t.Helper()
	data, err := protocol.Marshal(protocol.TypeGameState, protocol.GameStatePayload{
		PlayerID:  id,
		WorldSeed: seed,
		Players:   []*core.Player{{ID: id, Health: core.MaxHealth}},
	})
	require.NoError(t, err)
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestRepeatedGameStateRebootstraps(t *testing.T) {
	b := newBot(zerolog.Nop())

	b.handle(gameState(t, "first-id", 7))
	select {
	case <-b.bootedCh:
	default:
		t.Fatal("boot signal never fired")
	}

	// a reconnect delivers a second bootstrap under a fresh id
	b.handle(gameState(t, "second-id", 7))
	assert.Equal(t, "second-id", b.store.OwnID())
	require.NotNil(t, b.store.Self())
}
