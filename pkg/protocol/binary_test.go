package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidl09/car-sim/pkg/core"
)

func TestMovementVelocityOnlyRoundTrip(t *testing.T) {
	vel := core.Vector3{X: 0.25, Y: 0, Z: -0.75}
	frame := EncodeMovement(&core.PlayerUpdate{Velocity: &vel})
	require.Len(t, frame, 1+12)

	u, err := DecodeMovement(frame)
	require.NoError(t, err)
	assert.Nil(t, u.Position)
	assert.Nil(t, u.Rotation)
	require.NotNil(t, u.Velocity)
	assert.InDelta(t, vel.X, u.Velocity.X, 1e-6)
	assert.InDelta(t, vel.Y, u.Velocity.Y, 1e-6)
	assert.InDelta(t, vel.Z, u.Velocity.Z, 1e-6)
}

func TestMovementFullRoundTrip(t *testing.T) {
	pos := core.Vector3{X: 1234.5, Y: 0, Z: -987.25}
	rot := core.Vector3{Y: 1.5707964}
	vel := core.Vector3{X: 0.5}
	frame := EncodeMovement(&core.PlayerUpdate{Position: &pos, Rotation: &rot, Velocity: &vel})
	require.Len(t, frame, 1+3*12)

	u, err := DecodeMovement(frame)
	require.NoError(t, err)
	require.NotNil(t, u.Position)
	require.NotNil(t, u.Rotation)
	require.NotNil(t, u.Velocity)
	assert.InDelta(t, pos.Z, u.Position.Z, 1e-3)
	assert.InDelta(t, rot.Y, u.Rotation.Y, 1e-6)
}

func TestMovementDecodeErrors(t *testing.T) {
	_, err := DecodeMovement(nil)
	assert.Error(t, err)

	// flags claim a position but the bytes are missing
	_, err = DecodeMovement([]byte{flagPosition, 0, 0})
	assert.Error(t, err)

	// trailing garbage after the flagged vectors
	frame := EncodeMovement(&core.PlayerUpdate{Velocity: &core.Vector3{}})
	_, err = DecodeMovement(append(frame, 0xff))
	assert.Error(t, err)
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := Marshal(TypePlayerLeft, PlayerLeftPayload{PlayerID: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"player:left","payload":{"playerId":"abc"}}`, string(data))

	data, err = Marshal(TypePlayerRespawn, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"player:respawn"}`, string(data))
}
