// pkg/protocol/binary.go
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/davidl09/car-sim/pkg/core"
)

// Movement updates are the high-frequency path, so they can travel as
// compact binary frames instead of JSON envelopes. Layout: one flag byte,
// then for each flagged vector three little-endian float32 components.
const (
	flagPosition = 1 << 0
	flagRotation = 1 << 1
	flagVelocity = 1 << 2

	vectorBytes = 12
)

// EncodeMovement packs the movement fields of an update into a binary
// frame. Non-movement fields (name, color, health) are ignored; they only
// travel as JSON.
func EncodeMovement(u *core.PlayerUpdate) []byte {
	var flags byte
	n := 1
	if u.Position != nil {
		flags |= flagPosition
		n += vectorBytes
	}
	if u.Rotation != nil {
		flags |= flagRotation
		n += vectorBytes
	}
	if u.Velocity != nil {
		flags |= flagVelocity
		n += vectorBytes
	}

	buf := make([]byte, 1, n)
	buf[0] = flags
	if u.Position != nil {
		buf = appendVector(buf, *u.Position)
	}
	if u.Rotation != nil {
		buf = appendVector(buf, *u.Rotation)
	}
	if u.Velocity != nil {
		buf = appendVector(buf, *u.Velocity)
	}
	return buf
}

// DecodeMovement parses a binary movement frame back into a partial
// update. Vectors absent from the flag byte come back as nil pointers.
func DecodeMovement(data []byte) (*core.PlayerUpdate, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("movement frame: empty")
	}
	flags := data[0]
	rest := data[1:]

	u := &core.PlayerUpdate{}
	var err error
	if flags&flagPosition != 0 {
		if u.Position, rest, err = readVector(rest); err != nil {
			return nil, fmt.Errorf("movement frame position: %w", err)
		}
	}
	if flags&flagRotation != 0 {
		if u.Rotation, rest, err = readVector(rest); err != nil {
			return nil, fmt.Errorf("movement frame rotation: %w", err)
		}
	}
	if flags&flagVelocity != 0 {
		if u.Velocity, rest, err = readVector(rest); err != nil {
			return nil, fmt.Errorf("movement frame velocity: %w", err)
		}
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("movement frame: %d trailing bytes", len(rest))
	}
	return u, nil
}

func appendVector(buf []byte, v core.Vector3) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.X)))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.Y)))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.Z)))
	return buf
}

func readVector(data []byte) (*core.Vector3, []byte, error) {
	if len(data) < vectorBytes {
		return nil, nil, fmt.Errorf("short read: %d bytes", len(data))
	}
	v := &core.Vector3{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[8:12]))),
	}
	return v, data[vectorBytes:], nil
}
