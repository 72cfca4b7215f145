// internal/recorder/recorder.go
package recorder

import (
	"time"

	"github.com/davidl09/car-sim/internal/model"
	"github.com/davidl09/car-sim/pkg/core"
)

// Backend is the interface all session recorder implementations satisfy.
// Recording is telemetry only: nothing recorded here feeds back into live
// game state.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(worldSeed int64) error
	EndSession() error

	// Event recording
	RecordJoin(p *core.Player) error
	RecordLeave(playerID string, at time.Time) error
	RecordCollision(rec *model.CollisionRecord) error

	// State recording
	RecordSample(playerID string, pos, rot, vel core.Vector3, at time.Time) error
}

// Nop is the disabled recorder. Every method succeeds and records nothing.
type Nop struct{}

func (Nop) Init() error                                                       { return nil }
func (Nop) Close() error                                                      { return nil }
func (Nop) StartSession(int64) error                                          { return nil }
func (Nop) EndSession() error                                                 { return nil }
func (Nop) RecordJoin(*core.Player) error                                     { return nil }
func (Nop) RecordLeave(string, time.Time) error                               { return nil }
func (Nop) RecordCollision(*model.CollisionRecord) error                      { return nil }
func (Nop) RecordSample(string, core.Vector3, core.Vector3, core.Vector3, time.Time) error { return nil }
