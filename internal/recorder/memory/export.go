// internal/recorder/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davidl09/car-sim/internal/model"
)

// sessionExport is the root JSON structure.
type sessionExport struct {
	WorldSeed  int64                   `json:"worldSeed"`
	StartedAt  time.Time               `json:"startedAt"`
	EndedAt    time.Time               `json:"endedAt"`
	Joins      []model.JoinRecord      `json:"joins"`
	Leaves     []model.LeaveRecord     `json:"leaves"`
	Collisions []model.CollisionRecord `json:"collisions"`
	Samples    []sample                `json:"samples"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file.
// Caller holds the lock.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	name := fmt.Sprintf("session_%s.json", b.startedAt.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	path := filepath.Join(b.cfg.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	export := sessionExport{
		WorldSeed:  b.worldSeed,
		StartedAt:  b.startedAt,
		EndedAt:    time.Now(),
		Joins:      b.joins,
		Leaves:     b.leaves,
		Collisions: b.collisions,
		Samples:    b.samples,
	}

	if b.cfg.CompressOutput {
		gz := gzip.NewWriter(f)
		if err := json.NewEncoder(gz).Encode(export); err != nil {
			gz.Close()
			return fmt.Errorf("encode export: %w", err)
		}
		return gz.Close()
	}
	return json.NewEncoder(f).Encode(export)
}

// GetExportedFilePath returns the path of the most recent export.
func (b *Backend) GetExportedFilePath() string {
	name := fmt.Sprintf("session_%s.json", b.startedAt.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return filepath.Join(b.cfg.OutputDir, name)
}
