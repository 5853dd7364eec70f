package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Store holds the live TuningConfig and serializes runtime updates from
// the API against per-frame snapshots taken by the pipeline. The pipeline
// reads a snapshot at the start of each invocation, so updates take effect
// on the next frame, never retroactively.
type Store struct {
	mu  sync.RWMutex
	cfg *TuningConfig
}

// NewStore returns a Store seeded with the given config. A nil config
// seeds an empty one, so every parameter reads its default.
func NewStore(cfg *TuningConfig) *Store {
	if cfg == nil {
		cfg = EmptyTuningConfig()
	}
	return &Store{cfg: cfg}
}

// Snapshot returns a deep copy of the current config. The copy is safe to
// read for the duration of a pipeline invocation while updates land behind
// it, and shares no pointers with the live config.
func (s *Store) Snapshot() *TuningConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(s.cfg)
}

// Update merges a partial config into the current one: only non-nil fields
// of the update are applied. The merged result is validated before it
// replaces the live config, so a bad update leaves the store unchanged.
func (s *Store) Update(update *TuningConfig) error {
	if update == nil {
		return fmt.Errorf("nil config update")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Merge into a deep copy so the live config, and every snapshot handed
	// out before this call, stays untouched until the merge validates.
	merged := cloneConfig(s.cfg)
	applyOverrides(merged, update)
	if err := merged.Validate(); err != nil {
		return err
	}
	s.cfg = merged
	return nil
}

// cloneConfig deep-copies a config. The struct is all-pointer, so a JSON
// round-trip is the simplest faithful copy and keeps this in sync with
// the schema.
func cloneConfig(cfg *TuningConfig) *TuningConfig {
	out := EmptyTuningConfig()
	data, err := json.Marshal(cfg)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, out)
	return out
}

// applyOverrides copies every non-nil field of src over dst.
func applyOverrides(dst, src *TuningConfig) {
	data, err := json.Marshal(src)
	if err != nil {
		return
	}
	// Unmarshal only sets fields present in the document; omitempty on
	// every field keeps nil pointers out of it.
	_ = json.Unmarshal(data, dst)
}
