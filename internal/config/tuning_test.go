package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetConfidenceThreshold() != 0.5 {
		t.Errorf("GetConfidenceThreshold() = %f, want 0.5", cfg.GetConfidenceThreshold())
	}
	if cfg.GetIoUThreshold() != 0.4 {
		t.Errorf("GetIoUThreshold() = %f, want 0.4", cfg.GetIoUThreshold())
	}
	if cfg.GetMaxRegions() != 10 {
		t.Errorf("GetMaxRegions() = %d, want 10", cfg.GetMaxRegions())
	}
	if cfg.GetMinAspectRatio() != 2.0 || cfg.GetMaxAspectRatio() != 6.0 {
		t.Errorf("aspect band = [%f, %f], want [2, 6]", cfg.GetMinAspectRatio(), cfg.GetMaxAspectRatio())
	}
	if cfg.GetPatchWidth() != 520 || cfg.GetPatchHeight() != 110 {
		t.Errorf("patch dims = %dx%d, want 520x110", cfg.GetPatchWidth(), cfg.GetPatchHeight())
	}
	if got := cfg.GetOCRLanguages(); len(got) != 1 || got[0] != "eng" {
		t.Errorf("GetOCRLanguages() = %v, want [eng]", got)
	}
	if cfg.GetMinPlateLength() != 4 || cfg.GetMaxPlateLength() != 10 {
		t.Errorf("length band = [%d, %d], want [4, 10]", cfg.GetMinPlateLength(), cfg.GetMaxPlateLength())
	}
	if cfg.GetLowConfidence() != 0.4 || cfg.GetHighConfidence() != 0.8 {
		t.Errorf("confidence band = [%f, %f], want [0.4, 0.8]", cfg.GetLowConfidence(), cfg.GetHighConfidence())
	}
	if !cfg.GetPersistRejected() {
		t.Error("GetPersistRejected() = false, want true")
	}
	if cfg.GetRetentionDays() != 30 {
		t.Errorf("GetRetentionDays() = %d, want 30", cfg.GetRetentionDays())
	}
	if cfg.GetDetectorEndpoint() != "" {
		t.Errorf("GetDetectorEndpoint() = %q, want empty", cfg.GetDetectorEndpoint())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Partial config: unnamed fields keep their defaults.
	testJSON := `{
  "confidence_threshold": 0.65,
  "max_regions": 4,
  "ocr_languages": ["eng", "deu"],
  "persist_rejected": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ConfidenceThreshold == nil || *cfg.ConfidenceThreshold != 0.65 {
		t.Errorf("Expected ConfidenceThreshold 0.65, got %v", cfg.ConfidenceThreshold)
	}
	if cfg.MaxRegions == nil || *cfg.MaxRegions != 4 {
		t.Errorf("Expected MaxRegions 4, got %v", cfg.MaxRegions)
	}
	if got := cfg.GetOCRLanguages(); len(got) != 2 || got[1] != "deu" {
		t.Errorf("GetOCRLanguages() = %v, want [eng deu]", got)
	}
	if cfg.GetPersistRejected() {
		t.Error("persist_rejected=false not honored")
	}
	// Unspecified field falls back to default.
	if cfg.GetIoUThreshold() != 0.4 {
		t.Errorf("GetIoUThreshold() = %f, want default 0.4", cfg.GetIoUThreshold())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("config.yaml"); err == nil {
		t.Error("expected error for non-JSON extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty is valid", TuningConfig{}, false},
		{"threshold in range", TuningConfig{ConfidenceThreshold: ptrFloat64(0.7)}, false},
		{"threshold above one", TuningConfig{ConfidenceThreshold: ptrFloat64(1.5)}, true},
		{"negative iou", TuningConfig{IoUThreshold: ptrFloat64(-0.1)}, true},
		{"zero max regions", TuningConfig{MaxRegions: ptrInt(0)}, true},
		{"inverted aspect band", TuningConfig{MinAspectRatio: ptrFloat64(5), MaxAspectRatio: ptrFloat64(2)}, true},
		{"zero patch width", TuningConfig{PatchWidth: ptrInt(0)}, true},
		{"inverted length band", TuningConfig{MinPlateLength: ptrInt(8), MaxPlateLength: ptrInt(4)}, true},
		{"inverted confidence band", TuningConfig{LowConfidence: ptrFloat64(0.9), HighConfidence: ptrFloat64(0.5)}, true},
		{"negative retention", TuningConfig{RetentionDays: ptrInt(-1)}, true},
		{"zero retention keeps forever", TuningConfig{RetentionDays: ptrInt(0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetConfidenceThreshold() != 0.5 {
		t.Errorf("defaults file confidence_threshold = %f, want 0.5", cfg.GetConfidenceThreshold())
	}
	if cfg.GetPatchWidth() != 520 || cfg.GetPatchHeight() != 110 {
		t.Errorf("defaults file patch dims = %dx%d, want 520x110", cfg.GetPatchWidth(), cfg.GetPatchHeight())
	}
	if cfg.GetPlateAlphabet() == "" {
		t.Error("defaults file has empty plate alphabet")
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	store := NewStore(&TuningConfig{
		ConfidenceThreshold: ptrFloat64(0.6),
		OCRLanguages:        []string{"eng"},
	})

	snap := store.Snapshot()
	if snap.GetConfidenceThreshold() != 0.6 {
		t.Fatalf("snapshot threshold = %f", snap.GetConfidenceThreshold())
	}

	// Mutating the snapshot must not leak into the store.
	snap.OCRLanguages[0] = "xxx"
	*snap.ConfidenceThreshold = 0.1

	fresh := store.Snapshot()
	if got := fresh.GetOCRLanguages()[0]; got != "eng" {
		t.Errorf("store languages mutated through snapshot: %q", got)
	}
	if got := fresh.GetConfidenceThreshold(); got != 0.6 {
		t.Errorf("store threshold mutated through snapshot: %f", got)
	}
}

func TestStoreUpdateLeavesEarlierSnapshotsAlone(t *testing.T) {
	store := NewStore(&TuningConfig{ConfidenceThreshold: ptrFloat64(0.6)})

	before := store.Snapshot()
	if err := store.Update(&TuningConfig{ConfidenceThreshold: ptrFloat64(0.9)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := before.GetConfidenceThreshold(); got != 0.6 {
		t.Errorf("earlier snapshot changed by update: %f", got)
	}
	if got := store.Snapshot().GetConfidenceThreshold(); got != 0.9 {
		t.Errorf("updated threshold = %f, want 0.9", got)
	}
}

func TestStoreUpdateMergesPartial(t *testing.T) {
	store := NewStore(&TuningConfig{
		ConfidenceThreshold: ptrFloat64(0.6),
		MaxRegions:          ptrInt(5),
	})

	err := store.Update(&TuningConfig{ConfidenceThreshold: ptrFloat64(0.75)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap := store.Snapshot()
	if snap.GetConfidenceThreshold() != 0.75 {
		t.Errorf("updated threshold = %f, want 0.75", snap.GetConfidenceThreshold())
	}
	if snap.GetMaxRegions() != 5 {
		t.Errorf("untouched max_regions = %d, want 5", snap.GetMaxRegions())
	}
}

func TestStoreUpdateRejectsInvalid(t *testing.T) {
	store := NewStore(&TuningConfig{ConfidenceThreshold: ptrFloat64(0.6)})

	if err := store.Update(&TuningConfig{ConfidenceThreshold: ptrFloat64(2.0)}); err == nil {
		t.Fatal("invalid update accepted")
	}
	if got := store.Snapshot().GetConfidenceThreshold(); got != 0.6 {
		t.Errorf("store changed by rejected update: %f", got)
	}
}

func TestStoreUpdateOverridesStringsAndBools(t *testing.T) {
	store := NewStore(nil)

	err := store.Update(&TuningConfig{
		DetectorEndpoint: ptrString("http://127.0.0.1:8501/detect"),
		PersistRejected:  ptrBool(false),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap := store.Snapshot()
	if snap.GetDetectorEndpoint() != "http://127.0.0.1:8501/detect" {
		t.Errorf("endpoint = %q", snap.GetDetectorEndpoint())
	}
	if snap.GetPersistRejected() {
		t.Error("persist_rejected override lost")
	}
}
