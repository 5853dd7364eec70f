package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/platewatch-data/platewatch/internal/db"
	"github.com/platewatch-data/platewatch/internal/vision"
)

func TestRecordEndToEnd(t *testing.T) {
	testingDir := t.TempDir()
	t.Logf("Testing directory: %s", testingDir)

	d, err := db.NewDB(testingDir + "/test_platewatch.db")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	}()

	if err := d.MigrateUp("db/migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	want := vision.DetectionResult{
		ID:         uuid.NewString(),
		PlateText:  "AB1234CD",
		Confidence: 0.91,
		Status:     vision.StatusValid,
		Source:     vision.RegionSourceModel,
		FrameID:    uuid.NewString(),
		FrameTime:  time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
		PatchPath:  "2026-08-30/patch.png",
	}
	if err := d.Record(context.Background(), &want); err != nil {
		t.Fatalf("Failed to record detection: %v", err)
	}

	got, err := d.ListDetections(context.Background(), db.ListFilter{})
	if err != nil {
		t.Fatalf("Failed to retrieve detections: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(got))
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("Detection mismatch (-want +got):\n%s", diff)
	}
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"/data/frames/lot-a", "lot-a"},
		{"/data/frames/lot-a/", "lot-a"},
		{"lot-b", "lot-b"},
		{"/", "directory"},
		{"", "directory"},
	}
	for _, tt := range tests {
		if got := labelFor(tt.dir); got != tt.want {
			t.Errorf("labelFor(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestBuildSourceRequiresFlag(t *testing.T) {
	if _, err := buildSource(); err == nil {
		t.Error("expected error when no source flags are set")
	}
}
