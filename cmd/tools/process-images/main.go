// Command process-images runs the recognition pipeline over a directory of
// still images and records the results in a SQLite database.
//
// This tool is built for offline tuning: point it at a folder of captured
// frames, optionally enable the run plotter, and inspect the stored
// detections and plots afterwards.
//
// Usage:
//
//	go run ./cmd/tools/process-images [flags]
//
// Flags:
//
//	-frames      Directory of frame images (required)
//	-db          SQLite database path (default: platewatch.db)
//	-migrations  Migrations directory (default: db/migrations)
//	-config      Tuning config JSON; defaults apply when empty
//	-patches     Directory for rectified patch images; empty disables
//	-plots       Base directory for run plots; empty disables
//	-no-ocr      Skip the Tesseract engine
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/platewatch-data/platewatch/internal/camera"
	"github.com/platewatch-data/platewatch/internal/config"
	"github.com/platewatch-data/platewatch/internal/db"
	"github.com/platewatch-data/platewatch/internal/vision"
	"github.com/platewatch-data/platewatch/internal/vision/locate"
	"github.com/platewatch-data/platewatch/internal/vision/monitor"
	"github.com/platewatch-data/platewatch/internal/vision/ocr"
	"github.com/platewatch-data/platewatch/internal/vision/pipeline"
)

func main() {
	framesDir := flag.String("frames", "", "Directory of frame images (required)")
	dbFile := flag.String("db", "platewatch.db", "SQLite database path")
	migrations := flag.String("migrations", "db/migrations", "Migrations directory")
	configFile := flag.String("config", "", "Tuning config JSON")
	patchesDir := flag.String("patches", "", "Directory for rectified patch images")
	plotsDir := flag.String("plots", "", "Base directory for run plots")
	noOCR := flag.Bool("no-ocr", false, "Skip the Tesseract engine")
	flag.Parse()

	if *framesDir == "" {
		log.Fatal("Error: -frames flag is required")
	}

	pipeline.SetLogWriters(os.Stderr, os.Stderr, nil)

	cfg := config.MustLoadDefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	store := config.NewStore(cfg)

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrations); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var engine ocr.Engine
	if !*noOCR {
		snap := store.Snapshot()
		engine, err = ocr.NewTesseractEngine(snap.GetOCRLanguages(),
			snap.GetPlateAlphabet()+snap.GetPlateSeparators())
		if err != nil {
			log.Fatalf("Failed to start OCR engine: %v", err)
		}
		defer engine.Close()
	}

	var detector locate.Detector
	if endpoint := store.Snapshot().GetDetectorEndpoint(); endpoint != "" {
		detector = locate.NewRemoteDetector(endpoint)
	}

	var patches pipeline.PatchStore
	if *patchesDir != "" {
		patches = &pipeline.FilePatchStore{Dir: *patchesDir}
	}

	orchestrator := pipeline.New(store, detector, engine, database, patches)
	defer orchestrator.Close()

	var plotter *monitor.RunPlotter
	if *plotsDir != "" {
		plotter = monitor.NewRunPlotter()
		outDir := monitor.MakePlotOutputDir(*plotsDir, *framesDir)
		if err := plotter.Start(outDir); err != nil {
			log.Fatalf("Failed to start plotter: %v", err)
		}
		log.Printf("Writing plots to %s", outDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := &camera.DirectorySource{Dir: *framesDir}
	frames := make(chan vision.Frame)
	go func() {
		if err := source.Stream(ctx, frames); err != nil {
			log.Printf("Frame source failed: %v", err)
			stop()
		}
	}()

	processed := 0
	for frame := range frames {
		if plotter != nil {
			plotter.IncrementFrame()
		}
		results, err := orchestrator.ProcessFrame(ctx, frame)
		if err != nil {
			log.Printf("Frame %s: %v", frame.ID, err)
		}
		if plotter != nil {
			plotter.Sample(results)
		}
		processed++
		for _, r := range results {
			log.Printf("Frame %s: %s plate=%q conf=%.2f source=%s",
				frame.ID, r.Status, r.PlateText, r.Confidence, r.Source)
		}
	}

	stats := orchestrator.Stats()
	log.Printf("Processed %d frames: %d detections (%d valid, %d uncertain, %d rejected)",
		processed, stats.Detections, stats.Valid, stats.Uncertain, stats.Rejected)

	if plotter != nil {
		plotter.Stop()
		n, err := plotter.GeneratePlots()
		if err != nil {
			log.Fatalf("Failed to generate plots: %v", err)
		}
		log.Printf("Wrote %d plots (%d samples)", n, plotter.GetSampleCount())
	}
}
