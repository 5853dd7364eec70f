package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/platewatch-data/platewatch/internal/api"
	"github.com/platewatch-data/platewatch/internal/camera"
	"github.com/platewatch-data/platewatch/internal/config"
	"github.com/platewatch-data/platewatch/internal/db"
	"github.com/platewatch-data/platewatch/internal/notify"
	"github.com/platewatch-data/platewatch/internal/version"
	"github.com/platewatch-data/platewatch/internal/vision"
	"github.com/platewatch-data/platewatch/internal/vision/locate"
	"github.com/platewatch-data/platewatch/internal/vision/ocr"
	"github.com/platewatch-data/platewatch/internal/vision/pipeline"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "platewatch.db", "SQLite database path")
	migrations  = flag.String("migrations", "db/migrations", "Migrations directory")
	configFile  = flag.String("config", "", "Tuning config JSON (defaults apply when empty)")
	framesDir   = flag.String("frames-dir", "", "Read frames from a directory of images instead of a camera")
	snapshotURL = flag.String("snapshot-url", "", "Camera snapshot URL to poll")
	interval    = flag.Duration("interval", time.Second, "Frame polling interval")
	patchesDir  = flag.String("patches-dir", "patches", "Directory for rectified patch images; empty disables")
	noOCR       = flag.Bool("no-ocr", false, "Disable the Tesseract engine (regions are persisted as rejected)")
	chatID      = flag.Int64("telegram-chat", 0, "Telegram chat ID for alerts (token from TELEGRAM_BOT_TOKEN)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("platewatch %s", version.String())
	if debugLog := os.Getenv("PLATEWATCH_DEBUG_LOG"); debugLog != "" {
		pipeline.SetLegacyLogger(os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, nil, nil)
	}

	cfg := config.MustLoadDefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	store := config.NewStore(cfg)

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrations); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	var engine ocr.Engine
	if !*noOCR {
		snap := store.Snapshot()
		whitelist := snap.GetPlateAlphabet() + snap.GetPlateSeparators()
		engine, err = ocr.NewTesseractEngine(snap.GetOCRLanguages(), whitelist)
		if err != nil {
			log.Fatalf("failed to start OCR engine: %v", err)
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

	source, err := buildSource()
	if err != nil {
		log.Fatalf("failed to configure frame source: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// frame acquisition routine
	frames := make(chan vision.Frame)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Stream(ctx, frames); err != nil && err != context.Canceled {
			log.Printf("frame source failed: %v", err)
			stop()
		}
		log.Print("frame source routine terminated")
	}()

	// pipeline routine consuming frames until the source closes
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orchestrator.Run(ctx, frames); err != nil {
			log.Printf("pipeline stopped: %v", err)
			stop()
		}
		log.Print("pipeline routine terminated")
	}()

	// Telegram alerting on a pipeline subscription
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && *chatID != 0 {
		bot, err := notify.NewBot(token)
		if err != nil {
			log.Fatalf("failed to connect to Telegram: %v", err)
		}
		notifier := notify.NewNotifier(bot, *chatID)
		id, ch := orchestrator.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer orchestrator.Unsubscribe(id)
			notifier.Run(ctx, ch)
			log.Print("notifier routine terminated")
		}()
	}

	// retention sweep over rows and patch files
	wg.Add(1)
	go func() {
		defer wg.Done()
		runRetentionSweep(ctx, database, store, *patchesDir)
		log.Print("retention routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// admin debugging routes (tailsql console and backups)
		database.AttachAdminRoutes(mux)

		apiMux := api.NewServer(database, store, orchestrator, *patchesDir).ServeMux()
		mux.Handle("/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// buildSource selects the frame source from flags: a directory replay when
// -frames-dir is set, otherwise a snapshot poller.
func buildSource() (camera.Source, error) {
	if *framesDir != "" {
		return &camera.DirectorySource{
			Dir:      *framesDir,
			Interval: *interval,
			Label:    labelFor(*framesDir),
		}, nil
	}
	if *snapshotURL != "" {
		return &camera.SnapshotSource{
			URL:      *snapshotURL,
			Interval: *interval,
			Label:    "snapshot",
		}, nil
	}
	return nil, errNoSource
}

var errNoSource = &flagError{"one of -frames-dir or -snapshot-url is required"}

type flagError struct{ msg string }

func (e *flagError) Error() string { return e.msg }

func labelFor(dir string) string {
	trimmed := strings.TrimRight(dir, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "directory"
	}
	return trimmed
}

// runRetentionSweep deletes detections and patch files older than the
// configured retention window. It runs once at startup and then daily.
func runRetentionSweep(ctx context.Context, database *db.DB, store *config.Store, patchesDir string) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	sweep := func() {
		days := store.Snapshot().GetRetentionDays()
		if days <= 0 {
			return
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		removed, err := database.CleanupOlderThan(ctx, cutoff)
		if err != nil {
			log.Printf("retention sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("retention sweep removed %d detections older than %s", removed, cutoff.Format(time.RFC3339))
		}
		if patchesDir != "" {
			ps := &pipeline.FilePatchStore{Dir: patchesDir}
			if err := ps.CleanupOlderThan(cutoff); err != nil {
				log.Printf("patch retention sweep failed: %v", err)
			}
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
