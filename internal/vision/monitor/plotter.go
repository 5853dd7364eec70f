// Package monitor records detection outcomes over a run and renders them
// as PNG plots for offline tuning sessions.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// RunPlotter samples detection results during a run, accumulating per-status
// time series that can be plotted after the run finishes.
type RunPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	// samples holds per-status series, keyed by validation status.
	samples map[vision.ValidationStatus][]runSample

	frameIdx int
}

type runSample struct {
	FrameIdx   int
	Timestamp  time.Time
	Confidence float64
	Source     vision.RegionSource
}

func NewRunPlotter() *RunPlotter {
	return &RunPlotter{
		samples: make(map[vision.ValidationStatus][]runSample),
	}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g. "plots/lot-a/20260830_120000").
func (rp *RunPlotter) Start(outputDir string) error {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	rp.outputDir = outputDir
	rp.enabled = true
	rp.frameIdx = 0
	rp.samples = make(map[vision.ValidationStatus][]runSample)
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (rp *RunPlotter) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (rp *RunPlotter) IsEnabled() bool {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.enabled
}

// IncrementFrame should be called once per frame to track frame boundaries.
// Frames with no detections advance the x-axis without adding points.
func (rp *RunPlotter) IncrementFrame() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.enabled {
		rp.frameIdx++
	}
}

// Sample records the detections produced for the current frame.
func (rp *RunPlotter) Sample(results []vision.DetectionResult) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if !rp.enabled {
		return
	}

	now := time.Now()
	for _, r := range results {
		rp.samples[r.Status] = append(rp.samples[r.Status], runSample{
			FrameIdx:   rp.frameIdx,
			Timestamp:  now,
			Confidence: r.Confidence,
			Source:     r.Source,
		})
	}
}

// GetSampleCount returns the total number of samples collected.
func (rp *RunPlotter) GetSampleCount() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	count := 0
	for _, samples := range rp.samples {
		count += len(samples)
	}
	return count
}

var statusColors = map[vision.ValidationStatus]color.Color{
	vision.StatusValid:     color.RGBA{R: 53, G: 183, B: 121, A: 255},
	vision.StatusUncertain: color.RGBA{R: 222, G: 190, B: 43, A: 255},
	vision.StatusRejected:  color.RGBA{R: 255, G: 82, B: 82, A: 255},
}

// GeneratePlots creates PNG files summarising the run: a per-status
// confidence scatter and a cumulative detection count line.
// Returns the number of plots generated and any error.
func (rp *RunPlotter) GeneratePlots() (int, error) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(rp.samples) == 0 {
		return 0, nil
	}

	if err := rp.generateConfidencePlot(); err != nil {
		return 0, err
	}
	if err := rp.generateCountPlot(); err != nil {
		return 1, err
	}
	return 2, nil
}

func (rp *RunPlotter) generateConfidencePlot() error {
	p := plot.New()
	p.Title.Text = "Plate Read Confidence"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Confidence"
	p.Y.Min = 0
	p.Y.Max = 1

	for _, status := range sortedStatuses(rp.samples) {
		samples := rp.samples[status]
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pts = append(pts, plotter.XY{X: float64(s.FrameIdx), Y: s.Confidence})
		}
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = statusColors[status]
		scatter.GlyphStyle.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add(string(status), scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	out := filepath.Join(rp.outputDir, "confidence.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("save confidence plot: %w", err)
	}
	return nil
}

func (rp *RunPlotter) generateCountPlot() error {
	p := plot.New()
	p.Title.Text = "Cumulative Detections"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Count"

	for _, status := range sortedStatuses(rp.samples) {
		samples := rp.samples[status]
		pts := make(plotter.XYs, 0, len(samples))
		for i, s := range samples {
			pts = append(pts, plotter.XY{X: float64(s.FrameIdx), Y: float64(i + 1)})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = statusColors[status]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(string(status), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	out := filepath.Join(rp.outputDir, "counts.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("save count plot: %w", err)
	}
	return nil
}

func sortedStatuses(samples map[vision.ValidationStatus][]runSample) []vision.ValidationStatus {
	statuses := make([]vision.ValidationStatus, 0, len(samples))
	for s := range samples {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	return statuses
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for plots.
// For directory replays: plots/<dir_basename>/<timestamp>
// For live data: plots/live_<timestamp>
func MakePlotOutputDir(baseDir, sourceDir string) string {
	ts := FormatTimestamp(time.Now())
	if sourceDir != "" {
		return filepath.Join(baseDir, filepath.Base(filepath.Clean(sourceDir)), ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
