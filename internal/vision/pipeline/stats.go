package pipeline

import (
	"sync"
	"time"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Stats is a snapshot of the orchestrator's rolling counters. These are
// orchestration metadata, not domain data; they reset with the process.
type Stats struct {
	FramesProcessed uint64    `json:"frames_processed"`
	FramesDropped   uint64    `json:"frames_dropped"`
	Detections      uint64    `json:"detections"`
	Valid           uint64    `json:"valid"`
	Uncertain       uint64    `json:"uncertain"`
	Rejected        uint64    `json:"rejected"`
	LastFrameTime   time.Time `json:"last_frame_time"`
	// AvgProcessMillis is an exponential moving average of per-frame
	// processing time.
	AvgProcessMillis float64 `json:"avg_process_millis"`
}

// ewmaAlpha weights the latest frame's processing time in the average.
const ewmaAlpha = 0.1

type statsState struct {
	mu sync.Mutex
	s  Stats
}

func (st *statsState) recordFrame(elapsed time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.FramesProcessed++
	st.s.LastFrameTime = time.Now()
	ms := float64(elapsed) / float64(time.Millisecond)
	if st.s.AvgProcessMillis == 0 {
		st.s.AvgProcessMillis = ms
	} else {
		st.s.AvgProcessMillis = ewmaAlpha*ms + (1-ewmaAlpha)*st.s.AvgProcessMillis
	}
}

func (st *statsState) recordDetection(status vision.ValidationStatus) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Detections++
	switch status {
	case vision.StatusValid:
		st.s.Valid++
	case vision.StatusUncertain:
		st.s.Uncertain++
	case vision.StatusRejected:
		st.s.Rejected++
	}
}

func (st *statsState) recordDropped() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.FramesDropped++
}

func (st *statsState) snapshot() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Stats returns a copy of the current rolling statistics.
func (o *Orchestrator) Stats() Stats {
	return o.stats.snapshot()
}
