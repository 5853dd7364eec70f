package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/platewatch-data/platewatch/internal/config"
	"github.com/platewatch-data/platewatch/internal/db"
	"github.com/platewatch-data/platewatch/internal/version"
	"github.com/platewatch-data/platewatch/internal/vision"
)

const maxListLimit = 1000

func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter := db.ListFilter{
		Status: vision.ValidationStatus(r.URL.Query().Get("status")),
		Plate:  r.URL.Query().Get("plate"),
	}
	switch filter.Status {
	case "", vision.StatusValid, vision.StatusUncertain, vision.StatusRejected:
	default:
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'status' parameter")
		return
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'since' parameter")
			return
		}
		filter.Since = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'until' parameter")
			return
		}
		filter.Until = t
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxListLimit {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		filter.Limit = n
	}

	detections, err := s.db.ListDetections(r.Context(), filter)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve detections: %v", err))
		return
	}
	if detections == nil {
		detections = []vision.DetectionResult{}
	}
	if err := json.NewEncoder(w).Encode(detections); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write detections")
		return
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	counts, err := s.db.StatusCounts(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve stats: %v", err))
		return
	}

	response := map[string]interface{}{
		"version": version.String(),
		"stored":  counts,
	}
	if s.pipeline != nil {
		response["pipeline"] = s.pipeline.Stats()
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
		return
	}
}

func (s *Server) showHourlyStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	days := 1 // default value
	if d := r.URL.Query().Get("days"); d != "" {
		parsedDays, err := strconv.Atoi(d)
		if err != nil || parsedDays < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'days' parameter")
			return
		}
		days = parsedDays
	}

	now := time.Now().UTC()
	buckets, err := s.db.HourlyRollup(r.Context(), now.AddDate(0, 0, -days), now)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve hourly stats: %v", err))
		return
	}
	if buckets == nil {
		buckets = []db.HourlyBucket{}
	}
	if err := json.NewEncoder(w).Encode(buckets); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write hourly stats")
		return
	}
}

// pipelineParams reads or updates the runtime tuning parameters. Updates
// are partial: only the fields present in the request body change, and they
// take effect on the next frame.
func (s *Server) pipelineParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		if err := json.NewEncoder(w).Encode(s.cfg.Snapshot()); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write params")
		}
	case http.MethodPost:
		update := config.EmptyTuningConfig()
		if err := json.NewDecoder(r.Body).Decode(update); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid params JSON: %v", err))
			return
		}
		if err := s.cfg.Update(update); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid params: %v", err))
			return
		}
		if err := json.NewEncoder(w).Encode(s.cfg.Snapshot()); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write params")
		}
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// streamDetections pushes live detections as server-sent events until the
// client disconnects. Slow clients miss events rather than stalling the
// pipeline.
func (s *Server) streamDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.pipeline == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Pipeline not running")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSONError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.pipeline.Subscribe()
	defer s.pipeline.Unsubscribe(id)

	// Heartbeat keeps intermediaries from timing out idle streams.
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case result, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(result)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: detection\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
