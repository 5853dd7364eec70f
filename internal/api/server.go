// Package api exposes the HTTP surface: detection queries, rollup stats,
// runtime tuning, live detection streaming, and dashboard charts.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/platewatch-data/platewatch/internal/config"
	"github.com/platewatch-data/platewatch/internal/db"
	"github.com/platewatch-data/platewatch/internal/vision/pipeline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db       *db.DB
	cfg      *config.Store
	pipeline *pipeline.Orchestrator
	patches  string // directory of saved patch images; empty disables serving
}

// NewServer wires the API over the database, config store, and (optionally)
// the live pipeline. A nil pipeline disables the stats and stream routes'
// live portions but keeps the stored data available.
func NewServer(database *db.DB, cfg *config.Store, orchestrator *pipeline.Orchestrator, patchesDir string) *Server {
	return &Server{
		db:       database,
		cfg:      cfg,
		pipeline: orchestrator,
		patches:  patchesDir,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/detections", s.listDetections)
	mux.HandleFunc("/api/detections/stream", s.streamDetections)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/stats/hourly", s.showHourlyStats)
	mux.HandleFunc("/api/pipeline/params", s.pipelineParams)
	mux.HandleFunc("/charts/hourly", s.hourlyChart)
	if s.patches != "" {
		mux.Handle("/patches/", http.StripPrefix("/patches/",
			http.FileServer(http.Dir(s.patches))))
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
