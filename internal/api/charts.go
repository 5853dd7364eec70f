package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// hourlyChart renders an hourly detection bar chart (HTML) using go-echarts.
// This is a debugging-only endpoint (no auth) to eyeball throughput and
// validation mix without the JSON API.
// Query params:
//   - days (optional; default 1) window size into the past
func (s *Server) hourlyChart(w http.ResponseWriter, r *http.Request) {
	days := 1
	if d := r.URL.Query().Get("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v >= 1 && v <= 90 {
			days = v
		}
	}

	now := time.Now().UTC()
	buckets, err := s.db.HourlyRollup(r.Context(), now.AddDate(0, 0, -days), now)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to load hourly rollup: %v", err))
		return
	}
	if len(buckets) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no detections in window")
		return
	}

	hours := make([]string, 0, len(buckets))
	valid := make([]opts.BarData, 0, len(buckets))
	uncertain := make([]opts.BarData, 0, len(buckets))
	rejected := make([]opts.BarData, 0, len(buckets))
	for _, b := range buckets {
		hours = append(hours, b.Hour.Format("01-02 15:04"))
		valid = append(valid, opts.BarData{Value: b.Valid})
		uncertain = append(uncertain, opts.BarData{Value: b.Uncertain})
		rejected = append(rejected, opts.BarData{Value: b.Rejected})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Detections by Hour", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detections by Hour", Subtitle: fmt.Sprintf("last %dd, hours=%d", days, len(buckets))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "status"})
	bar.SetXAxis(hours).
		AddSeries("valid", valid, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#35b779"})).
		AddSeries("uncertain", uncertain, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#fde725"})).
		AddSeries("rejected", rejected, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
