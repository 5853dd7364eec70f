package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// frameTimeFormat is how frame times are stored in SQLite. The driver's
// native time.Time binding writes Go's String() form, which the date
// functions cannot parse, so times are bound as text instead. Fixed-width
// fractional seconds keep text comparison consistent with time order.
const frameTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func encodeFrameTime(t time.Time) string {
	return t.UTC().Format(frameTimeFormat)
}

func decodeFrameTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse frame time %q: %w", s, err)
	}
	return t, nil
}

// Record inserts one detection. It satisfies the pipeline's sink contract
// and tolerates concurrent calls; SQLite serializes the writes.
func (db *DB) Record(ctx context.Context, result *vision.DetectionResult) error {
	if result == nil {
		return fmt.Errorf("nil detection result")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO detections (
			id, plate_text, confidence, status, source,
			frame_id, frame_time, patch_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.PlateText, result.Confidence, string(result.Status),
		string(result.Source), result.FrameID, encodeFrameTime(result.FrameTime), result.PatchPath,
	)
	if err != nil {
		return fmt.Errorf("insert detection %s: %w", result.ID, err)
	}
	return nil
}

// ListFilter narrows ListDetections. Zero values mean no constraint.
type ListFilter struct {
	Status vision.ValidationStatus
	Plate  string // exact plate text match
	Since  time.Time
	Until  time.Time
	Limit  int
}

const defaultListLimit = 100

// ListDetections returns detections newest-first.
func (db *DB) ListDetections(ctx context.Context, filter ListFilter) ([]vision.DetectionResult, error) {
	query := `SELECT id, plate_text, confidence, status, source, frame_id, frame_time, patch_path
		FROM detections WHERE 1=1`
	var args []interface{}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Plate != "" {
		query += " AND plate_text = ?"
		args = append(args, filter.Plate)
	}
	if !filter.Since.IsZero() {
		query += " AND frame_time >= ?"
		args = append(args, encodeFrameTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		query += " AND frame_time < ?"
		args = append(args, encodeFrameTime(filter.Until))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY frame_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vision.DetectionResult
	for rows.Next() {
		var (
			r         vision.DetectionResult
			status    string
			source    string
			frameTime string
			patchPath sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PlateText, &r.Confidence, &status, &source,
			&r.FrameID, &frameTime, &patchPath); err != nil {
			return nil, err
		}
		if r.FrameTime, err = decodeFrameTime(frameTime); err != nil {
			return nil, err
		}
		r.Status = vision.ValidationStatus(status)
		r.Source = vision.RegionSource(source)
		r.PatchPath = patchPath.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// StatusCounts returns the number of detections per validation status.
func (db *DB) StatusCounts(ctx context.Context) (map[vision.ValidationStatus]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM detections GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[vision.ValidationStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[vision.ValidationStatus(status)] = n
	}
	return counts, rows.Err()
}

// HourlyBucket is one hour of detection activity with confidence
// percentiles over the bucket's readings.
type HourlyBucket struct {
	Hour          time.Time `json:"hour"`
	Total         int       `json:"total"`
	Valid         int       `json:"valid"`
	Uncertain     int       `json:"uncertain"`
	Rejected      int       `json:"rejected"`
	ConfidenceP50 float64   `json:"confidence_p50"`
	ConfidenceP95 float64   `json:"confidence_p95"`
}

// HourlyRollup aggregates detections between since and until into hourly
// buckets, oldest first. Hours with no detections are omitted.
func (db *DB) HourlyRollup(ctx context.Context, since, until time.Time) ([]HourlyBucket, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT strftime('%Y-%m-%dT%H:00:00Z', frame_time) AS hour, status, confidence
		FROM detections
		WHERE frame_time >= ? AND frame_time < ?
		ORDER BY hour`,
		encodeFrameTime(since), encodeFrameTime(until))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type bucketAccum struct {
		bucket      HourlyBucket
		confidences []float64
	}
	var (
		order  []string
		accums = make(map[string]*bucketAccum)
	)
	for rows.Next() {
		var hour, status string
		var confidence float64
		if err := rows.Scan(&hour, &status, &confidence); err != nil {
			return nil, err
		}
		acc, ok := accums[hour]
		if !ok {
			t, err := time.Parse(time.RFC3339, hour)
			if err != nil {
				return nil, fmt.Errorf("parse rollup hour %q: %w", hour, err)
			}
			acc = &bucketAccum{bucket: HourlyBucket{Hour: t}}
			accums[hour] = acc
			order = append(order, hour)
		}
		acc.bucket.Total++
		switch vision.ValidationStatus(status) {
		case vision.StatusValid:
			acc.bucket.Valid++
		case vision.StatusUncertain:
			acc.bucket.Uncertain++
		case vision.StatusRejected:
			acc.bucket.Rejected++
		}
		acc.confidences = append(acc.confidences, confidence)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	buckets := make([]HourlyBucket, 0, len(order))
	for _, hour := range order {
		acc := accums[hour]
		sort.Float64s(acc.confidences)
		acc.bucket.ConfidenceP50 = stat.Quantile(0.5, stat.Empirical, acc.confidences, nil)
		acc.bucket.ConfidenceP95 = stat.Quantile(0.95, stat.Empirical, acc.confidences, nil)
		buckets = append(buckets, acc.bucket)
	}
	return buckets, nil
}

// CleanupOlderThan deletes detections whose frame time predates the cutoff
// and returns the number removed. Run from the retention sweep.
func (db *DB) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM detections WHERE frame_time < ?`, encodeFrameTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
