package locate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// RemoteDetector runs plate detection against an external inference server
// over HTTP: the frame is posted as JPEG and the server answers with scored
// boxes (and optionally corner points) in JSON. This keeps the heavyweight
// model runtime out of this process; any server speaking the same small
// contract can be swapped in at startup.
type RemoteDetector struct {
	endpoint string
	client   *http.Client
}

// detectResponse is the inference server's answer for one frame.
type detectResponse struct {
	ImgWidth         int            `json:"img_width"`
	ImgHeight        int            `json:"img_height"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	Results          []detectResult `json:"results"`
}

type detectResult struct {
	X          int            `json:"x"`
	Y          int            `json:"y"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Confidence float64        `json:"confidence"`
	Corners    []vision.Point `json:"corners,omitempty"` // TL, TR, BR, BL when the model reports them
}

// NewRemoteDetector returns a detector posting frames to the given
// endpoint.
func NewRemoteDetector(endpoint string) *RemoteDetector {
	return &RemoteDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Detect posts the image and converts the server's boxes to Regions.
// Candidates below threshold are filtered server-side via the threshold
// query parameter and re-checked here.
func (d *RemoteDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]vision.Region, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("threshold", strconv.FormatFloat(threshold, 'f', 3, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference server returned %s", resp.Status)
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}

	regions := make([]vision.Region, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.Confidence < threshold {
			continue
		}
		box := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
		region := vision.RegionFromBBox(box, r.Confidence, vision.RegionSourceModel)
		if len(r.Corners) == 4 {
			// Model corners win over the box; recompute the box from them
			// so the enclosure invariant holds.
			region.Corners = r.Corners
			region.BBox = quadBBox(r.Corners)
		}
		regions = append(regions, region)
	}
	return regions, nil
}
