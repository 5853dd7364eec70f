package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platewatch-data/platewatch/internal/vision"
)

func testImage(w, h int, fill uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func collect(t *testing.T, src Source) ([]vision.Frame, error) {
	t.Helper()
	out := make(chan vision.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Stream(context.Background(), out) }()

	var frames []vision.Frame
	for f := range out {
		frames = append(frames, f)
	}
	return frames, <-errCh
}

func TestDirectorySourceReplaysInOrder(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		var buf bytes.Buffer
		if err := png.Encode(&buf, testImage(10, 10, uint8(50*i))); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-image files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	frames, err := collect(t, &DirectorySource{Dir: dir, Label: "replay"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Empty() {
			t.Errorf("frame %d is empty", i)
		}
		if f.Source != "replay" {
			t.Errorf("frame %d source = %q", i, f.Source)
		}
		if f.ID == "" {
			t.Errorf("frame %d has no ID", i)
		}
	}
	// Lexical order: darkest first.
	if c := color.GrayModel.Convert(frames[0].Image.At(0, 0)).(color.Gray); c.Y != 0 {
		t.Errorf("first frame pixel = %d, want 0 (a.png)", c.Y)
	}
}

func TestDirectorySourceSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.jpg"), []byte("not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(8, 8, 100), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "good.jpg"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	frames, err := collect(t, &DirectorySource{Dir: dir})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("got %d frames, want 1 (corrupt file skipped)", len(frames))
	}
}

func TestDirectorySourceMissingDir(t *testing.T) {
	_, err := collect(t, &DirectorySource{Dir: filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Error("expected resource error for missing directory")
	}
}

func TestSnapshotSourcePolls(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(32, 16, 128), nil); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &SnapshotSource{URL: srv.URL, Interval: 5 * time.Millisecond, Label: "cam1"}
	out := make(chan vision.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Stream(ctx, out) }()

	var frames []vision.Frame
	for f := range out {
		frames = append(frames, f)
		if len(frames) == 3 {
			cancel()
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(frames) < 3 {
		t.Fatalf("got %d frames, want >= 3", len(frames))
	}
	if frames[0].Width != 32 || frames[0].Height != 16 {
		t.Errorf("frame dims = %dx%d, want 32x16", frames[0].Width, frames[0].Height)
	}
	if frames[0].Source != "cam1" {
		t.Errorf("frame source = %q", frames[0].Source)
	}
}

func TestSnapshotSourceGivesUpAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := &SnapshotSource{
		URL:         srv.URL,
		Interval:    time.Millisecond,
		maxFailures: 3,
	}
	out := make(chan vision.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Stream(context.Background(), out) }()
	for range out {
	}
	if err := <-errCh; err == nil {
		t.Error("expected resource error after repeated failures")
	}
}

func TestMockSourceEmitsAllThenEnds(t *testing.T) {
	src := &MockSource{Images: []image.Image{
		testImage(4, 4, 1),
		testImage(4, 4, 2),
	}}
	frames, err := collect(t, src)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(frames) != 2 || src.EmittedCount() != 2 {
		t.Errorf("frames = %d, emitted = %d, want 2/2", len(frames), src.EmittedCount())
	}
}

// Zero images is the stream-ended-immediately case: the channel closes,
// no frames arrive, no error surfaces.
func TestMockSourceEmpty(t *testing.T) {
	frames, err := collect(t, &MockSource{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("got %d frames from empty source", len(frames))
	}
}
