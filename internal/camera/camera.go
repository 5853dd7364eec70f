// Package camera supplies frames to the detection pipeline.
//
// A Source pushes frames into a channel at its native rate and returns nil
// when the stream ends. Stream end is benign: a camera being switched off
// or a directory running out of images is normal completion, not an error.
package camera

import (
	"context"
	"fmt"

	// Register the decoders frame sources rely on.
	_ "image/jpeg"
	_ "image/png"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Source produces frames until its input is exhausted or ctx is cancelled.
type Source interface {
	// Stream decodes frames and sends them to out until the source ends
	// or ctx is cancelled. It returns nil on benign completion (stream
	// ended, ctx cancelled) and an error only for resource-level
	// failures such as an unreadable device. Stream closes out before
	// returning so consumers can range over the channel.
	Stream(ctx context.Context, out chan<- vision.Frame) error
}

// send delivers one frame unless ctx is cancelled first.
func send(ctx context.Context, out chan<- vision.Frame, frame vision.Frame) error {
	select {
	case out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decodeErr annotates a decode failure with the offending input.
func decodeErr(name string, err error) error {
	return fmt.Errorf("decode frame %s: %w", name, err)
}
