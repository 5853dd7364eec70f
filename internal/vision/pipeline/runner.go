package pipeline

import (
	"context"
	"errors"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// Run consumes frames until the channel closes or ctx is cancelled,
// processing at most one frame at a time. When frames arrive faster than
// the pipeline can process them, intervening frames are dropped so the
// newest frame is always next (bounded-buffer-of-one). A closed source is
// benign completion; Run returns nil.
//
// Sink write failures are logged and do not stop the pipeline: the
// affected results were already returned by ProcessFrame and counted.
// Any other ProcessFrame error is resource-level and surfaces to the
// caller.
func (o *Orchestrator) Run(ctx context.Context, frames <-chan vision.Frame) error {
	pending := make(chan vision.Frame, 1)

	// Feeder: keep only the newest unprocessed frame in the mailbox.
	go func() {
		defer close(pending)
		for frame := range frames {
			select {
			case pending <- frame:
			default:
				// Mailbox full: replace the stale frame with this one.
				select {
				case <-pending:
					o.stats.recordDropped()
				default:
				}
				select {
				case pending <- frame:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Drain the feeder so it can exit once the source closes.
			go func() {
				for range pending {
				}
			}()
			return nil
		case frame, ok := <-pending:
			if !ok {
				return nil
			}
			if _, err := o.ProcessFrame(ctx, frame); err != nil {
				switch {
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					// Shutdown mid-frame: the abandoned invocation's
					// partial results were never persisted.
					continue
				case errors.Is(err, ErrSinkWrite):
					opsf("frame %s: %v", frame.ID, err)
				default:
					opsf("pipeline stopping: %v", err)
					return err
				}
			}
		}
	}
}
