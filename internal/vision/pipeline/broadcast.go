package pipeline

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/platewatch-data/platewatch/internal/vision"
)

// broadcaster fans completed detections out to live subscribers (SSE
// streams, notifiers). Delivery is best-effort: a subscriber that is not
// keeping up misses results rather than stalling the pipeline.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan vision.DetectionResult
}

func (b *broadcaster) init() {
	b.subscribers = make(map[string]chan vision.DetectionResult)
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	buf := make([]byte, 8)
	crand.Read(buf)
	return hex.EncodeToString(buf)
}

func (b *broadcaster) subscribe() (string, chan vision.DetectionResult) {
	id := randomID()
	ch := make(chan vision.DetectionResult, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch
	return id, ch
}

func (b *broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

func (b *broadcaster) publish(result vision.DetectionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- result:
		default:
			// if the channel is full skip so as not to block the pipeline
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Subscribe registers a live detection listener and returns its ID and
// channel. The channel is buffered; slow consumers miss results instead of
// blocking frame processing.
func (o *Orchestrator) Subscribe() (string, chan vision.DetectionResult) {
	return o.bus.subscribe()
}

// Unsubscribe removes a listener and closes its channel.
func (o *Orchestrator) Unsubscribe(id string) {
	o.bus.unsubscribe(id)
}

// Close shuts down all live subscriptions.
func (o *Orchestrator) Close() {
	o.bus.closeAll()
}
