package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LEDStore persists LED states.
type LEDStore interface {
	SaveLED(ctx context.Context, id Identity, state LEDState) error
}

const (
	defaultWriteTimeout = 5 * time.Second
	defaultMaxRetries   = 3
)

// StateWriter persists LED changes off the write path.
//
// Changes are coalesced per device: if a device changes several times
// before the writer catches up, only the latest state is written. Failed
// writes are retried with exponential backoff and then dropped with a log
// line; the in-memory state stays authoritative.
type StateWriter struct {
	NopObserver

	store  LEDStore
	logger Logger

	mu      sync.Mutex
	pending map[Identity]LEDState
	wake    chan struct{}

	newBackOff func() backoff.BackOff
}

// NewStateWriter creates a writer that saves to store.
func NewStateWriter(store LEDStore) *StateWriter {
	return &StateWriter{
		store:   store,
		logger:  noopLogger{},
		pending: make(map[Identity]LEDState),
		wake:    make(chan struct{}, 1),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return backoff.WithMaxRetries(b, defaultMaxRetries)
		},
	}
}

// SetLogger sets the logger for the writer.
func (w *StateWriter) SetLogger(logger Logger) {
	w.logger = logger
}

// LEDChanged queues state for persistence. It never blocks.
func (w *StateWriter) LEDChanged(id Identity, state LEDState) {
	w.mu.Lock()
	w.pending[id] = state
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of devices waiting to be written.
func (w *StateWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run writes queued changes until ctx is cancelled, then performs a final
// flush with a short timeout.
func (w *StateWriter) Run(ctx context.Context) {
	for {
		select {
		case <-w.wake:
			if err := w.Flush(ctx); err != nil {
				w.logger.Warn("led state flush incomplete", "error", err)
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
			if err := w.Flush(flushCtx); err != nil {
				w.logger.Error("final led state flush failed", "error", err)
			}
			cancel()
			return
		}
	}
}

// Flush writes everything queued so far. It returns the number of devices
// whose state could not be saved as part of the error.
func (w *StateWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[Identity]LEDState)
	w.mu.Unlock()

	failed := 0
	for id, state := range batch {
		op := func() error {
			return w.store.SaveLED(ctx, id, state)
		}
		if err := backoff.Retry(op, backoff.WithContext(w.newBackOff(), ctx)); err != nil {
			failed++
			w.logger.Error("persisting led state failed",
				"device_id", string(id),
				"error", err,
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d led states not persisted", failed, len(batch))
	}
	return nil
}
