package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/thingy-gateway/internal/device"
)

const eventStreamType = "text/event-stream"

// handleGetLED returns the current LED state, or streams it as Server-Sent
// Events when the client accepts text/event-stream.
func (s *Server) handleGetLED(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}
	if acceptsEventStream(r) {
		s.streamLED(w, r, id)
		return
	}
	writeJSON(w, http.StatusOK, s.actuators.GetLED(id))
}

func (s *Server) handlePutLED(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}

	var update device.LEDUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	state, err := update.State()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.actuators.SetLED(id, state); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// acceptsEventStream reports whether the Accept header lists text/event-stream.
func acceptsEventStream(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == eventStreamType {
			return true
		}
	}
	return false
}

// streamLED writes one SSE event per delivered LED state until the client
// goes away or the server closes.
//
// When no change arrives within the keep-alive interval the last delivered
// state is sent again. It keeps intermediaries from timing out the stream
// and never moves a reader backwards.
func (s *Server) streamLED(w http.ResponseWriter, r *http.Request, id device.Identity) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("clearing stream write deadline failed", "error", err)
	}

	sub, _ := s.broadcaster.Subscribe(id)
	defer s.broadcaster.Unsubscribe(id, sub)

	h := w.Header()
	h.Set("Content-Type", eventStreamType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.logger.Debug("led stream opened", "device_id", string(id), "subscriber", sub.ID())
	defer s.logger.Debug("led stream closed", "device_id", string(id), "subscriber", sub.ID(), "dropped", sub.Dropped())

	ctx := r.Context()
	var last device.LEDState
	for {
		state, err := s.nextState(ctx, sub)
		switch {
		case err == nil:
			last = state
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			state = last
		default:
			return
		}

		if err := writeEvent(w, state); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// nextState waits for the subscriber's next state, giving up after the
// keep-alive interval when one is configured.
func (s *Server) nextState(ctx context.Context, sub *device.Subscriber) (device.LEDState, error) {
	if s.keepAlive <= 0 {
		return sub.Next(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.keepAlive)
	defer cancel()
	return sub.Next(waitCtx)
}

// writeEvent writes state as one SSE data event.
func writeEvent(w http.ResponseWriter, state device.LEDState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
