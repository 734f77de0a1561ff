package device

import (
	"fmt"
	"sort"
	"time"
)

// IngestionService accepts sensor samples and button events from devices.
type IngestionService struct {
	registry *Registry
	now      func() time.Time
}

// NewIngestionService creates an ingestion service over reg.
func NewIngestionService(reg *Registry) *IngestionService {
	return &IngestionService{registry: reg, now: time.Now}
}

// Submit records a batch of samples taken at timestamp.
//
// The whole batch is validated first: it must be non-empty, every channel
// must be known, every value finite, and the timestamp RFC 3339. Accepted
// batches are applied under one lock acquisition, so readers see either
// none or all of the batch.
func (s *IngestionService) Submit(id Identity, timestamp string, values map[string]float64) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no sensor values", ErrValidation)
	}
	ts, err := ParseTimestamp(timestamp)
	if err != nil {
		return err
	}

	batch := make([]SensorSample, 0, len(values))
	for name, v := range values {
		ch, err := ParseChannel(name)
		if err != nil {
			return err
		}
		if err := checkFinite(name, v); err != nil {
			return err
		}
		batch = append(batch, SensorSample{Timestamp: ts, Channel: ch, Value: v})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Channel < batch[j].Channel })

	rec := s.registry.Resolve(id)
	rec.mu.Lock()
	for _, sample := range batch {
		rec.samples[sample.Channel] = sample
	}
	rec.mu.Unlock()

	for _, o := range s.registry.snapshotObservers() {
		o.SamplesRecorded(id, batch)
	}
	return nil
}

// SubmitButton overwrites the button state of id and returns the stored event.
func (s *IngestionService) SubmitButton(id Identity, pressed bool) ButtonEvent {
	now := s.now().UTC()
	ev := ButtonEvent{Pressed: pressed, UpdatedAt: &now}

	rec := s.registry.Resolve(id)
	rec.mu.Lock()
	rec.button = ev
	rec.mu.Unlock()

	for _, o := range s.registry.snapshotObservers() {
		o.ButtonChanged(id, ev)
	}
	return ev
}

// LastSamples returns the last-known sample per channel.
func (s *IngestionService) LastSamples(id Identity) map[Channel]SensorSample {
	out := make(map[Channel]SensorSample)
	rec, ok := s.registry.lookup(id)
	if !ok {
		return out
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for ch, sample := range rec.samples {
		out[ch] = sample
	}
	return out
}

// Button returns the last reported button state.
func (s *IngestionService) Button(id Identity) ButtonEvent {
	rec, ok := s.registry.lookup(id)
	if !ok {
		return ButtonEvent{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.button
}
