package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the device services.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified after a state change has been applied.
//
// Methods are called on the writer's goroutine once the record lock has
// been released. Implementations must return quickly; anything that does
// I/O should hand the change to its own goroutine.
//
// Setup and LED notifications for one device arrive in the order the
// changes were applied.
type Observer interface {
	SetupChanged(id Identity, cfg SetupConfig)
	SamplesRecorded(id Identity, samples []SensorSample)
	ButtonChanged(id Identity, ev ButtonEvent)
	LEDChanged(id Identity, state LEDState)
}

// NopObserver implements Observer with no-ops. Embed it to handle only
// the notifications you care about.
type NopObserver struct{}

func (NopObserver) SetupChanged(Identity, SetupConfig)       {}
func (NopObserver) SamplesRecorded(Identity, []SensorSample) {}
func (NopObserver) ButtonChanged(Identity, ButtonEvent)      {}
func (NopObserver) LEDChanged(Identity, LEDState)            {}

// Record is the mutable state of one device.
//
// mu guards every field below it. setupMu and ledMu serialise writers of
// the setup and LED so that observers see changes in apply order; they are
// always acquired before mu, never while holding it.
type Record struct {
	id Identity

	setupMu sync.Mutex
	ledMu   sync.Mutex

	mu          sync.Mutex
	setup       SetupConfig
	samples     map[Channel]SensorSample
	button      ButtonEvent
	led         LEDState
	subscribers map[*Subscriber]struct{}
}

func newRecord(id Identity) *Record {
	return &Record{
		id:          id,
		samples:     make(map[Channel]SensorSample),
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// ID returns the device identity.
func (r *Record) ID() Identity {
	return r.id
}

// Snapshot returns a consistent copy of the record.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	samples := make(map[Channel]SensorSample, len(r.samples))
	for ch, s := range r.samples {
		samples[ch] = s
	}
	return Snapshot{
		ID:          r.id,
		Setup:       r.setup,
		Samples:     samples,
		Button:      r.button,
		LED:         r.led,
		Subscribers: len(r.subscribers),
	}
}

// Registry maps device identities to their records.
//
// Records are created on first reference and live for the lifetime of the
// process. All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	records map[Identity]*Record

	obsMu     sync.RWMutex
	observers []Observer

	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[Identity]*Record),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddObserver registers o for all subsequent state changes.
func (r *Registry) AddObserver(o Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, o)
	r.obsMu.Unlock()
}

func (r *Registry) snapshotObservers() []Observer {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	return r.observers
}

// Resolve returns the record for id, creating a default one if the device
// has not been seen before. Concurrent first references create exactly one
// record.
func (r *Registry) Resolve(id Identity) *Record {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if ok {
		return rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have won the race between the two locks.
	if rec, ok := r.records[id]; ok {
		return rec
	}
	rec = newRecord(id)
	r.records[id] = rec
	r.logger.Debug("device registered", "device_id", string(id))
	return rec
}

// lookup returns the record for id without creating one.
func (r *Registry) lookup(id Identity) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Exists reports whether id has been referenced before.
func (r *Registry) Exists(id Identity) bool {
	_, ok := r.lookup(id)
	return ok
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Identities returns all known identities in sorted order.
func (r *Registry) Identities() []Identity {
	r.mu.RLock()
	ids := make([]Identity, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// all returns a copy of the current record set.
func (r *Registry) all() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// StateLoader loads persisted device state.
type StateLoader interface {
	LoadSetups(ctx context.Context) (map[Identity]SetupConfig, error)
	LoadLEDs(ctx context.Context) (map[Identity]LEDState, error)
}

// Restore hydrates records from persisted state. It is meant to run once
// at startup before any subscriber exists, and does not notify observers.
func (r *Registry) Restore(ctx context.Context, loader StateLoader) error {
	setups, err := loader.LoadSetups(ctx)
	if err != nil {
		return fmt.Errorf("loading setups: %w", err)
	}
	leds, err := loader.LoadLEDs(ctx)
	if err != nil {
		return fmt.Errorf("loading led states: %w", err)
	}

	for id, cfg := range setups {
		rec := r.Resolve(id)
		rec.mu.Lock()
		rec.setup = cfg
		rec.mu.Unlock()
	}
	for id, state := range leds {
		rec := r.Resolve(id)
		rec.mu.Lock()
		rec.led = state
		rec.mu.Unlock()
	}

	r.logger.Info("device state restored", "setups", len(setups), "leds", len(leds), "devices", r.Count())
	return nil
}
