package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

// recordingObserver captures notifications for assertions.
type recordingObserver struct {
	mu      sync.Mutex
	setups  []SetupConfig
	samples [][]SensorSample
	buttons []ButtonEvent
	leds    []LEDState
}

func (o *recordingObserver) SetupChanged(_ Identity, cfg SetupConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setups = append(o.setups, cfg)
}

func (o *recordingObserver) SamplesRecorded(_ Identity, samples []SensorSample) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, samples)
}

func (o *recordingObserver) ButtonChanged(_ Identity, ev ButtonEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buttons = append(o.buttons, ev)
}

func (o *recordingObserver) LEDChanged(_ Identity, state LEDState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.leds = append(o.leds, state)
}

func (o *recordingObserver) ledCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.leds)
}

func TestRegistry_ResolveCreatesOnce(t *testing.T) {
	reg := NewRegistry()

	const workers = 64
	records := make([]*Record, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			records[i] = reg.Resolve("d1")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	for i, rec := range records {
		if rec != records[0] {
			t.Fatalf("Resolve() #%d returned a different record", i)
		}
	}
	if got := reg.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestRegistry_Exists(t *testing.T) {
	reg := NewRegistry()

	if reg.Exists("d1") {
		t.Error("Exists() = true before first reference")
	}
	reg.Resolve("d1")
	if !reg.Exists("d1") {
		t.Error("Exists() = false after Resolve")
	}
	if reg.Exists("D1") {
		t.Error("Exists() must match identities exactly")
	}
}

func TestRegistry_ReadsDoNotCreateRecords(t *testing.T) {
	reg := NewRegistry()
	setups := NewConfigStore(reg)
	leds := NewActuatorController(reg)
	ingest := NewIngestionService(reg)

	_ = setups.GetSetup("ghost")
	_ = leds.GetLED("ghost")
	_ = ingest.LastSamples("ghost")
	_ = ingest.Button("ghost")

	if reg.Exists("ghost") {
		t.Error("snapshot reads must not register devices")
	}
}

func TestRegistry_Identities(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []Identity{"c", "a", "b"} {
		reg.Resolve(id)
	}

	got := reg.Identities()
	want := []Identity{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Identities() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Identities()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRecord_Snapshot(t *testing.T) {
	reg := NewRegistry()
	leds := NewActuatorController(reg)
	ingest := NewIngestionService(reg)
	streams := NewBroadcaster(leds, 1)

	if err := leds.SetLED("d1", LEDState{Color: 2, Intensity: 3}); err != nil {
		t.Fatalf("SetLED() error = %v", err)
	}
	if err := ingest.Submit("d1", "2024-01-01T00:00:00Z", map[string]float64{"gas": 7}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	sub, _ := streams.Subscribe("d1")
	defer sub.Close()

	snap := reg.Resolve("d1").Snapshot()
	if snap.ID != "d1" {
		t.Errorf("Snapshot().ID = %q, want d1", snap.ID)
	}
	if snap.LED != (LEDState{Color: 2, Intensity: 3}) {
		t.Errorf("Snapshot().LED = %+v", snap.LED)
	}
	if snap.Samples[ChannelGas].Value != 7 {
		t.Errorf("Snapshot().Samples[gas] = %v, want 7", snap.Samples[ChannelGas].Value)
	}
	if snap.Subscribers != 1 {
		t.Errorf("Snapshot().Subscribers = %d, want 1", snap.Subscribers)
	}
}

type fakeLoader struct {
	setups map[Identity]SetupConfig
	leds   map[Identity]LEDState
	err    error
}

func (f fakeLoader) LoadSetups(context.Context) (map[Identity]SetupConfig, error) {
	return f.setups, f.err
}

func (f fakeLoader) LoadLEDs(context.Context) (map[Identity]LEDState, error) {
	return f.leds, f.err
}

func TestRegistry_Restore(t *testing.T) {
	reg := NewRegistry()
	obs := &recordingObserver{}
	reg.AddObserver(obs)

	cfg := SetupConfig{Temperature: IntervalConfig{Interval: 60}}
	loader := fakeLoader{
		setups: map[Identity]SetupConfig{"d1": cfg},
		leds:   map[Identity]LEDState{"d2": {Color: 9, Intensity: 1}},
	}
	if err := reg.Restore(context.Background(), loader); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if got := NewConfigStore(reg).GetSetup("d1"); got != cfg {
		t.Errorf("GetSetup(d1) = %+v, want %+v", got, cfg)
	}
	if got := NewActuatorController(reg).GetLED("d2"); got != (LEDState{Color: 9, Intensity: 1}) {
		t.Errorf("GetLED(d2) = %+v", got)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
	if obs.ledCount() != 0 {
		t.Error("Restore must not notify observers")
	}
}

func TestRegistry_RestoreError(t *testing.T) {
	reg := NewRegistry()
	loadErr := errors.New("disk on fire")

	err := reg.Restore(context.Background(), fakeLoader{err: loadErr})
	if !errors.Is(err, loadErr) {
		t.Errorf("Restore() error = %v, want wrapping %v", err, loadErr)
	}
}

func BenchmarkRegistry_Resolve(b *testing.B) {
	reg := NewRegistry()
	for i := 0; i < 1000; i++ {
		reg.Resolve(Identity(fmt.Sprintf("dev-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			reg.Resolve(Identity(fmt.Sprintf("dev-%d", i%1000)))
			i++
		}
	})
}
