package device

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestActuatorController_DefaultLED(t *testing.T) {
	leds := NewActuatorController(NewRegistry())

	if got := leds.GetLED("d1"); got != (LEDState{}) {
		t.Errorf("GetLED() = %+v, want {0 0 0}", got)
	}
}

func TestActuatorController_RoundTrip(t *testing.T) {
	leds := NewActuatorController(NewRegistry())

	states := []LEDState{
		{Color: 5, Intensity: 10, Delay: 0},
		{Color: 0, Intensity: 0, Delay: 0},
		{Color: 16777215, Intensity: 100, Delay: 2.5},
	}
	for _, want := range states {
		if err := leds.SetLED("d1", want); err != nil {
			t.Fatalf("SetLED(%+v) error = %v", want, err)
		}
		if got := leds.GetLED("d1"); got != want {
			t.Errorf("GetLED() = %+v, want %+v", got, want)
		}
	}
}

func TestActuatorController_RejectedWriteIsInvisible(t *testing.T) {
	reg := NewRegistry()
	leds := NewActuatorController(reg)
	streams := NewBroadcaster(leds, 4)
	obs := &recordingObserver{}
	reg.AddObserver(obs)

	good := LEDState{Color: 1, Intensity: 2, Delay: 3}
	if err := leds.SetLED("d1", good); err != nil {
		t.Fatalf("SetLED() error = %v", err)
	}

	sub, _ := streams.Subscribe("d1")
	defer sub.Close()
	// Drain the initial snapshot.
	if _, err := sub.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	for _, bad := range []LEDState{
		{Color: -1},
		{Intensity: -1},
		{Delay: math.NaN()},
	} {
		if err := leds.SetLED("d1", bad); !IsValidation(err) {
			t.Errorf("SetLED(%+v) error = %v, want validation error", bad, err)
		}
	}

	if got := leds.GetLED("d1"); got != good {
		t.Errorf("GetLED() = %+v, want %+v", got, good)
	}
	if obs.ledCount() != 1 {
		t.Errorf("observer notified %d times, want 1", obs.ledCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if state, err := sub.Next(ctx); err == nil {
		t.Errorf("subscriber received %+v from a rejected write", state)
	}
}

func TestActuatorController_DevicesProgressIndependently(t *testing.T) {
	reg := NewRegistry()
	leds := NewActuatorController(reg)

	// Hold d1's record lock; writes to d2 must still complete.
	blocked := reg.Resolve("d1")
	blocked.mu.Lock()
	defer blocked.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- leds.SetLED("d2", LEDState{Color: 3})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetLED(d2) error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SetLED(d2) blocked on d1")
	}
}

func TestActuatorController_ObserversSeeApplyOrder(t *testing.T) {
	reg := NewRegistry()
	leds := NewActuatorController(reg)
	obs := &recordingObserver{}
	reg.AddObserver(obs)

	for i := 0; i < 100; i++ {
		if err := leds.SetLED("d1", LEDState{Color: i}); err != nil {
			t.Fatalf("SetLED() error = %v", err)
		}
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for i, s := range obs.leds {
		if s.Color != i {
			t.Fatalf("observer notification %d = %+v, want color %d", i, s, i)
		}
	}
}

func TestActuatorController_WithLEDHoldsWriteOrder(t *testing.T) {
	reg := NewRegistry()
	leds := NewActuatorController(reg)
	obs := &recordingObserver{}
	reg.AddObserver(obs)

	if err := leds.SetLED("d1", LEDState{Color: 1}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	leds.WithLED("d1", func(state LEDState) {
		if state.Color != 1 {
			t.Errorf("WithLED state = %+v, want color 1", state)
		}
		go func() {
			defer close(done)
			if err := leds.SetLED("d1", LEDState{Color: 2}); err != nil {
				t.Errorf("SetLED() error = %v", err)
			}
		}()

		select {
		case <-done:
			t.Error("SetLED completed while WithLED held the device")
		case <-time.After(50 * time.Millisecond):
		}
		if got := leds.GetLED("d1"); got.Color != 1 {
			t.Errorf("GetLED() inside WithLED = %+v, want color 1", got)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetLED did not complete after WithLED returned")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if n := len(obs.leds); n != 2 || obs.leds[1].Color != 2 {
		t.Errorf("observer saw %+v, want colors 1 then 2", obs.leds)
	}
}

func TestActuatorController_WithLEDUnknownDevice(t *testing.T) {
	reg := NewRegistry()
	leds := NewActuatorController(reg)

	called := false
	leds.WithLED("ghost", func(state LEDState) {
		called = true
		if state != (LEDState{}) {
			t.Errorf("state = %+v, want default", state)
		}
	})
	if !called {
		t.Fatal("WithLED did not call fn")
	}
	if reg.Exists("ghost") {
		t.Error("WithLED created a record for an unknown device")
	}
}
