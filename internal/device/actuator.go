package device

// ActuatorController owns the canonical LED state of every device.
type ActuatorController struct {
	registry *Registry
}

// NewActuatorController creates an actuator controller over reg.
func NewActuatorController(reg *Registry) *ActuatorController {
	return &ActuatorController{registry: reg}
}

// Registry returns the registry the controller operates on.
func (c *ActuatorController) Registry() *Registry {
	return c.registry
}

// GetLED returns the current LED state of id, {0,0,0} for unknown devices.
func (c *ActuatorController) GetLED(id Identity) LEDState {
	rec, ok := c.registry.lookup(id)
	if !ok {
		return LEDState{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.led
}

// SetLED replaces the LED state of id.
//
// The new state is offered to every live subscriber while the record lock
// is held, so no reader can observe a state that subscribers have not been
// offered. Offers never block. Invalid states are rejected with an error
// wrapping ErrValidation and change nothing.
func (c *ActuatorController) SetLED(id Identity, state LEDState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	rec := c.registry.Resolve(id)

	rec.ledMu.Lock()
	defer rec.ledMu.Unlock()

	rec.mu.Lock()
	rec.led = state
	rec.publishLocked(state)
	rec.mu.Unlock()

	for _, o := range c.registry.snapshotObservers() {
		o.LEDChanged(id, state)
	}
	return nil
}

// WithLED calls fn with the current LED state of id while holding the
// device's LED write order. A concurrent SetLED is applied, and its
// observers notified, only after fn returns, so anything fn records is
// never newer than what observers see next. fn must not call SetLED for
// the same device. Unknown devices get the default state.
func (c *ActuatorController) WithLED(id Identity, fn func(LEDState)) {
	rec, ok := c.registry.lookup(id)
	if !ok {
		fn(LEDState{})
		return
	}

	rec.ledMu.Lock()
	defer rec.ledMu.Unlock()

	rec.mu.Lock()
	state := rec.led
	rec.mu.Unlock()

	fn(state)
}
