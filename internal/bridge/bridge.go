package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/thingy-gateway/internal/device"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the bridge's dependencies.
type Options struct {
	MQTT      MQTTClient
	Topics    mqtt.Topics
	QoS       byte
	Ingest    *device.IngestionService
	Setups    *device.ConfigStore
	Actuators *device.ActuatorController
	Logger    Logger
}

// Bridge translates between device MQTT topics and the device core.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	device.NopObserver

	mqtt      MQTTClient
	topics    mqtt.Topics
	qos       byte
	ingest    *device.IngestionService
	setups    *device.ConfigStore
	actuators *device.ActuatorController
	logger    Logger

	// outbox holds the latest retained payload per topic awaiting publish.
	outboxMu sync.Mutex
	outbox   map[string][]byte
	order    []string
	wake     chan struct{}

	// subscribed lists the topics Start subscribed to, for Stop to release.
	subscribed []string

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a bridge. Call Start to subscribe and begin publishing.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Ingest == nil || opts.Setups == nil || opts.Actuators == nil {
		return nil, fmt.Errorf("device services are required")
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d", opts.QoS)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bridge{
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		qos:       opts.QoS,
		ingest:    opts.Ingest,
		setups:    opts.Setups,
		actuators: opts.Actuators,
		logger:    logger,
		outbox:    make(map[string][]byte),
		wake:      make(chan struct{}, 1),
	}, nil
}

// Start subscribes to the device topics and starts the publish worker.
func (b *Bridge) Start(ctx context.Context) error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllSensors(), b.handleSensors},
		{b.topics.AllButtons(), b.handleButton},
		{b.topics.AllLEDSet(), b.handleLEDSet},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		b.subscribed = append(b.subscribed, s.topic)
		b.logger.Info("subscribed", "topic", s.topic)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(workerCtx)

	return nil
}

// Stop releases the device topic subscriptions, then halts the publish
// worker after a last attempt to drain the outbox. Safe to call more than
// once, and before Start.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		for _, topic := range b.subscribed {
			if err := b.mqtt.Unsubscribe(topic); err != nil {
				b.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// SetupChanged publishes the new setup retained so the device can apply it.
func (b *Bridge) SetupChanged(id device.Identity, cfg device.SetupConfig) {
	b.enqueue(b.topics.Setup(string(id)), cfg)
}

// LEDChanged publishes the new LED state retained.
func (b *Bridge) LEDChanged(id device.Identity, state device.LEDState) {
	b.enqueue(b.topics.LEDState(string(id)), state)
}

// Resync queues the current setup and LED state of every known device.
// Register it as the MQTT on-connect callback so a broker that lost its
// retained store is repopulated after a reconnect.
//
// Each device is read and queued while its writers are held off, so a
// change racing with Resync always lands in the outbox after the value
// Resync read.
func (b *Bridge) Resync() {
	for _, id := range b.actuators.Registry().Identities() {
		b.setups.WithSetup(id, func(cfg device.SetupConfig) {
			b.SetupChanged(id, cfg)
		})
		b.actuators.WithLED(id, func(state device.LEDState) {
			b.LEDChanged(id, state)
		})
	}
}

// Pending returns the number of topics waiting to be published.
func (b *Bridge) Pending() int {
	b.outboxMu.Lock()
	defer b.outboxMu.Unlock()
	return len(b.outbox)
}

func (b *Bridge) enqueue(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encoding state failed", "topic", topic, "error", err)
		return
	}

	b.outboxMu.Lock()
	if _, queued := b.outbox[topic]; !queued {
		b.order = append(b.order, topic)
	}
	b.outbox[topic] = payload
	b.outboxMu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-b.wake:
			b.flush()
		case <-ctx.Done():
			b.flush()
			return
		}
	}
}

// flush publishes everything queued. Topics that fail stay queued unless a
// newer payload arrived meanwhile; they go out on the next wake.
func (b *Bridge) flush() {
	b.outboxMu.Lock()
	batch := b.outbox
	order := b.order
	b.outbox = make(map[string][]byte)
	b.order = nil
	b.outboxMu.Unlock()

	for _, topic := range order {
		payload := batch[topic]
		if err := b.mqtt.Publish(topic, payload, b.qos, true); err != nil {
			b.logger.Warn("publishing state failed", "topic", topic, "error", err)
			b.requeue(topic, payload)
			continue
		}
		b.logger.Debug("state published", "topic", topic)
	}
}

func (b *Bridge) requeue(topic string, payload []byte) {
	b.outboxMu.Lock()
	defer b.outboxMu.Unlock()
	if _, newer := b.outbox[topic]; newer {
		return
	}
	b.outbox[topic] = payload
	b.order = append(b.order, topic)
}

// deviceFromTopic extracts and validates the device identity of a message.
func (b *Bridge) deviceFromTopic(topic, wantSuffix string) (device.Identity, error) {
	raw, suffix, ok := b.topics.ParseDevice(topic)
	if !ok || suffix != wantSuffix {
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return device.ParseIdentity(raw)
}

func (b *Bridge) handleSensors(topic string, payload []byte) error {
	id, err := b.deviceFromTopic(topic, mqtt.SuffixSensors)
	if err != nil {
		return err
	}

	var msg SensorsMessage
	if err := decode(payload, &msg); err != nil {
		return err
	}
	if err := b.ingest.Submit(id, msg.Timestamp, msg.Sensors); err != nil {
		return fmt.Errorf("device %s: %w", id, err)
	}
	return nil
}

func (b *Bridge) handleButton(topic string, payload []byte) error {
	id, err := b.deviceFromTopic(topic, mqtt.SuffixButton)
	if err != nil {
		return err
	}

	var msg ButtonMessage
	if err := decode(payload, &msg); err != nil {
		return err
	}
	if msg.Pressed == nil {
		return fmt.Errorf("%w: pressed is required", ErrInvalidPayload)
	}
	b.ingest.SubmitButton(id, *msg.Pressed)
	return nil
}

func (b *Bridge) handleLEDSet(topic string, payload []byte) error {
	id, err := b.deviceFromTopic(topic, mqtt.SuffixLEDSet)
	if err != nil {
		return err
	}

	var update device.LEDUpdate
	if err := decode(payload, &update); err != nil {
		return err
	}
	state, err := update.State()
	if err != nil {
		return fmt.Errorf("device %s: %w", id, err)
	}
	if err := b.actuators.SetLED(id, state); err != nil {
		return fmt.Errorf("device %s: %w", id, err)
	}
	return nil
}
