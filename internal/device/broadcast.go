package device

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultQueueSize is the per-subscriber queue length used when none is set.
const DefaultQueueSize = 1

// Broadcaster fans LED state changes out to subscribers.
//
// Each subscriber owns a bounded queue. When the queue is full the oldest
// pending state is dropped, so a slow subscriber skips intermediate states
// but always converges on the latest one.
type Broadcaster struct {
	actuators *ActuatorController
	queueSize int
	total     atomic.Int64
	logger    Logger
}

// NewBroadcaster creates a broadcaster for the LED states held by actuators.
func NewBroadcaster(actuators *ActuatorController, queueSize int) *Broadcaster {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		actuators: actuators,
		queueSize: queueSize,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the broadcaster.
func (b *Broadcaster) SetLogger(logger Logger) {
	b.logger = logger
}

// Subscribe registers a new subscriber for id and returns it together with
// the current LED state. The current state is also the subscriber's first
// queued notification.
func (b *Broadcaster) Subscribe(id Identity) (*Subscriber, LEDState) {
	rec := b.actuators.registry.Resolve(id)
	sub := newSubscriber(id, b.queueSize)

	sub.detach = func() {
		rec.mu.Lock()
		delete(rec.subscribers, sub)
		rec.mu.Unlock()
		b.total.Add(-1)
	}
	b.total.Add(1)

	rec.mu.Lock()
	current := rec.led
	sub.offer(current)
	rec.subscribers[sub] = struct{}{}
	rec.mu.Unlock()

	b.logger.Debug("led subscriber added", "device_id", string(id), "subscriber_id", sub.id)
	return sub, current
}

// Unsubscribe releases sub. It is safe to call more than once and
// equivalent to sub.Close.
func (b *Broadcaster) Unsubscribe(id Identity, sub *Subscriber) {
	if sub == nil || sub.device != id {
		return
	}
	sub.Close()
	b.logger.Debug("led subscriber removed", "device_id", string(id), "subscriber_id", sub.id)
}

// Subscribers returns the number of live subscribers for id.
func (b *Broadcaster) Subscribers(id Identity) int {
	rec, ok := b.actuators.registry.lookup(id)
	if !ok {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.subscribers)
}

// Total returns the number of live subscribers across all devices.
func (b *Broadcaster) Total() int {
	return int(b.total.Load())
}

// CloseAll closes every live subscriber. Used on shutdown.
func (b *Broadcaster) CloseAll() {
	for _, rec := range b.actuators.registry.all() {
		rec.mu.Lock()
		subs := make([]*Subscriber, 0, len(rec.subscribers))
		for sub := range rec.subscribers {
			subs = append(subs, sub)
		}
		rec.mu.Unlock()

		for _, sub := range subs {
			sub.Close()
		}
	}
}

// publishLocked offers state to every subscriber. Caller holds r.mu.
func (r *Record) publishLocked(state LEDState) {
	for sub := range r.subscribers {
		sub.offer(state)
	}
}

// Subscriber is a live, ordered stream of LED states for one device.
type Subscriber struct {
	id     string
	device Identity
	size   int

	mu      sync.Mutex
	queue   []LEDState
	dropped uint64

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	detach    func()
}

func newSubscriber(id Identity, size int) *Subscriber {
	return &Subscriber{
		id:     uuid.NewString(),
		device: id,
		size:   size,
		queue:  make([]LEDState, 0, size),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the unique subscriber ID.
func (s *Subscriber) ID() string {
	return s.id
}

// Device returns the identity the subscriber is attached to.
func (s *Subscriber) Device() Identity {
	return s.device
}

// Done is closed when the subscription is closed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Dropped returns how many queued states were overwritten before delivery.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Next blocks until a state is available, the subscription is closed
// (ErrSubscriptionClosed) or ctx is done (ctx.Err()).
func (s *Subscriber) Next(ctx context.Context) (LEDState, error) {
	for {
		select {
		case <-s.done:
			return LEDState{}, ErrSubscriptionClosed
		default:
		}

		s.mu.Lock()
		if len(s.queue) > 0 {
			state := s.queue[0]
			s.queue = append(s.queue[:0], s.queue[1:]...)
			s.mu.Unlock()
			return state, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
			return LEDState{}, ErrSubscriptionClosed
		case <-ctx.Done():
			return LEDState{}, ctx.Err()
		}
	}
}

// Close detaches the subscriber from its device. Idempotent.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		if s.detach != nil {
			s.detach()
		}
		close(s.done)
	})
}

// offer enqueues state without blocking, dropping the oldest entry when
// the queue is full.
func (s *Subscriber) offer(state LEDState) {
	s.mu.Lock()
	if len(s.queue) >= s.size {
		s.queue = append(s.queue[:0], s.queue[1:]...)
		s.dropped++
	}
	s.queue = append(s.queue, state)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
