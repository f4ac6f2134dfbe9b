package eventstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBusFull is returned by Publish when the internal broadcast channel is
// saturated; the event is dropped rather than blocking the publisher (the
// cachecore Dispatcher that feeds this bus must never be made to wait on
// an external subscriber).
var ErrBusFull = errors.New("eventstream: broadcast channel full")

// Subscriber receives WireEvents pushed by a Bus.
type Subscriber interface {
	ID() string
	Send(WireEvent) error
	Close() error
	Context() context.Context
}

// Bus fans cache lifecycle events out to every connected Subscriber. It is
// the out-of-process analogue of cachecore's in-process ListenerRegistry +
// Dispatcher, grounded on the teacher's internal/realtime.DefaultEventBus
// broadcast-worker design.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber

	eventChan chan WireEvent
	sequence  atomic.Int64

	logger  *slog.Logger
	metrics *Metrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBus creates a Bus with a 1000-event broadcast buffer.
func NewBus(logger *slog.Logger, metrics *Metrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]Subscriber),
		eventChan:   make(chan WireEvent, 1000),
		logger:      logger.With("component", "eventstream_bus"),
		metrics:     metrics,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the broadcast worker.
func (b *Bus) Start() {
	b.wg.Add(1)
	go b.run()
}

// Stop signals the broadcast worker to exit and waits up to the context
// deadline for it to finish.
func (b *Bus) Stop(ctx context.Context) error {
	close(b.stopCh)
	done := make(chan struct{})
	go func() { b.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a Subscriber.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	b.subscribers[s.ID()] = s
	n := len(b.subscribers)
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.ConnectionsActive.Set(float64(n))
	}
}

// Unsubscribe removes and closes a Subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	s, ok := b.subscribers[id]
	delete(b.subscribers, id)
	n := len(b.subscribers)
	b.mu.Unlock()
	if ok {
		_ = s.Close()
	}
	if b.metrics != nil {
		b.metrics.ConnectionsActive.Set(float64(n))
	}
}

// Publish enqueues an event for broadcast, assigning it the next sequence
// number. It never blocks: a full channel drops the event.
func (b *Bus) Publish(e WireEvent) error {
	e.Sequence = b.sequence.Add(1)
	select {
	case b.eventChan <- e:
		return nil
	default:
		b.logger.Warn("eventstream: broadcast channel full, dropping event", "type", e.Type)
		if b.metrics != nil {
			b.metrics.ErrorsTotal.WithLabelValues("channel_full").Inc()
		}
		return ErrBusFull
	}
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case e := <-b.eventChan:
			b.broadcast(e)
		}
	}
}

func (b *Bus) broadcast(e WireEvent) {
	start := time.Now()

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			select {
			case <-sub.Context().Done():
				b.Unsubscribe(sub.ID())
				return
			default:
			}
			if err := sub.Send(e); err != nil {
				b.logger.Warn("eventstream: failed to send to subscriber", "subscriber_id", sub.ID(), "error", err)
				b.Unsubscribe(sub.ID())
			}
		}(s)
	}
	wg.Wait()

	if b.metrics != nil {
		b.metrics.EventsTotal.WithLabelValues(e.Type).Inc()
		b.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}
}

// ActiveSubscribers returns the current subscriber count.
func (b *Bus) ActiveSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
