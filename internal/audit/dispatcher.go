package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id. Events emitted under the
// returned context without their own RequestID are stamped with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by [WithRequestID], or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// queued pairs an event with the emitter's context values. Cancellation is
// stripped: delivery happens after the request has returned.
type queued struct {
	ctx   context.Context
	event Event
}

// Dispatcher delivers events to one sink from a single goroutine, in the
// order they were accepted.
type Dispatcher struct {
	cfg  Config
	sink Sink

	// mu guards closed and the send side of queue; Close takes it exclusively
	// so no Emit can send on a closed channel.
	mu     sync.RWMutex
	closed bool
	queue  chan queued
	idle   chan struct{}

	dropped atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; every method of a nil *Dispatcher is a no-op.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan queued, cfg.BufferSize),
		idle:  make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.idle)
	for item := range d.queue {
		d.sink.Emit(item.ctx, item.event)
	}
}

// Emit stamps event with the request ID carried by ctx and a timestamp when
// either is missing, then queues it.
//
// With DropIfFull a full buffer drops the event. Otherwise Emit waits for
// room until ctx ends; an event abandoned that way also counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	item := queued{ctx: context.WithoutCancel(ctx), event: event}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- item:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- item:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until queued ones are delivered.
// Concurrent and repeated calls all wait for the same drain.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.idle
}

// Dropped returns the number of events lost to a full buffer or to a
// context that ended while waiting for room.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
