package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking the caller when the
	// buffer is full.
	DropIfFull bool
}

// Dispatcher forwards events to a sink from a single goroutine. A nil
// *Dispatcher is valid and drops everything.
type Dispatcher struct {
	sink     Sink
	queue    chan Event
	dropFull bool
	stopped  chan struct{}
	stopping chan struct{}
	mu       sync.RWMutex
	shut     bool
	stopOnce sync.Once
	dropped  atomic.Uint64
	failed   atomic.Uint64
	now      func() time.Time
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:     sink,
		queue:    make(chan Event, max(cfg.BufferSize, 1)),
		dropFull: cfg.DropIfFull,
		stopped:  make(chan struct{}),
		stopping: make(chan struct{}),
		now:      time.Now,
	}
	go d.loop()
	return d
}

// loop exits once the queue is closed and drained.
func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for ev := range d.queue {
		d.forward(ev)
	}
}

func (d *Dispatcher) forward(ev Event) {
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit fills in a missing id and timestamp and queues ev. A full buffer
// either drops ev or blocks until there is room, ctx ends, or Close runs.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.shut {
		return
	}

	select {
	case d.queue <- ev:
		return
	default:
	}
	if d.dropFull {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stopping:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until everything already queued
// has reached the sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() { close(d.stopping) })

	d.mu.Lock()
	if !d.shut {
		d.shut = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped returns the number of events discarded because of backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkFailures returns the number of events whose sink panicked.
func (d *Dispatcher) SinkFailures() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
