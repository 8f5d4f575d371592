package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher queue.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events that do not fit the queue instead of
	// waiting for room. Discards are counted by Dropped.
	DropIfFull bool
}

// Dispatcher moves events off the request path: Emit enqueues and a single
// worker goroutine feeds the sink in order.
//
// A nil *Dispatcher is valid and ignores everything.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	dropIfFull bool

	stopping chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	dropped atomic.Uint64
	panics  atomic.Uint64
}

// NewDispatcher starts the worker, or returns nil when cfg.Enabled is false.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		dropIfFull: cfg.DropIfFull,
		stopping:   make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.work()
	return d
}

func (d *Dispatcher) work() {
	defer close(d.stopped)

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
			continue
		case <-d.stopping:
		}

		// Flush what was queued before the stop signal.
		for {
			select {
			case ev := <-d.queue:
				d.deliver(ev)
			default:
				return
			}
		}
	}
}

// deliver isolates the worker from a sink that panics.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.panics.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit enqueues ev. In blocking mode it waits for room until ctx ends, which
// counts as a drop. Events emitted after Shutdown are ignored.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.isStopping() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stopping:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- ev:
	case <-d.stopping:
	case <-cancelled:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) isStopping() bool {
	select {
	case <-d.stopping:
		return true
	default:
		return false
	}
}

// Close is Shutdown without a deadline.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Shutdown stops intake and waits for the queue to flush. If ctx ends first
// it returns ctx.Err() and the worker keeps flushing in the background.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.stopOnce.Do(func() { close(d.stopping) })

	select {
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped counts events discarded because the queue was full or the
// caller's context ended while waiting.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics counts deliveries where the sink panicked.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
