package authflow

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands audit events to a sink on one background goroutine so
// controllers never wait on a slow sink.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	queue      chan AuditEvent

	// stopping closes when Close starts; abandon closes when the drain
	// deadline passes and cancels sinkCtx; finished closes when the worker exits.
	stopping   chan struct{}
	abandon    chan struct{}
	finished   chan struct{}
	sinkCtx    context.Context
	cancelSink context.CancelFunc

	delivered atomic.Uint64
	dropped   atomic.Uint64
	closing   atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	sinkCtx, cancelSink := context.WithCancel(context.Background())
	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
		stopping:   make(chan struct{}),
		abandon:    make(chan struct{}),
		finished:   make(chan struct{}),
		sinkCtx:    sinkCtx,
		cancelSink: cancelSink,
	}
	go d.work()
	return d
}

func (d *auditDispatcher) work() {
	defer close(d.finished)
	for {
		select {
		case ev := <-d.queue:
			d.handle(ev)
		case <-d.stopping:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.handle(ev)
		default:
			return
		}
	}
}

// handle delivers ev unless Close has given up on the queue, in which case ev
// is counted as dropped.
func (d *auditDispatcher) handle(ev AuditEvent) {
	select {
	case <-d.abandon:
		d.dropped.Add(1)
		return
	default:
	}
	d.deliver(ev)
}

// deliver passes ev to the sink with its request id on the context, so sinks
// can correlate events the same way the gateway does.
func (d *auditDispatcher) deliver(ev AuditEvent) {
	ctx := d.sinkCtx
	if ev.RequestID != "" {
		ctx = WithRequestID(ctx, ev.RequestID)
	}
	d.sink.Emit(ctx, ev)
	d.delivered.Add(1)
}

// Emit queues event, stamping the request id from ctx when the event has none.
// With DropIfFull a full queue drops the event and counts it; otherwise Emit
// waits for room, for ctx, or for Close. Events emitted after Close are
// ignored.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stopping:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stopping:
	}
}

// Close stops accepting events and delivers the queue until it is empty or
// ctx ends. On ctx expiry the sink's context is cancelled, undelivered events
// are counted as dropped, and ctx's error is returned. Close is idempotent;
// later calls return the first result.
func (d *auditDispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stopping)

		select {
		case <-d.finished:
		case <-ctx.Done():
			close(d.abandon)
			d.cancelSink()
			<-d.finished
			d.closeErr = ctx.Err()
		}
		d.cancelSink()
	})
	return d.closeErr
}

// Dropped returns the number of events lost to backpressure or to an
// expired drain.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the sink.
func (d *auditDispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
