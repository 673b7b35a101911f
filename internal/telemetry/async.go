package telemetry

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Async decouples a sink from the caller through a bounded queue. Emit never blocks:
// when the queue is full the event is dropped and counted.
type Async struct {
	next   Sink
	logger *zap.Logger
	queue  chan Event
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewAsync starts the delivery goroutine for next.
func NewAsync(next Sink, size int, logger *zap.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{
		next:   next,
		logger: logger.Named("async"),
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		a.next.Emit(ev)
	}
}

func (a *Async) Emit(ev Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.queue <- ev:
	default:
		if n := a.dropped.Add(1); n&(n-1) == 0 {
			a.logger.Warn("Telemetry queue full, dropping events", zap.Uint64("dropped", n))
		}
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
