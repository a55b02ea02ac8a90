package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver decouples recording from the turn path. Events that cannot be
// buffered are dropped and counted rather than blocking a reply.
type AsyncObserver struct {
	inner   Observer
	ch      chan Event
	quit    chan struct{}
	done    chan struct{}
	dropped int64
	closed  atomic.Bool
	once    sync.Once
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner: inner,
		ch:    make(chan Event, buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

// RecordEvent never blocks. The event channel stays open for the life of the
// observer, so a send racing Close lands in the buffer instead of panicking;
// it is just never delivered.
func (a *AsyncObserver) RecordEvent(ev Event) {
	if a == nil || a.closed.Load() {
		return
	}
	select {
	case a.ch <- ev:
	default:
		atomic.AddInt64(&a.dropped, 1)
	}
}

func (a *AsyncObserver) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Close drains buffered events and waits for the delivery loop to exit.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.quit)
		<-a.done
	})
}

func (a *AsyncObserver) loop() {
	defer close(a.done)
	for {
		select {
		case ev := <-a.ch:
			a.inner.RecordEvent(ev)
		case <-a.quit:
			for {
				select {
				case ev := <-a.ch:
					a.inner.RecordEvent(ev)
				default:
					return
				}
			}
		}
	}
}
