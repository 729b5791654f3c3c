package event

import (
	"sync"

	"github.com/nspcc-dev/token-ledger/metrics"
	"go.uber.org/zap"
)

// Queue delivers events to the underlying sink asynchronously in the order
// they were received. Notify never blocks: events that don't fit into the
// buffer are dropped and counted.
//
// Queue must be closed to release the worker routine.
type Queue struct {
	next    Sink
	log     *zap.Logger
	metrics *metrics.Collector

	mtx    sync.RWMutex
	closed bool

	ch   chan Event
	done chan struct{}
}

// NewQueue starts delivery routine passing events to next using buffer of
// the given size. Logger and metrics are optional.
func NewQueue(next Sink, size int, log *zap.Logger, m *metrics.Collector) *Queue {
	if log == nil {
		log = zap.NewNop()
	}

	q := &Queue{
		next:    next,
		log:     log,
		metrics: m,
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}

	go q.run()

	return q
}

func (q *Queue) run() {
	defer close(q.done)

	for e := range q.ch {
		q.next.Notify(e)
	}
}

// Notify implements Sink. Events received after Close or while the buffer is
// full are dropped.
func (q *Queue) Notify(e Event) {
	q.mtx.RLock()
	defer q.mtx.RUnlock()

	if q.closed {
		q.drop(e, "event queue is closed, dropping event")
		return
	}

	select {
	case q.ch <- e:
	default:
		q.drop(e, "event queue is full, dropping event")
	}
}

func (q *Queue) drop(e Event, msg string) {
	q.log.Warn(msg,
		zap.Stringer("id", e.ID),
		zap.Uint64("seq", e.Seq),
		zap.String("kind", string(e.Kind)))
	q.metrics.IncDroppedEvents()
}

// Close stops accepting new events and waits until all buffered ones are
// delivered. Repeated calls are no-op.
func (q *Queue) Close() {
	q.mtx.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mtx.Unlock()

	<-q.done
}
