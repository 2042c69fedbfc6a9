package eventbus

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dyluth/huddle/pkg/room"
)

// DefaultQueueSize is the publisher buffer used when none is given.
const DefaultQueueSize = 256

const publishTimeout = 2 * time.Second

// eventSink is the part of Client the async publisher needs.
type eventSink interface {
	PublishEvent(ctx context.Context, ev room.RoomEvent) error
}

// AsyncPublisher queues events on a buffered channel drained by a single
// goroutine, so events reach Redis in commit order. When the queue is full
// the event is dropped and logged.
type AsyncPublisher struct {
	sink   eventSink
	queue  chan room.RoomEvent
	logger *log.Logger
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncPublisher starts the drain goroutine. Call Close to stop it.
// A queueSize below 1 uses DefaultQueueSize; a nil logger uses log.Default().
func NewAsyncPublisher(sink eventSink, queueSize int, logger *log.Logger) *AsyncPublisher {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = log.Default()
	}

	p := &AsyncPublisher{
		sink:   sink,
		queue:  make(chan room.RoomEvent, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event without blocking. Events published after
// Close are dropped.
func (p *AsyncPublisher) Publish(ev room.RoomEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- ev:
	default:
		p.logger.Printf("[EventBus] Queue full, dropping %s event %s for room %s", ev.Type, ev.ID, ev.RoomID)
	}
}

// Close stops accepting events and waits until the queue is drained.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return nil
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.sink.PublishEvent(ctx, ev); err != nil {
			p.logger.Printf("[EventBus] Failed to publish %s event %s: %v", ev.Type, ev.ID, err)
		}
		cancel()
	}
}
