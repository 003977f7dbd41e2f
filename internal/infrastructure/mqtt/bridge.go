package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/boardsync-core/internal/events"
)

// eventBuffer is the number of events queued for the broker before new
// events are dropped.
const eventBuffer = 256

// Publisher is the part of *Client used by EventPublisher.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber is the part of *Client used by SubscribeRescan.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// EventPublisher is an events.Sink that forwards events to the broker.
//
// Publish only enqueues; a single goroutine drains the queue so a slow or
// disconnected broker never stalls discovery or a sync run. Events that do
// not fit in the queue are dropped and counted.
type EventPublisher struct {
	pub    Publisher
	qos    byte
	queue  chan events.Event
	done   chan struct{}
	logger Logger

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewEventPublisher starts a publisher delivering events at qos.
func NewEventPublisher(pub Publisher, qos byte) *EventPublisher {
	p := &EventPublisher{
		pub:    pub,
		qos:    qos,
		queue:  make(chan events.Event, eventBuffer),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
	go p.loop()
	return p
}

// SetLogger sets the logger for publish failures. Call before events flow.
func (p *EventPublisher) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Publish queues ev for the broker.
func (p *EventPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.dropped++
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *EventPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops accepting events and waits for the queue to drain.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}

func (p *EventPublisher) loop() {
	defer close(p.done)
	for ev := range p.queue {
		if err := p.send(ev); err != nil {
			p.logger.Warn("publishing event failed", "type", ev.Type, "board", ev.BoardKey, "error", err)
		}
	}
}

func (p *EventPublisher) send(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return p.pub.Publish(Topics{}.Event(string(ev.Type), ev.BoardKey), payload, p.qos, false)
}

// rescanCommand is the body of a boardsync/command/rescan message.
type rescanCommand struct {
	Full bool `json:"full"`
}

// SubscribeRescan routes rescan commands from the bus to trigger.
//
// trigger reports whether a pass was started; a request that arrives while
// a pass is running is dropped, matching the REST endpoint.
//
// Parameters:
//   - sub: Connected client
//   - trigger: Usually (*board.Registry).TryRescan
//
// Returns:
//   - error: Wrapped ErrSubscribeFailed if the subscription could not be made
func SubscribeRescan(sub Subscriber, trigger func(full bool) bool) error {
	return sub.Subscribe(Topics{}.RescanCommand(), 1, RescanHandler(trigger))
}

// RescanHandler decodes a rescan command and calls trigger.
// An empty payload requests an incremental pass.
func RescanHandler(trigger func(full bool) bool) MessageHandler {
	return func(_ string, payload []byte) error {
		var cmd rescanCommand
		if len(bytes.TrimSpace(payload)) > 0 {
			if err := json.Unmarshal(payload, &cmd); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
			}
		}
		trigger(cmd.Full)
		return nil
	}
}
