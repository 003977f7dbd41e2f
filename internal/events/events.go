package events

import (
	"sync"
	"time"
)

// Type names an event. It doubles as the WebSocket channel and the MQTT
// topic segment.
type Type string

// Event types.
const (
	TypeBoardCreated         Type = "board.created"
	TypeBoardUpdated         Type = "board.updated"
	TypeBoardEditableChanged Type = "board.editable_changed"
	TypeRegistryCleared      Type = "board.registry_cleared"
	TypeModuleStatus         Type = "sync.module_status"
	TypeInstallResult        Type = "sync.install_result"
	TypePlanComplete         Type = "sync.plan_complete"
)

// Event is the envelope delivered to every sink.
type Event struct {
	Type     Type   `json:"type"`
	BoardKey string `json:"board_key,omitempty"`
	// Channel is the transport kind the event concerns ("usb", "web").
	Channel string `json:"channel,omitempty"`
	// Board is the display name.
	Board    string `json:"board,omitempty"`
	Editable bool   `json:"editable,omitempty"`

	Module         string `json:"module,omitempty"`
	Status         string `json:"status,omitempty"`
	BoardVersion   string `json:"board_version,omitempty"`
	CatalogVersion string `json:"catalog_version,omitempty"`

	// Detail carries an error message or a short summary.
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives events. Implementations must return quickly.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// Publish calls f(ev).
func (f SinkFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi returns a sink delivering each event to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// Stamp sets ev.Timestamp to now when it is zero and publishes it.
func Stamp(s Sink, ev Event) {
	if s == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.Publish(ev)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends ev.
func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t in publication order.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
