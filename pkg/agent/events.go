package agent

import (
	"encoding/json"
	"strings"
)

// Event types emitted by the engine. A run streams zero or more "step"
// events followed by exactly one terminal "complete" or "error" event.
// A cancelled run emits nothing beyond what has already streamed.
const (
	EventStep     = "step"
	EventComplete = "complete"
	EventError    = "error"
)

// StepData is the payload of a progress event: either free text or an
// ordered list of strings. It marshals to a JSON string or array.
type StepData struct {
	text   string
	list   []string
	isList bool
}

// Text wraps a plain-text step payload.
func Text(s string) StepData {
	return StepData{text: s}
}

// List wraps an ordered-list step payload.
func List(items []string) StepData {
	return StepData{list: items, isList: true}
}

func (d StepData) MarshalJSON() ([]byte, error) {
	if d.isList {
		return json.Marshal(d.list)
	}
	return json.Marshal(d.text)
}

func (d StepData) String() string {
	if d.isList {
		return strings.Join(d.list, ", ")
	}
	return d.text
}

// Result is the payload of the terminal "complete" event.
type Result struct {
	Query           string      `json:"query"`
	Answer          string      `json:"answer"`
	Sources         []string    `json:"sources"`
	ConfidenceScore float64     `json:"confidence_score"`
	Metadata        RunMetadata `json:"metadata"`
}

// Event is one element of a run's progress stream.
type Event struct {
	Type   string    `json:"type"`
	Title  string    `json:"title,omitempty"`
	Data   *StepData `json:"data,omitempty"`
	Result *Result   `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}

func stepEvent(title string, data StepData) Event {
	return Event{Type: EventStep, Title: title, Data: &data}
}

func completeEvent(res Result) Event {
	return Event{Type: EventComplete, Result: &res}
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Error: err.Error()}
}

// EventSink receives engine progress events. The engine emits
// sequentially, never from multiple goroutines.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to an EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

var discardSink EventSink = SinkFunc(func(Event) {})
