package channel

import "encoding/json"

// EventType enumerates the typed events the analysis backend pushes over
// the realtime channel.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventLog       EventType = "log"
	EventStage     EventType = "stage"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

var knownEventTypes = map[EventType]bool{
	EventProgress:  true,
	EventLog:       true,
	EventStage:     true,
	EventCompleted: true,
	EventError:     true,
}

// Event is one channel message: one JSON document per message, with a
// type tag and an event-specific payload.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ProgressPayload is the data of a progress event.
type ProgressPayload struct {
	Progress      int    `json:"progress"`
	CurrentStage  string `json:"currentStage"`
	EstimatedTime string `json:"estimatedTime"`
}

// LogPayload is the data of a log event.
type LogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// StagePayload is the data of a stage event.
type StagePayload struct {
	Stage string `json:"stage"`
}

// ErrorPayload is the data of an error event, including the terminal
// channel error synthesized when the reconnect budget is spent.
type ErrorPayload struct {
	Message string `json:"message"`
}
