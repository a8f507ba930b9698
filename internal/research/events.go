package research

import "time"

// Stream event names delivered to subscribers. Payloads are flat maps so the
// SSE and websocket transports can serialize them without type switches.
const (
	EventConnected   = "connected"
	EventProgress    = "progress"
	EventMessage     = "message"
	EventFinalReport = "final-report"
	EventError       = "error"
)

// StreamEvent is one event on a session's live stream.
type StreamEvent struct {
	Name      string         `json:"event"`
	SessionID string         `json:"session_id"`
	At        time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewConnectedEvent acknowledges a freshly attached subscriber.
func NewConnectedEvent(sessionID string) StreamEvent {
	return StreamEvent{
		Name:      EventConnected,
		SessionID: sessionID,
		At:        time.Now(),
	}
}

// NewProgressEvent reports a step boundary. Status is "start" or "end"; name
// is the step being executed. Task-scoped progress carries the task query.
func NewProgressEvent(sessionID string, step, status string, extra map[string]any) StreamEvent {
	data := map[string]any{"step": step, "status": status}
	for k, v := range extra {
		data[k] = v
	}
	return StreamEvent{
		Name:      EventProgress,
		SessionID: sessionID,
		At:        time.Now(),
		Data:      data,
	}
}

// NewMessageEvent carries partial or complete model output text.
func NewMessageEvent(sessionID, text string) StreamEvent {
	return StreamEvent{
		Name:      EventMessage,
		SessionID: sessionID,
		At:        time.Now(),
		Data:      map[string]any{"text": text},
	}
}

// NewFinalReportEvent is the terminal success event.
func NewFinalReportEvent(sessionID, report string) StreamEvent {
	return StreamEvent{
		Name:      EventFinalReport,
		SessionID: sessionID,
		At:        time.Now(),
		Data:      map[string]any{"report": report},
	}
}

// NewErrorEvent is the terminal failure event.
func NewErrorEvent(sessionID, message string) StreamEvent {
	return StreamEvent{
		Name:      EventError,
		SessionID: sessionID,
		At:        time.Now(),
		Data:      map[string]any{"message": message},
	}
}

// Terminal reports whether the event ends the stream for its session.
func (e StreamEvent) Terminal() bool {
	return e.Name == EventFinalReport || e.Name == EventError
}
