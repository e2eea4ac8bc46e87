package analyst

import "time"

// Lifecycle event names emitted around an analysis run.
const (
	EventStarted   = "analysis.started"
	EventCompleted = "analysis.completed"
	EventFailed    = "analysis.failed"
)

// Event is a lifecycle notification delivered to registered observers.
// Result is set on completed events, Error on failed ones.
type Event struct {
	Name      string    `json:"name"`
	RequestID string    `json:"request_id"`
	ProfileID string    `json:"profile_id"`
	At        time.Time `json:"at"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}
