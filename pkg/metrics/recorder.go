// Package metrics records model, tool, and step counters for a run and can dump
// them in the Prometheus text exposition format.
package metrics

import (
	"time"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder receives run metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveRequest records one completed model call.
	ObserveRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration)

	// ObserveToolCall records one tool execution.
	ObserveToolCall(tool string, success bool)

	// ObserveStep records the outcome of one implementation step.
	ObserveStep(outcome string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// Nop returns a recorder that discards all metrics.
func Nop() Recorder {
	return NoopRecorder{}
}

// ObserveRequest does nothing.
func (NoopRecorder) ObserveRequest(string, int, int, bool, string, time.Duration) {}

// ObserveToolCall does nothing.
func (NoopRecorder) ObserveToolCall(string, bool) {}

// ObserveStep does nothing.
func (NoopRecorder) ObserveStep(string) {}

// StatusLabel maps a success flag to a status label.
func StatusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}
