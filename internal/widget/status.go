package widget

import "github.com/anime-shed/weld-inspector-go/pkg/models"

// Phase is the lifecycle stage of one submission attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the widget state. Exactly one variant holds at a time, so a
// result and an error, or an in-flight call and a result, cannot coexist.
type Status interface {
	Phase() Phase
	status()
}

// Idle waits for a selection or a submit. Notice is set only by a rejected
// submit or a rejected selection.
type Idle struct {
	Notice string
}

// Submitting has one outbound call in flight.
type Submitting struct {
	ID       string
	FileName string
}

// Succeeded holds the payload of the last successful call.
type Succeeded struct {
	Prediction models.Prediction
}

// Failed holds the generic user message. Cause is for logs only.
type Failed struct {
	Message string
	Cause   error
}

func (Idle) Phase() Phase       { return PhaseIdle }
func (Submitting) Phase() Phase { return PhaseSubmitting }
func (Succeeded) Phase() Phase  { return PhaseSucceeded }
func (Failed) Phase() Phase     { return PhaseFailed }

func (Idle) status()       {}
func (Submitting) status() {}
func (Succeeded) status()  {}
func (Failed) status()     {}
