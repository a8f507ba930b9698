package research

import (
	"errors"
	"fmt"
)

// Phase is the discrete named state of a research session's workflow.
type Phase string

const (
	PhaseTopic     Phase = "topic"
	PhaseQuestions Phase = "questions"
	PhaseFeedback  Phase = "feedback"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseCompleted Phase = "completed"
	PhaseError     Phase = "error"
)

// Terminal reports whether no further phase-changing operation is accepted.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseTopic, PhaseQuestions, PhaseFeedback, PhasePlanning, PhaseExecuting, PhaseCompleted, PhaseError:
		return true
	default:
		return false
	}
}

// Operation names a phase-transition entry point.
type Operation string

const (
	OpAskQuestions    Operation = "ask_questions"
	OpSubmitFeedback  Operation = "submit_feedback"
	OpWriteReportPlan Operation = "write_report_plan"
	OpExecuteResearch Operation = "execute_research"
	OpRefine          Operation = "refine"
)

var (
	// ErrTerminalSession rejects operations on completed or errored sessions.
	ErrTerminalSession = errors.New("session is in a terminal phase")
	// ErrWrongPhase rejects an operation whose phase precondition fails.
	ErrWrongPhase = errors.New("operation not allowed in current phase")
	// ErrRefineDuringExecute rejects refine while task execution is in flight.
	ErrRefineDuringExecute = errors.New("refine not allowed while executing")
	// ErrInvalidRefineTarget rejects refine to a phase outside the allowed set.
	ErrInvalidRefineTarget = errors.New("invalid refine target phase")
)

// requiredPhases is the transition table: which current phases admit each
// operation. Refine is handled separately because its precondition is "any
// non-terminal phase except executing".
var requiredPhases = map[Operation][]Phase{
	OpAskQuestions:    {PhaseTopic},
	OpSubmitFeedback:  {PhaseQuestions},
	OpWriteReportPlan: {PhaseQuestions, PhaseFeedback},
	OpExecuteResearch: {PhasePlanning},
}

// RequiredPhases returns the phases from which op may start. The returned
// slice is shared; callers must not mutate it.
func RequiredPhases(op Operation) []Phase {
	return requiredPhases[op]
}

// CanStart validates that op may begin from the current phase. Precondition
// failures are reported with typed errors and never alter session state.
func CanStart(op Operation, current Phase) error {
	if current.Terminal() {
		return fmt.Errorf("%w: phase=%s", ErrTerminalSession, current)
	}

	if op == OpRefine {
		if current == PhaseExecuting {
			return ErrRefineDuringExecute
		}
		return nil
	}

	allowed, ok := requiredPhases[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	for _, phase := range allowed {
		if phase == current {
			return nil
		}
	}
	return fmt.Errorf("%w: operation=%s phase=%s", ErrWrongPhase, op, current)
}

// refineTargets are the phases refine may re-open.
var refineTargets = map[Phase]bool{
	PhaseQuestions: true,
	PhaseFeedback:  true,
	PhasePlanning:  true,
}

// ValidRefineTarget reports whether target is a legal refine destination.
func ValidRefineTarget(target Phase) bool {
	return refineTargets[target]
}
