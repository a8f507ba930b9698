package research

import (
	"errors"
	"testing"
)

func TestCanStartFollowsTransitionTable(t *testing.T) {
	cases := []struct {
		op      Operation
		current Phase
		wantErr error
	}{
		{OpAskQuestions, PhaseTopic, nil},
		{OpAskQuestions, PhaseQuestions, ErrWrongPhase},
		{OpAskQuestions, PhasePlanning, ErrWrongPhase},
		{OpSubmitFeedback, PhaseQuestions, nil},
		{OpSubmitFeedback, PhaseTopic, ErrWrongPhase},
		{OpWriteReportPlan, PhaseQuestions, nil},
		{OpWriteReportPlan, PhaseFeedback, nil},
		{OpWriteReportPlan, PhaseTopic, ErrWrongPhase},
		{OpExecuteResearch, PhasePlanning, nil},
		{OpExecuteResearch, PhaseTopic, ErrWrongPhase},
		{OpExecuteResearch, PhaseFeedback, ErrWrongPhase},
	}

	for _, tc := range cases {
		err := CanStart(tc.op, tc.current)
		if tc.wantErr == nil {
			if err != nil {
				t.Errorf("CanStart(%s, %s) = %v, want nil", tc.op, tc.current, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("CanStart(%s, %s) = %v, want %v", tc.op, tc.current, err, tc.wantErr)
		}
	}
}

func TestCanStartRejectsTerminalPhases(t *testing.T) {
	ops := []Operation{OpAskQuestions, OpSubmitFeedback, OpWriteReportPlan, OpExecuteResearch, OpRefine}
	for _, op := range ops {
		for _, phase := range []Phase{PhaseCompleted, PhaseError} {
			if err := CanStart(op, phase); !errors.Is(err, ErrTerminalSession) {
				t.Errorf("CanStart(%s, %s) = %v, want ErrTerminalSession", op, phase, err)
			}
		}
	}
}

func TestRefinePreconditions(t *testing.T) {
	for _, phase := range []Phase{PhaseTopic, PhaseQuestions, PhaseFeedback, PhasePlanning} {
		if err := CanStart(OpRefine, phase); err != nil {
			t.Errorf("CanStart(refine, %s) = %v, want nil", phase, err)
		}
	}
	if err := CanStart(OpRefine, PhaseExecuting); !errors.Is(err, ErrRefineDuringExecute) {
		t.Errorf("CanStart(refine, executing) = %v, want ErrRefineDuringExecute", err)
	}
}

func TestValidRefineTarget(t *testing.T) {
	for _, phase := range []Phase{PhaseQuestions, PhaseFeedback, PhasePlanning} {
		if !ValidRefineTarget(phase) {
			t.Errorf("expected %s to be a valid refine target", phase)
		}
	}
	for _, phase := range []Phase{PhaseTopic, PhaseExecuting, PhaseCompleted, PhaseError} {
		if ValidRefineTarget(phase) {
			t.Errorf("expected %s to be rejected as refine target", phase)
		}
	}
}

func TestNoPathFromTopicToExecuting(t *testing.T) {
	// Walking every operation from topic must never land in executing.
	for op, phases := range requiredPhases {
		for _, phase := range phases {
			if phase == PhaseTopic && op == OpExecuteResearch {
				t.Fatalf("transition table allows %s from topic", op)
			}
		}
	}
	if err := CanStart(OpExecuteResearch, PhaseTopic); err == nil {
		t.Fatal("execute_research must not start from topic")
	}
}
