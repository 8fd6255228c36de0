package domain

import "testing"

func TestProjectStages(t *testing.T) {
	model := ProjectStages(Progress{Stage: 3, TotalStages: 5, Message: "booking"})

	if model.Stage != 3 || model.TotalStages != 5 || model.Message != "booking" {
		t.Fatalf("header mismatch: %+v", model)
	}
	want := []StageStatus{StageCompleted, StageCompleted, StageActive, StagePending, StagePending}
	for i, st := range model.Stages {
		if st.Status != want[i] {
			t.Fatalf("stage %d status = %s, want %s", st.Index, st.Status, want[i])
		}
		if st.Index != i+1 {
			t.Fatalf("stage index = %d, want %d", st.Index, i+1)
		}
	}
	if model.Stages[0].Name != StageNames[0] {
		t.Fatalf("stage name = %q, want %q", model.Stages[0].Name, StageNames[0])
	}
}

func TestProjectStagesClampsOutOfRange(t *testing.T) {
	low := ProjectStages(Progress{Stage: 0, TotalStages: 5})
	if low.Stage != 1 || low.Stages[0].Status != StageActive {
		t.Fatalf("stage 0 not clamped to 1: %+v", low)
	}

	high := ProjectStages(Progress{Stage: 9, TotalStages: 5})
	if high.Stage != 5 || high.Stages[4].Status != StageActive {
		t.Fatalf("stage 9 not clamped to 5: %+v", high)
	}

	zero := ProjectStages(Progress{})
	if zero.TotalStages != TotalStages {
		t.Fatalf("zero total not defaulted: %d", zero.TotalStages)
	}
}

func TestProjectStagesIsPure(t *testing.T) {
	p := Progress{Stage: 2, TotalStages: 5}
	first := ProjectStages(p)
	first.Stages[1].Status = StageError

	second := ProjectStages(p)
	if second.Stages[1].Status != StageActive {
		t.Fatal("projection leaked state between calls")
	}
}

func TestWithFailure(t *testing.T) {
	model := ProjectStages(Progress{Stage: 4, TotalStages: 5}).WithFailure()
	if model.Stages[3].Status != StageError {
		t.Fatalf("active stage not errored: %+v", model.Stages[3])
	}
	if model.Stages[2].Status != StageCompleted {
		t.Fatalf("completed stage disturbed: %+v", model.Stages[2])
	}
}
