package domain

// StageNames is the fixed, ordered list of generation steps shown to clients.
var StageNames = []string{
	"Analyzing preferences",
	"Researching destination",
	"Selecting flights & stays",
	"Composing daily plan",
	"Finalizing itinerary",
}

// TotalStages is the number of steps every generation job walks through.
var TotalStages = len(StageNames)

// StageStatus is the display state of a single stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageError     StageStatus = "error"
)

// StageState is one row of the projected progress list.
type StageState struct {
	Index  int         `json:"index"`
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
}

// StageModel is a read-only projection of a Progress value. It is recomputed
// wholesale on every update and carries no memory of earlier projections.
type StageModel struct {
	Stage       int          `json:"stage"`
	TotalStages int          `json:"total_stages"`
	Message     string       `json:"message"`
	Stages      []StageState `json:"stages"`
}

// ProjectStages derives a StageModel purely from a Progress value: everything
// before the current stage is completed, the current stage is active, the rest
// is pending.
func ProjectStages(p Progress) StageModel {
	total := p.TotalStages
	if total <= 0 {
		total = TotalStages
	}
	stage := p.Stage
	if stage < 1 {
		stage = 1
	}
	if stage > total {
		stage = total
	}
	states := make([]StageState, total)
	for i := 0; i < total; i++ {
		idx := i + 1
		name := ""
		if i < len(StageNames) {
			name = StageNames[i]
		}
		status := StagePending
		switch {
		case idx < stage:
			status = StageCompleted
		case idx == stage:
			status = StageActive
		}
		states[i] = StageState{Index: idx, Name: name, Status: status}
	}
	return StageModel{Stage: stage, TotalStages: total, Message: p.Message, Stages: states}
}

// WithFailure returns a copy of the model with the active stage marked as
// errored. Used when a job reaches the failed terminal status.
func (m StageModel) WithFailure() StageModel {
	states := make([]StageState, len(m.Stages))
	copy(states, m.Stages)
	for i := range states {
		if states[i].Status == StageActive {
			states[i].Status = StageError
		}
	}
	m.Stages = states
	return m
}
