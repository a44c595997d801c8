package models

// SafetyLevel grades how risky a decomposed task is for the arm.
type SafetyLevel string

const (
	SafetyLow    SafetyLevel = "low"
	SafetyMedium SafetyLevel = "medium"
	SafetyHigh   SafetyLevel = "high"
)

// Valid returns true if the level is a known value.
func (s SafetyLevel) Valid() bool {
	switch s {
	case SafetyLow, SafetyMedium, SafetyHigh:
		return true
	default:
		return false
	}
}

// Subtask is one atomic, robot-executable step of a decomposition.
type Subtask struct {
	ID              string   `json:"id"`
	Command         string   `json:"command"`
	Preconditions   []string `json:"preconditions"`
	SuccessCriteria string   `json:"success_criteria"`
	Fallback        string   `json:"fallback"`
}

// Decomposition is the structure the language model is instructed to return
// for a natural-language manipulation request.
type Decomposition struct {
	TaskName               string      `json:"task_name"`
	SafetyLevel            SafetyLevel `json:"safety_level"`
	RequiresClarification  bool        `json:"requires_clarification"`
	ClarificationQuestions []string    `json:"clarification_questions,omitempty"`
	Subtasks               []Subtask   `json:"subtasks"`
}

// Commands returns the subtask commands in execution order.
func (d *Decomposition) Commands() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.Subtasks))
	for _, st := range d.Subtasks {
		out = append(out, st.Command)
	}
	return out
}
