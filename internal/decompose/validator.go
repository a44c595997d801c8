package decompose

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/armtask/pkg/models"
)

// Validate checks a decomposition against the schema the prompt describes.
// It returns every problem found; an empty result means the value is valid.
func Validate(d *models.Decomposition) []string {
	if d == nil {
		return []string{"decomposition is empty"}
	}

	var problems []string

	if strings.TrimSpace(d.TaskName) == "" {
		problems = append(problems, "task_name is required")
	}
	if !d.SafetyLevel.Valid() {
		problems = append(problems, fmt.Sprintf("safety_level %q must be one of low, medium, high", d.SafetyLevel))
	}

	switch {
	case d.RequiresClarification && len(d.ClarificationQuestions) == 0:
		problems = append(problems, "clarification_questions required when requires_clarification is true")
	case !d.RequiresClarification && len(d.ClarificationQuestions) > 0:
		problems = append(problems, "clarification_questions must be absent when requires_clarification is false")
	}

	if len(d.Subtasks) > MaxSubtasks {
		problems = append(problems, fmt.Sprintf("at most %d subtasks allowed, got %d", MaxSubtasks, len(d.Subtasks)))
	}
	if !d.RequiresClarification && len(d.Subtasks) == 0 {
		problems = append(problems, "subtasks must not be empty")
	}

	problems = append(problems, validateSubtasks(d.Subtasks)...)
	return problems
}

func validateSubtasks(subtasks []models.Subtask) []string {
	var problems []string
	seen := make(map[string]bool, len(subtasks))
	for i, st := range subtasks {
		label := fmt.Sprintf("subtasks[%d]", i)
		if strings.TrimSpace(st.ID) == "" {
			problems = append(problems, label+": id is required")
		} else if seen[st.ID] {
			problems = append(problems, fmt.Sprintf("%s: duplicate id %q", label, st.ID))
		}
		seen[st.ID] = true
		if strings.TrimSpace(st.Command) == "" {
			problems = append(problems, label+": command is required")
		}
	}
	return problems
}
