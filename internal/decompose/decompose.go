// Package decompose holds the task decomposition prompt and the parser that
// turns a model reply into a validated Decomposition.
package decompose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/armtask/pkg/models"
)

// SchemaViolationError is returned when a model reply does not match the
// decomposition schema. Raw carries the unmodified reply.
type SchemaViolationError struct {
	Raw      string
	Problems []string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("decomposition schema violation: %s", strings.Join(e.Problems, "; "))
}

// Parse extracts the JSON object from a model reply and validates it.
func Parse(response string) (*models.Decomposition, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, &SchemaViolationError{
			Raw:      response,
			Problems: []string{fmt.Sprintf("no JSON object found in response (got %d chars)", len(response))},
		}
	}

	var d models.Decomposition
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &d); err != nil {
		return nil, &SchemaViolationError{
			Raw:      response,
			Problems: []string{fmt.Sprintf("invalid JSON: %v", err)},
		}
	}

	if problems := Validate(&d); len(problems) > 0 {
		return nil, &SchemaViolationError{Raw: response, Problems: problems}
	}
	return &d, nil
}

// FirstValid returns the first candidate that parses as a valid decomposition.
func FirstValid(candidates []string) (*models.Decomposition, bool) {
	for _, c := range candidates {
		if d, err := Parse(c); err == nil {
			return d, true
		}
	}
	return nil, false
}
