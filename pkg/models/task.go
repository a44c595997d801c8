package models

import "time"

// Role identifies who authored a message in a conversation.
type Role string

const (
	// RoleUser marks a message typed by the operator.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the language model.
	RoleAssistant Role = "assistant"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single turn of a conversation.
// Messages are append-only; a conversation is ordered by append order.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// Task is a saved, named conversation that can be executed on demand.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Name is the display name chosen when the task was saved.
	Name string `json:"name"`
	// Messages is the originating conversation, never empty for a saved task.
	Messages []Message `json:"messages"`
	// CreatedAt is when the task was saved.
	CreatedAt time.Time `json:"createdAt"`
	// LastExecuted is set by a successful execution request, nil before that.
	LastExecuted *time.Time `json:"lastExecuted,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (t Task) Clone() Task {
	out := t
	if t.Messages != nil {
		out.Messages = make([]Message, len(t.Messages))
		copy(out.Messages, t.Messages)
	}
	if t.LastExecuted != nil {
		ts := *t.LastExecuted
		out.LastExecuted = &ts
	}
	return out
}

// LastAssistantMessages returns assistant message contents, newest first.
func (t Task) LastAssistantMessages() []string {
	var out []string
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleAssistant {
			out = append(out, t.Messages[i].Content)
		}
	}
	return out
}

// UserUtterances returns user message contents in conversation order.
func (t Task) UserUtterances() []string {
	var out []string
	for _, m := range t.Messages {
		if m.Role == RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}
