package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SubmittedMsg is sent when the user presses Enter on a non-empty input.
type SubmittedMsg struct {
	Text string
}

// InputField is a single line text input.
type InputField struct {
	input textinput.Model
	width int
}

// NewInputField creates a new InputField.
func NewInputField() *InputField {
	ti := textinput.New()
	ti.Placeholder = chatPlaceholder
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	return &InputField{
		input: ti,
		width: 80,
	}
}

// SetWidth sets the width of the input field.
func (f *InputField) SetWidth(width int) {
	f.width = width
	f.input.Width = width - 4
}

// SetPlaceholder changes the hint shown while the field is empty.
func (f *InputField) SetPlaceholder(p string) {
	f.input.Placeholder = p
}

// SetValue replaces the current text.
func (f *InputField) SetValue(v string) {
	f.input.SetValue(v)
	f.input.CursorEnd()
}

// Value returns the current text.
func (f *InputField) Value() string {
	return f.input.Value()
}

// Reset clears the text.
func (f *InputField) Reset() {
	f.input.Reset()
}

// Update handles messages for the input field.
func (f *InputField) Update(msg tea.Msg) (*InputField, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		text := strings.TrimSpace(f.input.Value())
		if text == "" {
			return f, nil
		}
		f.input.Reset()
		return f, func() tea.Msg {
			return SubmittedMsg{Text: text}
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the input field.
func (f *InputField) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(f.width - 2)

	return style.Render(f.input.View())
}

// Focus focuses the input field.
func (f *InputField) Focus() tea.Cmd {
	return f.input.Focus()
}

// Blur removes focus from the input field.
func (f *InputField) Blur() {
	f.input.Blur()
}

// Focused returns whether the input field is focused.
func (f *InputField) Focused() bool {
	return f.input.Focused()
}
