package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/armtask/internal/api"
	"github.com/ShayCichocki/armtask/internal/dispatch"
	"github.com/ShayCichocki/armtask/pkg/models"
)

const (
	chatPlaceholder = "Describe a task for the arm and press Enter..."
	namePlaceholder = "Task name"
	repsPlaceholder = "Repetitions"

	// requestTimeout bounds a single call to the server.
	requestTimeout = 2 * time.Minute
)

// Backend is the server API the app drives. *client.HTTPClient satisfies it.
type Backend interface {
	Interpret(ctx context.Context, message string) (api.Reply, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, name string, messages []models.Message) (*models.Task, error)
	Execute(ctx context.Context, taskID string, repetitions int) (*dispatch.Confirmation, error)
}

// Mode is what the input field is currently collecting.
type Mode int

const (
	ModeChat Mode = iota
	ModeSaveName
	ModeTasks
	ModeRepetitions
)

type replyMsg struct {
	reply api.Reply
	err   error
}

type tasksLoadedMsg struct {
	tasks []models.Task
	err   error
}

type taskSavedMsg struct {
	task *models.Task
	err  error
}

type executedMsg struct {
	taskName string
	conf     *dispatch.Confirmation
	err      error
}

// entry is one line of the chat transcript. Failed replies are shown but
// never become part of a saved conversation.
type entry struct {
	role    models.Role
	content string
	failed  bool
}

// App is the root bubbletea model.
type App struct {
	backend    Backend
	inputField *InputField
	mode       Mode
	width      int
	height     int
	quitting   bool

	transcript []entry
	messages   []models.Message
	waiting    bool

	tasks     []models.Task
	selected  int
	executing bool

	status    string
	statusErr bool
}

// NewApp creates the app over a backend.
func NewApp(backend Backend) *App {
	return &App{
		backend:    backend,
		inputField: NewInputField(),
		mode:       ModeChat,
	}
}

// Mode returns the current mode.
func (a *App) Mode() Mode {
	return a.mode
}

// Messages returns the conversation that would be saved by Ctrl+S.
func (a *App) Messages() []models.Message {
	return a.messages
}

// Tasks returns the last loaded task list.
func (a *App) Tasks() []models.Task {
	return a.tasks
}

// Status returns the status line text.
func (a *App) Status() string {
	return a.status
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.inputField.Focus(), a.loadTasks())
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.inputField.SetWidth(msg.Width)
		return a, nil

	case SubmittedMsg:
		return a.handleSubmit(msg.Text)

	case replyMsg:
		a.waiting = false
		if msg.err != nil {
			a.transcript = append(a.transcript, entry{role: models.RoleAssistant, content: api.FallbackMessage, failed: true})
			return a, nil
		}
		if !msg.reply.Success {
			a.transcript = append(a.transcript, entry{role: models.RoleAssistant, content: msg.reply.Message, failed: true})
			return a, nil
		}
		a.transcript = append(a.transcript, entry{role: models.RoleAssistant, content: msg.reply.Message})
		a.messages = append(a.messages, models.Message{Role: models.RoleAssistant, Content: msg.reply.Message})
		return a, nil

	case tasksLoadedMsg:
		if msg.err != nil {
			a.setError("Load tasks: %v", msg.err)
			return a, nil
		}
		a.tasks = msg.tasks
		if a.selected >= len(a.tasks) {
			a.selected = max(len(a.tasks)-1, 0)
		}
		return a, nil

	case taskSavedMsg:
		if msg.err != nil {
			a.setError("Save failed: %v", msg.err)
			return a, nil
		}
		a.setStatus("Saved %q", msg.task.Name)
		return a, a.loadTasks()

	case executedMsg:
		a.executing = false
		if msg.err != nil {
			a.setError("%s", dispatch.FailureMessage)
			return a, a.loadTasks()
		}
		a.setStatus("%s: %s", msg.taskName, msg.conf.Message)
		return a, a.loadTasks()
	}

	var cmd tea.Cmd
	a.inputField, cmd = a.inputField.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		a.quitting = true
		return a, tea.Quit

	case "tab":
		switch a.mode {
		case ModeChat:
			return a, a.enterTasks()
		case ModeTasks:
			return a, a.enterChat()
		}
		return a, nil

	case "esc":
		switch a.mode {
		case ModeSaveName:
			a.setStatus("Save cancelled")
			return a, a.enterChat()
		case ModeRepetitions:
			a.mode = ModeTasks
			a.inputField.Reset()
			a.inputField.Blur()
			return a, nil
		case ModeTasks:
			return a, a.enterChat()
		}
		return a, nil
	}

	switch a.mode {
	case ModeChat:
		if msg.String() == "ctrl+s" {
			if len(a.messages) == 0 {
				a.setError("Nothing to save yet")
				return a, nil
			}
			a.mode = ModeSaveName
			a.inputField.Reset()
			a.inputField.SetPlaceholder(namePlaceholder)
			return a, a.inputField.Focus()
		}

	case ModeTasks:
		switch msg.String() {
		case "up", "k":
			if a.selected > 0 {
				a.selected--
			}
		case "down", "j":
			if a.selected < len(a.tasks)-1 {
				a.selected++
			}
		case "r":
			return a, a.loadTasks()
		case "x", "enter":
			if len(a.tasks) == 0 {
				a.setError("No saved tasks")
				return a, nil
			}
			if a.executing {
				a.setError("An execution is already running")
				return a, nil
			}
			a.mode = ModeRepetitions
			a.inputField.SetPlaceholder(repsPlaceholder)
			a.inputField.SetValue("1")
			return a, a.inputField.Focus()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.inputField, cmd = a.inputField.Update(msg)
	return a, cmd
}

func (a *App) handleSubmit(text string) (tea.Model, tea.Cmd) {
	switch a.mode {
	case ModeChat:
		if a.waiting {
			return a, nil
		}
		a.waiting = true
		a.transcript = append(a.transcript, entry{role: models.RoleUser, content: text})
		a.messages = append(a.messages, models.Message{Role: models.RoleUser, Content: text})
		return a, a.interpret(text)

	case ModeSaveName:
		messages := make([]models.Message, len(a.messages))
		copy(messages, a.messages)
		a.mode = ModeChat
		a.inputField.SetPlaceholder(chatPlaceholder)
		return a, a.saveTask(text, messages)

	case ModeRepetitions:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 {
			a.setError("Repetitions must be a whole number of at least 1")
			a.inputField.SetValue(text)
			return a, nil
		}
		task := a.tasks[a.selected]
		a.mode = ModeTasks
		a.inputField.Blur()
		a.executing = true
		a.setStatus("Executing %q (%d repetitions)...", task.Name, n)
		return a, a.execute(task, n)
	}
	return a, nil
}

func (a *App) enterChat() tea.Cmd {
	a.mode = ModeChat
	a.inputField.Reset()
	a.inputField.SetPlaceholder(chatPlaceholder)
	return a.inputField.Focus()
}

func (a *App) enterTasks() tea.Cmd {
	a.mode = ModeTasks
	a.inputField.Blur()
	return a.loadTasks()
}

func (a *App) setStatus(format string, args ...any) {
	a.status = fmt.Sprintf(format, args...)
	a.statusErr = false
}

func (a *App) setError(format string, args ...any) {
	a.status = fmt.Sprintf(format, args...)
	a.statusErr = true
}

func (a *App) interpret(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		reply, err := a.backend.Interpret(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (a *App) loadTasks() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		tasks, err := a.backend.ListTasks(ctx)
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

func (a *App) saveTask(name string, messages []models.Message) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		task, err := a.backend.CreateTask(ctx, name, messages)
		return taskSavedMsg{task: task, err: err}
	}
}

func (a *App) execute(task models.Task, repetitions int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		conf, err := a.backend.Execute(ctx, task.ID, repetitions)
		return executedMsg{taskName: task.Name, conf: conf, err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.renderTabs())
	b.WriteString("\n\n")

	switch a.mode {
	case ModeChat, ModeSaveName:
		b.WriteString(a.renderChat())
	case ModeTasks, ModeRepetitions:
		b.WriteString(a.renderTasks())
	}
	b.WriteString("\n")

	if a.mode != ModeTasks {
		b.WriteString(a.inputField.View())
		b.WriteString("\n")
	}

	if a.status != "" {
		if a.statusErr {
			b.WriteString(errorStyle.Render(a.status))
		} else {
			b.WriteString(statusStyle.Render(a.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(a.help()))
	return b.String()
}

func (a *App) renderTabs() string {
	chat, tasks := inactiveTabStyle, inactiveTabStyle
	if a.mode == ModeChat || a.mode == ModeSaveName {
		chat = activeTabStyle
	} else {
		tasks = activeTabStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("armtask"), "  ",
		chat.Render("Chat"), "  ",
		tasks.Render(fmt.Sprintf("Tasks (%d)", len(a.tasks))),
	)
}

func (a *App) renderChat() string {
	if len(a.transcript) == 0 {
		return dimStyle.Render("No messages yet.") + "\n"
	}

	lines := a.transcript
	// Keep the newest lines on screen.
	if limit := a.height - 8; limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	var b strings.Builder
	for _, e := range lines {
		switch {
		case e.role == models.RoleUser:
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(e.content)
		case e.failed:
			b.WriteString(errorStyle.Render("Claude: " + e.content))
		default:
			b.WriteString(assistantStyle.Render("Claude: "))
			b.WriteString(e.content)
		}
		b.WriteString("\n")
	}
	if a.waiting {
		b.WriteString(dimStyle.Render("Claude is thinking..."))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderTasks() string {
	if len(a.tasks) == 0 {
		return dimStyle.Render("No saved tasks. Save a conversation from the chat with Ctrl+S.") + "\n"
	}

	var b strings.Builder
	for i, t := range a.tasks {
		last := "never"
		if t.LastExecuted != nil {
			last = formatTime(*t.LastExecuted)
		}
		line := fmt.Sprintf("%-28s created %s  last run %s", truncate(t.Name, 28), formatTime(t.CreatedAt), last)
		if i == a.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) help() string {
	switch a.mode {
	case ModeSaveName:
		return "enter save • esc cancel"
	case ModeTasks:
		return "↑/↓ select • x execute • r refresh • tab chat • ctrl+c quit"
	case ModeRepetitions:
		return "enter execute • esc cancel"
	default:
		return "enter send • ctrl+s save as task • tab tasks • ctrl+c quit"
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
