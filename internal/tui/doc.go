// Package tui provides the terminal client for armtask.
//
// The app has two views that mirror the browser UI:
//   - Chat: type an instruction and press Enter to send it to the model.
//     Ctrl+S saves the conversation so far as a named task.
//   - Tasks: the saved tasks with their last execution time. Select one with
//     the arrow keys and press x to execute it a chosen number of times.
//
// Tab switches views. Ctrl+C quits.
//
// Usage:
//
//	app := tui.NewApp(client.NewHTTPClient("http://localhost:8080"))
//	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
package tui
