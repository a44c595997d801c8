package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/armtask/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal client",
	Long: `Open the terminal chat and task list.

The terminal client talks to a running server (see --server).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := tui.NewApp(newAPIClient())
		_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
		return err
	},
}
