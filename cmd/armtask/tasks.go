package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/armtask/pkg/models"
)

var (
	tasksRepetitions int
	tasksInterpret   bool
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List, create and run saved tasks",
	Long: `Work with saved tasks on a running server.

Examples:
  armtask tasks list
  armtask tasks create "Pick and Place" "pick up the red block and put it on the blue one" --interpret
  armtask tasks run 3f0c... --repetitions 3
  armtask tasks status 3f0c...`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := newAPIClient().ListTasks(cmd.Context())
		if err != nil {
			return err
		}
		printTasks(cmd.OutOrStdout(), tasks)
		return nil
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <name> <instruction>",
	Short: "Save an instruction as a task",
	Long: `Save an instruction as a task.

With --interpret the instruction is sent to the model first and the reply is
saved with it, as the chat UI does.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient()
		messages := []models.Message{{Role: models.RoleUser, Content: args[1]}}

		if tasksInterpret {
			reply, err := c.Interpret(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if !reply.Success {
				return fmt.Errorf("interpret: %s", reply.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", reply.Message)
			messages = append(messages, models.Message{Role: models.RoleAssistant, Content: reply.Message})
		}

		task, err := c.CreateTask(cmd.Context(), args[0], messages)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %q (%s)\n", color.GreenString("✓"), task.Name, task.ID)
		return nil
	},
}

var tasksRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Execute a saved task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tasksRepetitions < 1 {
			return fmt.Errorf("--repetitions must be at least 1")
		}
		conf, err := newAPIClient().Execute(cmd.Context(), args[0], tasksRepetitions)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n", color.GreenString("✓"), conf.Message, formatTime(conf.ExecutedAt))
		return nil
	},
}

var tasksStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show when a task last ran",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newAPIClient().Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Task:          %s\n", status.Task.Name)
		fmt.Fprintf(out, "ID:            %s\n", status.Task.ID)
		fmt.Fprintf(out, "Created:       %s\n", formatTime(status.Task.CreatedAt))
		if status.LastExecuted == nil {
			fmt.Fprintf(out, "Last executed: never\n")
		} else {
			fmt.Fprintf(out, "Last executed: %s\n", formatTime(*status.LastExecuted))
		}
		fmt.Fprintf(out, "Messages:      %d\n", len(status.Task.Messages))
		return nil
	},
}

func init() {
	tasksCreateCmd.Flags().BoolVar(&tasksInterpret, "interpret", false, "Send the instruction to the model and save its reply too")
	tasksRunCmd.Flags().IntVarP(&tasksRepetitions, "repetitions", "n", 1, "Number of repetitions")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksRunCmd)
	tasksCmd.AddCommand(tasksStatusCmd)
}

func printTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No saved tasks.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tLAST EXECUTED")
	for _, t := range tasks {
		last := "never"
		if t.LastExecuted != nil {
			last = formatTime(*t.LastExecuted)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, oneLine(t.Name), formatTime(t.CreatedAt), last)
	}
	tw.Flush()
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
