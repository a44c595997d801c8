package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/armtask/internal/dispatch"
)

var haltCmd = &cobra.Command{
	Use:   "halt [reason]",
	Short: "Stop all task executions",
	Long: `Engage the halt switch.

While engaged, every execution request fails without reaching the arm.
The switch is a file in executor.signals_dir, so it takes effect on a
running server immediately. Release it with "armtask resume".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dispatch.NewHaltSwitch(cfg.Executor.SignalsDir, logger)
		if err != nil {
			return err
		}
		defer h.Close()

		reason := strings.Join(args, " ")
		if reason == "" {
			reason = "halted by operator"
		}
		if err := h.Engage(reason); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Executions halted (%s)\n", color.RedString("■"), h.Path())
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Release the halt switch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dispatch.NewHaltSwitch(cfg.Executor.SignalsDir, logger)
		if err != nil {
			return err
		}
		defer h.Close()

		if !h.Engaged() {
			fmt.Fprintln(cmd.OutOrStdout(), "Executions are not halted.")
			return nil
		}
		if err := h.Release(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Executions resumed\n", color.GreenString("▶"))
		return nil
	},
}
