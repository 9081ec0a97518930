package cli

import (
	"fmt"

	"github.com/gmsas95/recovery-tracker/internal/security"
	"github.com/spf13/cobra"
)

func newTasksCmd(opts *options) *cobra.Command {
	var day int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List a day's tasks with their completion state",
		Long:  `List the tasks for --day, or for the patient's current day when --day is omitted. Tasks are created from the catalog on first view.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := opts.requirePatient()
			if err != nil {
				return err
			}

			application, err := opts.openApp(true)
			if err != nil {
				return err
			}
			defer closeApp(application)

			ctx := cmd.Context()
			tasks, err := application.Tracker.GetDailyTasks(ctx, patient, day)
			if err != nil {
				return err
			}

			shown := day
			if shown == 0 {
				ov, err := application.Tracker.Overview(ctx, patient)
				if err != nil {
					return err
				}
				shown = ov.CurrentDay
			}
			printTasks(cmd.OutOrStdout(), shown, tasks)
			return nil
		},
	}

	cmd.Flags().IntVarP(&day, "day", "d", 0, "Program day (1-30), defaults to today")
	return cmd
}

func newCompleteCmd(opts *options) *cobra.Command {
	var (
		undo  bool
		notes string
	)

	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task complete, or incomplete with --undo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := opts.requirePatient()
			if err != nil {
				return err
			}

			var n *string
			if cmd.Flags().Changed("notes") {
				if err := security.ValidateNotes(notes); err != nil {
					return fmt.Errorf("--notes: %w", err)
				}
				n = &notes
			}

			application, err := opts.openApp(true)
			if err != nil {
				return err
			}
			defer closeApp(application)

			rec, err := application.Tracker.CompleteTask(cmd.Context(), patient, args[0], !undo, n)
			if err != nil {
				return err
			}

			if rec.IsCompleted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Task %s completed at %s\n", green("✓"), rec.TaskInstanceID, rec.CompletedAt.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Task %s marked incomplete\n", yellow("○"), rec.TaskInstanceID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the task incomplete")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes to store with the completion")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's completion stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := opts.requirePatient()
			if err != nil {
				return err
			}

			application, err := opts.openApp(true)
			if err != nil {
				return err
			}
			defer closeApp(application)

			stats, err := application.Tracker.GetTodayCompletionStats(cmd.Context(), patient)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}
