package cli

import (
	"fmt"
	"time"

	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/spf13/cobra"
)

func newEnrollCmd(opts *options) *cobra.Command {
	var startDate string

	cmd := &cobra.Command{
		Use:   "enroll <surgery-type>",
		Short: "Enroll a patient in a recovery program",
		Long:  `Enroll the patient given by --patient. Surgery type is one of heart, knee, cesarean or other.`,
		Args:  cobra.ExactArgs(1),
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

			start := application.Tracker.Today()
			if startDate != "" {
				if start, err = time.Parse(dateLayout, startDate); err != nil {
					return fmt.Errorf("--start must use the %s format", dateLayout)
				}
			}

			ctx := cmd.Context()
			if _, err := application.Tracker.Enroll(ctx, patient, recovery.SurgeryType(args[0]), start); err != nil {
				return err
			}

			ov, err := application.Tracker.Overview(ctx, patient)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Enrolled %s in the %s program\n", green("✓"), patient, args[0])
			printEnrollment(cmd.OutOrStdout(), ov)
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start", "", "Start date (YYYY-MM-DD), defaults to today")
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	var (
		surgeryType string
		startDate   string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change a patient's surgery type or start date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := opts.requirePatient()
			if err != nil {
				return err
			}

			var upd recovery.EnrollmentUpdate
			if cmd.Flags().Changed("surgery") {
				st := recovery.SurgeryType(surgeryType)
				upd.SurgeryType = &st
			}
			if cmd.Flags().Changed("start") {
				d, err := time.Parse(dateLayout, startDate)
				if err != nil {
					return fmt.Errorf("--start must use the %s format", dateLayout)
				}
				upd.StartDate = &d
			}
			if upd.SurgeryType == nil && upd.StartDate == nil {
				return fmt.Errorf("nothing to update: pass --surgery or --start")
			}

			application, err := opts.openApp(true)
			if err != nil {
				return err
			}
			defer closeApp(application)

			ctx := cmd.Context()
			if _, err := application.Tracker.UpdateEnrollment(ctx, patient, upd); err != nil {
				return err
			}

			ov, err := application.Tracker.Overview(ctx, patient)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated enrollment for %s\n", green("✓"), patient)
			printEnrollment(cmd.OutOrStdout(), ov)
			return nil
		},
	}

	cmd.Flags().StringVar(&surgeryType, "surgery", "", "New surgery type")
	cmd.Flags().StringVar(&startDate, "start", "", "New start date (YYYY-MM-DD)")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where a patient is in their program",
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

			ov, err := application.Tracker.Overview(cmd.Context(), patient)
			if err != nil {
				return err
			}
			printEnrollment(cmd.OutOrStdout(), ov)
			return nil
		},
	}
}
