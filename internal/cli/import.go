package cli

import (
	"fmt"

	"github.com/gmsas95/recovery-tracker/internal/batch"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *options) *cobra.Command {
	cfg := batch.DefaultConfig()
	var output string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Enroll many patients from a file",
		Long: `Enroll every patient listed in a file. Accepted formats:
  .txt   one "patient_id surgery_type [start_date]" per line, # for comments
  .jsonl one {"patient_id","surgery_type","start_date"} object per line
  .json  an array of those objects
  .yaml  a list of those objects
Patients who are already enrolled are skipped, so an import can be re-run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.openApp(true)
			if err != nil {
				return err
			}
			defer closeApp(application)

			processor := batch.NewProcessor(application.Tracker, cfg, application.Logger)
			result, err := processor.ProcessFile(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, item := range result.Items {
				switch {
				case item.Success:
					fmt.Fprintf(w, "  %s %s %s\n", green("✓"), item.PatientID, gray(item.SurgeryType+" from "+item.StartDate))
				case item.Skipped:
					fmt.Fprintf(w, "  %s %s %s\n", yellow("○"), item.PatientID, gray(item.Error))
				default:
					fmt.Fprintf(w, "  %s %s %s\n", red("✗"), item.PatientID, item.Error)
				}
			}
			fmt.Fprintf(w, "\n%s", result.Summary())

			if result.Failed > 0 {
				return fmt.Errorf("%d of %d enrollments failed", result.Failed, result.Total)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Write per-row results to this file (.json or JSON lines)")
	flags.IntVar(&cfg.MaxConcurrency, "concurrency", cfg.MaxConcurrency, "Parallel enrollments")
	flags.Float64Var(&cfg.RatePerSecond, "rate", 0, "Maximum enrollments per second, 0 for unlimited")
	flags.IntVar(&cfg.Burst, "burst", 1, "Burst size when --rate is set")
	flags.BoolVar(&cfg.SkipInvalid, "skip-invalid", cfg.SkipInvalid, "Skip malformed rows instead of failing")
	return cmd
}
