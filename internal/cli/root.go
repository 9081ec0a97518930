package cli

import (
	"fmt"
	"os"

	"github.com/gmsas95/recovery-tracker/internal/app"
	"github.com/gmsas95/recovery-tracker/internal/config"
	"github.com/gmsas95/recovery-tracker/internal/security"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

const dateLayout = "2006-01-02"

// options holds the persistent flags shared by every command
type options struct {
	configPath string
	dataDir    string
	patient    string
	verbose    bool
}

// NewRootCommand builds the recovery command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "recovery",
		Short:         "Track a 30-day surgery recovery program",
		Long:          `Enroll patients in a day-indexed recovery program, list each day's tasks and record their completion.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles(config.EnvFiles()...)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file")
	flags.StringVar(&opts.dataDir, "data", "", "Path to data directory")
	flags.StringVarP(&opts.patient, "patient", "p", "", "Patient ID")
	flags.BoolVar(&opts.verbose, "verbose", false, "Log at the configured level instead of warn")

	root.AddCommand(
		newInitCmd(opts),
		newServeCmd(opts),
		newEnrollCmd(opts),
		newUpdateCmd(opts),
		newStatusCmd(opts),
		newTasksCmd(opts),
		newCompleteCmd(opts),
		newStatsCmd(opts),
		newCatalogCmd(opts),
		newImportCmd(opts),
		newTokenCmd(opts),
	)

	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, o.dataDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads config and assembles the app. One-shot commands log at
// warn unless --verbose is set so their output stays readable.
func (o *options) openApp(quiet bool) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if quiet && !o.verbose {
		cfg.Log.Level = "warn"
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	application, err := app.New(cfg, logger, Version)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	return application, nil
}

func closeApp(application *app.App) {
	if err := application.Close(); err != nil {
		application.Logger.Warn("Failed to close store", zap.Error(err))
	}
	application.Logger.Sync()
}

func (o *options) requirePatient() (string, error) {
	if o.patient == "" {
		return "", fmt.Errorf("--patient is required")
	}
	if err := security.ValidatePatientID(o.patient); err != nil {
		return "", fmt.Errorf("--patient: %w", err)
	}
	return o.patient, nil
}
