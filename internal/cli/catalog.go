package cli

import (
	"fmt"
	"strconv"

	"github.com/gmsas95/recovery-tracker/internal/catalog"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/spf13/cobra"
)

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog <surgery-type> <day>",
		Short: "Show the task templates for a program day",
		Long:  `Print the templates the catalog holds for a surgery type and day. Reads the configured catalog file, or the built-in catalog when none is set.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("day must be a number, got %q", args[1])
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}

			templates, err := cat.Templates(cmd.Context(), recovery.SurgeryType(args[0]), day)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n%s %s\n", cyan(fmt.Sprintf("=== %s day %d ===", args[0], day)), gray("("+cat.Source()+")"))
			if len(templates) == 0 {
				fmt.Fprintf(w, "  %s\n", gray("No templates"))
				return nil
			}
			for _, tpl := range templates {
				fmt.Fprintf(w, "  %d. %s %s\n", tpl.Sequence, tpl.Title,
					gray(fmt.Sprintf("[%s] %s, %d min, difficulty %d", tpl.Key, tpl.Category, tpl.EstimatedDurationMinutes, tpl.DifficultyLevel)))
				if tpl.Description != "" {
					fmt.Fprintf(w, "     %s\n", tpl.Description)
				}
			}
			return nil
		},
	}
}
