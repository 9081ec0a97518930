package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
)

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func statusText(s recovery.ProgramStatus) string {
	switch s {
	case recovery.StatusCompleted:
		return green(string(s))
	case recovery.StatusNotEnrolled:
		return gray(string(s))
	default:
		return yellow(string(s))
	}
}

// progressBar renders a percentage as a fixed-width bar
func progressBar(percentage, width int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := percentage * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func printEnrollment(w io.Writer, ov *recovery.Overview) {
	e := ov.Enrollment
	fmt.Fprintf(w, "\n%s\n", cyan("=== Recovery Program ==="))
	fmt.Fprintf(w, "  Patient:   %s\n", e.PatientID)
	fmt.Fprintf(w, "  Surgery:   %s\n", e.SurgeryType)
	fmt.Fprintf(w, "  Started:   %s\n", e.StartDate.Format(dateLayout))
	fmt.Fprintf(w, "  Day:       %d / %d\n", ov.CurrentDay, recovery.ProgramLength)
	fmt.Fprintf(w, "  Remaining: %d days\n", ov.DaysRemaining)
	fmt.Fprintf(w, "  Status:    %s\n", statusText(ov.Status))
}

func printTasks(w io.Writer, day int, tasks []recovery.DailyTask) {
	fmt.Fprintf(w, "\n%s\n", cyan(fmt.Sprintf("=== Day %d ===", day)))
	if len(tasks) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No tasks scheduled"))
		return
	}

	for _, t := range tasks {
		icon := gray("○")
		if t.Completed() {
			icon = green("●")
		}
		fmt.Fprintf(w, "  %s %s %s\n", icon, t.Task.Title, gray(fmt.Sprintf("(%s, %d min)", t.Task.Category, t.Task.EstimatedDurationMinutes)))
		fmt.Fprintf(w, "    ID: %s\n", t.Task.ID)
		if t.Completion != nil && t.Completion.Notes != nil && *t.Completion.Notes != "" {
			fmt.Fprintf(w, "    Notes: %s\n", *t.Completion.Notes)
		}
	}
	printStats(w, recovery.NewStats(tasks))
}

func printStats(w io.Writer, stats recovery.CompletionStats) {
	fmt.Fprintf(w, "\n  %s %d/%d tasks %s %d%%\n",
		yellow("Progress:"), stats.Completed, stats.Total, progressBar(stats.Percentage, 20), stats.Percentage)
}
