package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewIntegrityCommand creates the integrity command.
func NewIntegrityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity <session-id>",
		Short: "Check a session's event log integrity",
		Long: `Validate the integrity of a session's event log: the first event must
be the session creation, events must be stored in chronological order,
event IDs must be unique, and the log must replay cleanly.

Exit codes:
  0 - Event log is valid
  1 - Integrity issues found
  2 - Command error

Examples:
  polarsmith integrity 0195f3a0-1111-7abc-8def-0123456789ab
  polarsmith integrity 0195f3a0-1111-7abc-8def-0123456789ab --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrity(rootOpts, cmd, args[0])
		},
	}
}

func runIntegrity(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.log.ValidateIntegrity(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to validate integrity", err)
	}

	if opts.Format == "json" {
		if !report.IsValid {
			if err := writeJSONError(cmd, "E_INTEGRITY", "event log integrity issues found", report); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "event log integrity issues found")
		}
		return writeJSON(cmd, report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session %s: %d event(s)\n", report.SessionID, report.EventCount)
	if report.FirstEvent != nil && report.LastEvent != nil {
		fmt.Fprintf(w, "Range: %s to %s\n",
			report.FirstEvent.Format("2006-01-02 15:04:05"), report.LastEvent.Format("2006-01-02 15:04:05"))
	}
	for _, issue := range report.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
	if report.IsValid {
		fmt.Fprintln(w, "Event log is valid")
		return nil
	}
	fmt.Fprintln(w, "Event log has integrity issues")
	return NewExitError(ExitFailure, "event log integrity issues found")
}
