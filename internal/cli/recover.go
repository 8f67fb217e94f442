package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polarsmith/internal/recovery"
)

// RecoverOptions holds flags for the recover command.
type RecoverOptions struct {
	*RootOptions
	NoBackup    bool
	ForceReplay bool
	Auto        bool
	Max         int
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover [session-id]",
		Short: "Recover a corrupted session",
		Long: `Recover a corrupted session by replaying its event log, salvaging
readable files, or falling back to a minimal placeholder.

A backup of the session's current files is taken before any repair
unless --no-backup is given. With --auto, all sessions with
auto-fixable issues are recovered instead of a single one.

Exit codes:
  0 - Recovery succeeded (or session was already healthy)
  1 - Recovery failed or was only partial
  2 - Command error

Examples:
  polarsmith recover 0195f3a0-1111-7abc-8def-0123456789ab
  polarsmith recover 0195f3a0-1111-7abc-8def-0123456789ab --force-replay
  polarsmith recover --auto --max 5`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Auto {
				return runAutoRecover(opts, cmd)
			}
			if len(args) != 1 {
				return NewExitError(ExitCommandError, "a session ID is required unless --auto is given")
			}
			return runRecover(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.NoBackup, "no-backup", false, "skip the pre-recovery backup")
	cmd.Flags().BoolVar(&opts.ForceReplay, "force-replay", false, "rebuild from events even if the session loads")
	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "recover all sessions with auto-fixable issues")
	cmd.Flags().IntVar(&opts.Max, "max", recovery.DefaultAutoRecoverLimit, "maximum sessions to auto-recover")

	return cmd
}

func runRecover(opts *RecoverOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	result := e.recovery().Recover(ctx, sessionID, !opts.NoBackup, opts.ForceReplay)
	return reportRecovery(opts.RootOptions, cmd, []recovery.Result{result})
}

func runAutoRecover(opts *RecoverOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	results := e.recovery().AutoRecover(ctx, opts.Max)
	return reportRecovery(opts.RootOptions, cmd, results)
}

// reportRecovery renders recovery results and maps any non-success to
// exit code 1.
func reportRecovery(opts *RootOptions, cmd *cobra.Command, results []recovery.Result) error {
	allOK := true
	for _, r := range results {
		if r.Status != recovery.StatusSuccess {
			allOK = false
		}
	}

	if opts.Format == "json" {
		if !allOK {
			if err := writeJSONError(cmd, "E_RECOVERY", "one or more recoveries did not fully succeed", results); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "one or more recoveries did not fully succeed")
		}
		return writeJSON(cmd, results)
	}

	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(w, "No sessions needed recovery.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s: %s", r.SessionID, r.Status)
		if r.BackupCreated {
			fmt.Fprint(w, " (backup created)")
		}
		fmt.Fprintln(w)
		for _, issue := range r.IssuesFound {
			fmt.Fprintf(w, "  found: %s\n", issue.Description)
		}
		for _, issue := range r.IssuesFixed {
			fmt.Fprintf(w, "  fixed: %s\n", issue.Description)
		}
		if r.ErrorMessage != "" {
			fmt.Fprintf(w, "  error: %s\n", r.ErrorMessage)
		}
	}
	if !allOK {
		return NewExitError(ExitFailure, "one or more recoveries did not fully succeed")
	}
	return nil
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan all sessions for integrity issues",
		Long: `Scan every known session, including those whose descriptor is missing
but whose event log survives, and report corruption statistics with
recovery recommendations.

Examples:
  polarsmith scan
  polarsmith scan --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, cmd)
		},
	}
}

func runScan(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	report := e.recovery().ScanAll(ctx)

	if opts.Format == "json" {
		return writeJSON(cmd, report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scanned %d session(s) in %.2fs\n", report.TotalSessions, report.ScanTime)
	fmt.Fprintf(w, "  Healthy:     %d\n", report.HealthySessions)
	fmt.Fprintf(w, "  Corrupted:   %d\n", report.CorruptedSessions)
	fmt.Fprintf(w, "  Recoverable: %d\n", report.RecoverableSessions)
	if len(report.IssuesByType) > 0 {
		fmt.Fprintln(w, "Issues by type:")
		for typ, count := range report.IssuesByType {
			fmt.Fprintf(w, "  %s: %d\n", typ, count)
		}
	}
	for _, rec := range report.Recommendations {
		fmt.Fprintf(w, "- %s\n", rec)
	}
	return nil
}
