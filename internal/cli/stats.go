package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	RetentionDays int
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete event streams older than the retention window",
		Long: `Delete event streams whose last write is older than the retention
window. The retention period defaults to the configured value.

Examples:
  polarsmith cleanup
  polarsmith cleanup --retention-days 30`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.RetentionDays, "retention-days", 0, "override the configured retention period")

	return cmd
}

func runCleanup(opts *CleanupOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	days := opts.RetentionDays
	if days == 0 {
		days = e.cfg.Events.RetentionDays
	}

	removed, err := e.log.CleanupOlderThan(ctx, days)
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup failed", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, map[string]int{"removed_streams": removed, "retention_days": days})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d event stream(s) older than %d days\n", removed, days)
	return nil
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show event log storage statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.log.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to gather stats", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, stats)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Sessions with events: %d\n", stats.SessionsWithEvents)
	fmt.Fprintf(w, "Estimated events:     %d\n", stats.EstimatedTotalEvents)
	fmt.Fprintf(w, "Storage bytes:        %d\n", stats.TotalStorageBytes)
	fmt.Fprintf(w, "Backend:              %s\n", stats.StorageBackend)
	return nil
}
