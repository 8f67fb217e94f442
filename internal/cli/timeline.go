package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <session-id>",
		Short: "Show a session's event timeline",
		Long: `Show a human-readable timeline of all events recorded for a session,
in chronological order.

Examples:
  polarsmith timeline 0195f3a0-1111-7abc-8def-0123456789ab
  polarsmith timeline 0195f3a0-1111-7abc-8def-0123456789ab --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(rootOpts, cmd, args[0])
		},
	}
}

func runTimeline(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.log.Timeline(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build timeline", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(w, "No events recorded for session %s.\n", sessionID)
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintf(w, "%s  %-20s  %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05"), entry.EventType, entry.Summary)
	}
	return nil
}
