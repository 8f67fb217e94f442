package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, and restore session backups",
	}

	cmd.AddCommand(newBackupCreateCommand(rootOpts))
	cmd.AddCommand(newBackupListCommand(rootOpts))
	cmd.AddCommand(newBackupRestoreCommand(rootOpts))

	return cmd
}

func newBackupCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create <session-id>",
		Short:         "Snapshot a session's files and event log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupCreate(rootOpts, cmd, args[0])
		},
	}
}

func runBackupCreate(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := requireSession(ctx, e, sessionID); err != nil {
		return err
	}
	if err := e.recovery().CreateBackup(ctx, sessionID); err != nil {
		return WrapExitError(ExitCommandError, "failed to create backup", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, map[string]string{"session_id": sessionID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created backup for session %s\n", sessionID)
	return nil
}

func newBackupListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <session-id>",
		Short:         "List a session's backups, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupList(rootOpts, cmd, args[0])
		},
	}
}

func runBackupList(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	backups, err := e.recovery().ListBackups(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list backups", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, backups)
	}

	w := cmd.OutOrStdout()
	if len(backups) == 0 {
		fmt.Fprintf(w, "No backups found for session %s.\n", sessionID)
		return nil
	}
	for _, b := range backups {
		fmt.Fprintf(w, "%s  %d bytes  %s\n", b.Timestamp, b.Size, b.Created.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// BackupRestoreOptions holds flags for backup restore.
type BackupRestoreOptions struct {
	*RootOptions
	Timestamp string
}

func newBackupRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupRestoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "restore <session-id>",
		Short: "Restore a session from a backup",
		Long: `Restore a session's files from a backup snapshot. Without --timestamp
the most recent backup is used.

Examples:
  polarsmith backup restore 0195f3a0-1111-7abc-8def-0123456789ab
  polarsmith backup restore 0195f3a0-1111-7abc-8def-0123456789ab --timestamp 20250301_100000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupRestore(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Timestamp, "timestamp", "", "backup timestamp (YYYYMMDD_HHMMSS), latest if omitted")

	return cmd
}

func runBackupRestore(opts *BackupRestoreOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.recovery().RestoreFromBackup(ctx, sessionID, opts.Timestamp); err != nil {
		return WrapExitError(ExitFailure, "failed to restore backup", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, map[string]string{"session_id": sessionID, "timestamp": opts.Timestamp})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored session %s from backup\n", sessionID)
	return nil
}
