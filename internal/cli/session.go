package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/polarsmith/internal/event"
	"github.com/roach88/polarsmith/internal/session"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, list, inspect, and delete sessions",
	}

	cmd.AddCommand(newSessionCreateCommand(rootOpts))
	cmd.AddCommand(newSessionListCommand(rootOpts))
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	cmd.AddCommand(newSessionDeleteCommand(rootOpts))

	return cmd
}

func newSessionCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new session",
		Long: `Create a new session with the given name.

The session is persisted to storage and a SessionCreated event is
appended to its event log.

Examples:
  polarsmith session create "Access Policy"
  polarsmith session create "Access Policy" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCreate(rootOpts, cmd, args[0])
		},
	}
}

func runSessionCreate(opts *RootOptions, cmd *cobra.Command, name string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.manager.Create(ctx, name)
	if err != nil {
		if session.IsValidation(err) {
			return WrapExitError(ExitFailure, "invalid session name", err)
		}
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}

	if err := e.log.AppendMany(ctx, []event.Event{
		event.NewSessionCreated(sess.ID, sess.Name, ""),
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to record creation event", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, sess.Info())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%q)\n", sess.ID, sess.Name)
	return nil
}

// SessionListOptions holds flags for session list.
type SessionListOptions struct {
	*RootOptions
	Search string
	Limit  int
}

func newSessionListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List sessions, most recently updated first",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Search, "search", "", "filter by name substring (case-insensitive)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of sessions to list")

	return cmd
}

func runSessionList(opts *SessionListOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	infos, err := e.manager.List(ctx, opts.Search, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, infos)
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s  %-30s  updated %s  policies %d\n",
			info.ID, info.Name, info.UpdatedAt.Format("2006-01-02 15:04"), info.PolicyCount)
	}
	return nil
}

func newSessionShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <session-id>",
		Short:         "Show a session's full state",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(rootOpts, cmd, args[0])
		},
	}
}

func runSessionShow(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.manager.Load(ctx, sessionID)
	if err != nil {
		if session.IsNotFound(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("session %s not found", sessionID))
		}
		return WrapExitError(ExitCommandError, "failed to load session", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, sess)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session: %s\n", sess.Name)
	fmt.Fprintf(w, "ID:      %s\n", sess.ID)
	fmt.Fprintf(w, "Created: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated: %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Requirements: %d chars\n", len(sess.RequirementsText))
	fmt.Fprintf(w, "Policies: %d\n", len(sess.Policies))
	for _, p := range sess.Policies {
		marker := " "
		if p.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %s (model %s, %s)\n", marker, p.ID, p.ModelUsed, p.GeneratedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "Validations: %d\n", len(sess.Validations))
	if sess.Notes != "" {
		fmt.Fprintf(w, "Notes:\n%s\n", sess.Notes)
	}
	return nil
}

func newSessionDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <session-id>",
		Short:         "Delete a session and all of its files",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionDelete(rootOpts, cmd, args[0])
		},
	}
}

func runSessionDelete(opts *RootOptions, cmd *cobra.Command, sessionID string) error {
	ctx := context.Background()

	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.manager.Delete(ctx, sessionID); err != nil {
		return WrapExitError(ExitCommandError, "failed to delete session", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, map[string]string{"deleted": sessionID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", sessionID)
	return nil
}
