package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/polarsmith/internal/session"
	"github.com/roach88/polarsmith/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Session string
	Policy  string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a policy",
		Long: `Validate a policy file, or a policy stored in a session.

Results are cached per session and content hash, so repeated
validations of unchanged content are cheap. The validation result is
recorded on the session when --session and --policy are given.

Exit codes:
  0 - Policy is valid
  1 - Policy failed validation
  2 - Command error (file or session not found, etc.)

Examples:
  polarsmith validate policy.polar
  polarsmith validate --session 0195f3a0-... --policy 0195f3a1-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runValidate(opts, cmd, file)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session whose policy to validate")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "policy ID within the session")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command, file string) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	var req validate.Request
	switch {
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read policy file", err)
		}
		req = validate.Request{SessionID: opts.Session, Content: string(content)}
	case opts.Session != "" && opts.Policy != "":
		sess, err := e.manager.Load(ctx, opts.Session)
		if err != nil {
			if session.IsNotFound(err) {
				return NewExitError(ExitCommandError, fmt.Sprintf("session %s not found", opts.Session))
			}
			return WrapExitError(ExitCommandError, "failed to load session", err)
		}
		pol := sess.Policy(opts.Policy)
		if pol == nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("policy %s not found in session %s", opts.Policy, opts.Session))
		}
		req = validate.Request{SessionID: sess.ID, PolicyID: pol.ID, Content: pol.Content}
	default:
		return NewExitError(ExitCommandError, "either a policy file or --session and --policy are required")
	}

	result := e.validation().Validate(ctx, req)

	if opts.Format == "json" {
		if !result.IsValid {
			if err := writeJSONError(cmd, "E_VALIDATION", result.ErrorMessage, result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "policy failed validation")
		}
		return writeJSON(cmd, result)
	}

	w := cmd.OutOrStdout()
	if result.IsValid {
		fmt.Fprintf(w, "Policy is valid (%.3fs)\n", result.ValidationTime)
		return nil
	}
	fmt.Fprintf(w, "Policy failed validation: %s\n", result.ErrorMessage)
	for _, detail := range result.ErrorDetails {
		fmt.Fprintf(w, "  - %s\n", detail)
	}
	return NewExitError(ExitFailure, "policy failed validation")
}
