package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultCLITimeout bounds a single external validator invocation.
const DefaultCLITimeout = 30 * time.Second

// Validator checks one policy text. Implementations never return a Go
// error; anything that goes wrong becomes a failed Result.
type Validator interface {
	Validate(ctx context.Context, content string) Result
}

// CLIValidator validates policies by handing them to an external
// rule-checking executable via a temp file. An empty combined output
// with a zero exit status means the policy is valid.
type CLIValidator struct {
	CLIPath string
	Timeout time.Duration
}

// NewCLIValidator creates a CLIValidator. timeout <= 0 uses the
// default.
func NewCLIValidator(cliPath string, timeout time.Duration) *CLIValidator {
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}
	return &CLIValidator{CLIPath: cliPath, Timeout: timeout}
}

// Validate writes content to a temp .polar file and runs
// "{cli} validate {file}". Timeouts and a missing binary are reported
// as failed results, never as process failures.
func (v *CLIValidator) Validate(ctx context.Context, content string) Result {
	tmp, err := os.CreateTemp("", "policy-*.polar")
	if err != nil {
		return failed(fmt.Sprintf("Validation error: %v", err))
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return failed(fmt.Sprintf("Validation error: %v", err))
	}
	if err := tmp.Close(); err != nil {
		return failed(fmt.Sprintf("Validation error: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.CLIPath, "validate", tmp.Name())
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return failed("Command timed out")
		}
		if errors.Is(err, exec.ErrNotFound) {
			return failed(fmt.Sprintf("Command not found: %s", v.CLIPath))
		}
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		return failed(msg)
	}
	return Result{IsValid: true}
}

func failed(msg string) Result {
	return Result{IsValid: false, ErrorMessage: msg, ErrorDetails: []string{msg}}
}
