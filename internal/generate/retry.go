package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/polarsmith/internal/event"
	"github.com/roach88/polarsmith/internal/eventlog"
	"github.com/roach88/polarsmith/internal/session"
	"github.com/roach88/polarsmith/internal/validate"
)

// DefaultMaxRetries bounds validation-driven regeneration attempts.
// The first attempt is not a retry, so up to DefaultMaxRetries+1
// generation calls happen per workflow.
const DefaultMaxRetries = 3

// RetryResult is the outcome of one generate-and-validate workflow.
type RetryResult struct {
	Generation   Result
	Validation   *validate.Result
	RetryCount   int
	TotalTime    float64
	FinalSuccess bool
	ErrorContext []string
}

// Successful reports whether the workflow ended in a usable, accepted
// policy.
func (r RetryResult) Successful() bool {
	if !r.Generation.Successful() {
		return false
	}
	if r.Validation != nil {
		return r.Validation.IsValid
	}
	return r.FinalSuccess
}

// Runner orchestrates generation and validation with bounded retries.
// The event log is optional; when present, PolicyGenerated and
// ValidationCompleted events are appended as the workflow progresses.
type Runner struct {
	generator Generator
	validator *validate.Service
	log       *eventlog.Log
	logger    *slog.Logger

	maxRetries   int
	autoValidate bool
	now          func() time.Time

	mu      sync.Mutex
	metrics map[string]*Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxRetries overrides the retry bound.
func WithMaxRetries(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithAutoValidate toggles validation of freshly generated policies.
func WithAutoValidate(enabled bool) RunnerOption {
	return func(r *Runner) { r.autoValidate = enabled }
}

// WithRunnerLogger sets the structured logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner. log may be nil to skip event emission.
func NewRunner(generator Generator, validator *validate.Service, log *eventlog.Log, opts ...RunnerOption) *Runner {
	r := &Runner{
		generator:    generator,
		validator:    validator,
		log:          log,
		logger:       slog.Default(),
		maxRetries:   DefaultMaxRetries,
		autoValidate: true,
		now:          time.Now,
		metrics:      make(map[string]*Metrics),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateAndValidate runs the generate-validate-retry loop for one
// request. sink may be nil for non-streaming generation. Generation
// failures end the workflow immediately; validation failures are
// retried with accumulated error context until the bound is hit.
func (r *Runner) GenerateAndValidate(ctx context.Context, req Request, sess *session.Session, sink StreamSink) RetryResult {
	start := r.now()
	retryCount := 0
	var errorContext []string
	metrics := r.sessionMetrics(sess.ID)

	for retryCount <= r.maxRetries {
		genResult := r.generate(ctx, req, sink)

		r.mu.Lock()
		metrics.recordGeneration(genResult.GenerationTime)
		r.mu.Unlock()

		if !genResult.Successful() {
			r.logger.Error("policy generation failed",
				"session_id", sess.ID, "error", genResult.ErrorMessage)
			return RetryResult{
				Generation:   genResult,
				RetryCount:   retryCount,
				TotalTime:    r.now().Sub(start).Seconds(),
				ErrorContext: errorContext,
			}
		}

		policy := session.NewGeneratedPolicy(
			genResult.PolicyContent, genResult.ModelUsed, genResult.TokensUsed, genResult.GenerationTime)
		sess.AddPolicy(policy)
		r.appendEvent(ctx, event.NewPolicyGenerated(
			sess.ID, policy.ID, genResult.ModelUsed, genResult.TokensUsed, genResult.GenerationTime, ""))

		if !r.autoValidate {
			return RetryResult{
				Generation:   genResult,
				RetryCount:   retryCount,
				TotalTime:    r.now().Sub(start).Seconds(),
				FinalSuccess: true,
				ErrorContext: errorContext,
			}
		}

		vres := r.validator.Validate(ctx, validate.Request{
			SessionID: sess.ID,
			PolicyID:  policy.ID,
			Content:   policy.Content,
		})
		sess.AddValidation(session.NewValidationResult(
			policy.ID, vres.IsValid, vres.ErrorMessage, vres.ValidationTime))
		r.mu.Lock()
		metrics.recordValidation(vres.IsValid, vres.ValidationTime)
		if vres.IsValid && retryCount > 0 {
			metrics.creditRetrySuccess()
		}
		r.mu.Unlock()
		r.appendEvent(ctx, event.NewValidationCompleted(
			sess.ID, policy.ID, vres.IsValid, vres.ErrorMessage, vres.ValidationTime, ""))

		if vres.IsValid {
			r.logger.Info("policy generated and validated",
				"session_id", sess.ID, "policy_id", policy.ID, "retries", retryCount)
			return RetryResult{
				Generation:   genResult,
				Validation:   &vres,
				RetryCount:   retryCount,
				TotalTime:    r.now().Sub(start).Seconds(),
				FinalSuccess: true,
				ErrorContext: errorContext,
			}
		}

		errorContext = append(errorContext, errorLines(vres)...)
		r.logger.Warn("policy validation failed",
			"session_id", sess.ID, "attempt", retryCount+1, "error", vres.ErrorMessage)

		if retryCount >= r.maxRetries {
			return RetryResult{
				Generation:   genResult,
				Validation:   &vres,
				RetryCount:   retryCount,
				TotalTime:    r.now().Sub(start).Seconds(),
				ErrorContext: errorContext,
			}
		}

		req = r.retryRequest(req, sess, errorContext, retryCount)
		retryCount++
		r.mu.Lock()
		metrics.recordRetry()
		r.mu.Unlock()
	}

	// Unreachable with a sane bound, kept as a structured failure.
	return RetryResult{
		Generation:   Result{Success: false, ErrorMessage: "Maximum retry attempts exceeded"},
		RetryCount:   retryCount,
		TotalTime:    r.now().Sub(start).Seconds(),
		ErrorContext: errorContext,
	}
}

// ValidateExisting validates a policy already on the session and
// records the result on the session and in the event log.
func (r *Runner) ValidateExisting(ctx context.Context, sess *session.Session, policyID string) validate.Result {
	policy := sess.Policy(policyID)
	if policy == nil {
		msg := fmt.Sprintf("Policy %s not found", policyID)
		return validate.Result{IsValid: false, ErrorMessage: msg, ErrorDetails: []string{msg}}
	}

	vres := r.validator.Validate(ctx, validate.Request{
		SessionID: sess.ID,
		PolicyID:  policy.ID,
		Content:   policy.Content,
	})
	sess.AddValidation(session.NewValidationResult(
		policy.ID, vres.IsValid, vres.ErrorMessage, vres.ValidationTime))

	metrics := r.sessionMetrics(sess.ID)
	r.mu.Lock()
	metrics.recordValidation(vres.IsValid, vres.ValidationTime)
	r.mu.Unlock()

	r.appendEvent(ctx, event.NewValidationCompleted(
		sess.ID, policy.ID, vres.IsValid, vres.ErrorMessage, vres.ValidationTime, ""))
	return vres
}

// Metrics returns a copy of a session's workflow metrics.
func (r *Runner) Metrics(sessionID string) Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[sessionID]; ok {
		return *m
	}
	return Metrics{}
}

func (r *Runner) sessionMetrics(sessionID string) *Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[sessionID]
	if !ok {
		m = &Metrics{}
		r.metrics[sessionID] = m
	}
	return m
}

func (r *Runner) generate(ctx context.Context, req Request, sink StreamSink) Result {
	if sink != nil {
		return r.generator.GenerateStream(ctx, req, sink)
	}
	return r.generator.Generate(ctx, req)
}

func (r *Runner) retryRequest(prev Request, sess *session.Session, accumulated []string, retryCount int) Request {
	previousPolicy := ""
	if cur := sess.CurrentPolicy(); cur != nil {
		previousPolicy = cur.Content
	}
	retryCtx := RetryContext{
		OriginalRequirements: sess.RequirementsText,
		PreviousPolicy:       previousPolicy,
		ValidationErrors:     accumulated,
		RetryCount:           retryCount,
	}
	return Request{
		SessionID:        sess.ID,
		RequirementsText: sess.RequirementsText,
		Model:            prev.Model,
		RetryContext:     retryCtx.PromptContext(),
		PreviousErrors:   accumulated,
	}
}

// appendEvent logs an event without letting log failures derail the
// workflow.
func (r *Runner) appendEvent(ctx context.Context, ev event.Event) {
	if r.log == nil {
		return
	}
	if err := r.log.Append(ctx, ev); err != nil {
		r.logger.Warn("failed to append event", "event_type", ev.Type, "error", err)
	}
}

func errorLines(vres validate.Result) []string {
	if len(vres.ErrorDetails) > 0 {
		return vres.ErrorDetails
	}
	if vres.ErrorMessage != "" {
		return []string{vres.ErrorMessage}
	}
	return []string{"validation failed"}
}
