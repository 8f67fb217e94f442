package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/polarsmith/internal/session"
)

func TestMetricsRunningAverages(t *testing.T) {
	var m Metrics

	m.recordGeneration(2.0)
	m.recordGeneration(4.0)
	assert.Equal(t, 2, m.TotalGenerations)
	assert.InDelta(t, 3.0, m.AverageGenerationTime, 1e-9)

	m.recordValidation(true, 1.0)
	m.recordValidation(false, 3.0)
	m.recordValidation(true, 2.0)
	assert.Equal(t, 2, m.SuccessfulValidations)
	assert.Equal(t, 1, m.FailedValidations)
	assert.InDelta(t, 2.0, m.AverageValidationTime, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 1e-9)
}

func TestMetricsRetryAccounting(t *testing.T) {
	var m Metrics

	m.recordRetry()
	m.recordRetry()
	assert.Equal(t, 2, m.TotalRetries)
	assert.Zero(t, m.SuccessfulRetries)
	assert.Zero(t, m.RetrySuccessRate)

	m.creditRetrySuccess()
	assert.Equal(t, 1, m.SuccessfulRetries)
	assert.InDelta(t, 0.5, m.RetrySuccessRate, 1e-9)
}

func TestMetricsRetrySuccessCreditedByRunner(t *testing.T) {
	gen := &fakeGenerator{}
	val := &scriptedValidator{validAfter: 1}
	r, _ := newTestRunner(t, gen, val)
	sess := session.New("Persistent")

	result := r.GenerateAndValidate(context.Background(), Request{SessionID: sess.ID}, sess, nil)
	assert.True(t, result.Successful())

	m := r.Metrics(sess.ID)
	assert.Equal(t, 1, m.TotalRetries)
	assert.Equal(t, 1, m.SuccessfulRetries)
	assert.InDelta(t, 1.0, m.RetrySuccessRate, 1e-9)
}
