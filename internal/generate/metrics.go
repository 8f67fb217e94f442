package generate

// Metrics tracks generation and validation activity for one session.
type Metrics struct {
	TotalGenerations      int     `json:"total_generations"`
	SuccessfulValidations int     `json:"successful_validations"`
	FailedValidations     int     `json:"failed_validations"`
	TotalRetries          int     `json:"total_retries"`
	SuccessfulRetries     int     `json:"successful_retries"`
	AverageGenerationTime float64 `json:"average_generation_time"`
	AverageValidationTime float64 `json:"average_validation_time"`
	SuccessRate           float64 `json:"success_rate"`
	RetrySuccessRate      float64 `json:"retry_success_rate"`
}

func (m *Metrics) recordGeneration(generationTime float64) {
	m.TotalGenerations++
	m.AverageGenerationTime += (generationTime - m.AverageGenerationTime) / float64(m.TotalGenerations)
}

func (m *Metrics) recordValidation(isValid bool, validationTime float64) {
	if isValid {
		m.SuccessfulValidations++
	} else {
		m.FailedValidations++
	}
	total := m.SuccessfulValidations + m.FailedValidations
	m.AverageValidationTime += (validationTime - m.AverageValidationTime) / float64(total)
	m.SuccessRate = float64(m.SuccessfulValidations) / float64(total)
}

func (m *Metrics) recordRetry() {
	m.TotalRetries++
	m.RetrySuccessRate = float64(m.SuccessfulRetries) / float64(m.TotalRetries)
}

// creditRetrySuccess marks an already-counted retry as having produced
// a valid policy.
func (m *Metrics) creditRetrySuccess() {
	m.SuccessfulRetries++
	if m.TotalRetries > 0 {
		m.RetrySuccessRate = float64(m.SuccessfulRetries) / float64(m.TotalRetries)
	}
}
