package validate

import (
	"context"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// CUEValidator checks policies expressed as CUE documents without
// shelling out. It is the in-process alternative to CLIValidator for
// deployments whose rule language is CUE rather than an external
// checker's format.
type CUEValidator struct{}

// NewCUEValidator creates a CUEValidator.
func NewCUEValidator() *CUEValidator {
	return &CUEValidator{}
}

// Validate compiles the content and checks it for structural errors.
// Each CUE error becomes one entry in ErrorDetails.
func (v *CUEValidator) Validate(_ context.Context, content string) Result {
	ctx := cuecontext.New()
	value := ctx.CompileString(content)
	err := value.Err()
	if err == nil {
		err = value.Validate(cue.Concrete(false))
	}
	if err == nil {
		return Result{IsValid: true}
	}

	var details []string
	for _, e := range cueerrors.Errors(err) {
		details = append(details, e.Error())
	}
	return Result{
		IsValid:      false,
		ErrorMessage: strings.TrimSpace(cueerrors.Details(err, nil)),
		ErrorDetails: details,
	}
}
