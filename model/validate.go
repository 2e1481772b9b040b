package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Validator checks the data passed to Insert and Update. A non-nil error
// fails the operation; the model wraps it with ErrValidation.
type Validator interface {
	Validate(ctx context.Context, data map[string]any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, data map[string]any) error

func (f ValidatorFunc) Validate(ctx context.Context, data map[string]any) error {
	return f(ctx, data)
}

// validate runs the model's rules unless validation is skipped by the model
// flag or by the per-call argument.
func (m *Model) validate(ctx context.Context, data map[string]any, skip []bool) error {
	if m.rules == nil || m.skip || lo.FirstOr(skip, false) {
		return nil
	}
	err := m.rules.Validate(ctx, data)
	if err == nil || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
