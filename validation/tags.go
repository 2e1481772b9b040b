package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// Tags maps fields to go-playground/validator tag expressions, e.g.
// {"email": "required,email", "age": "gte=0,lte=130"}.
type Tags map[string]string

func (t Tags) Validate(ctx context.Context, data map[string]any) error {
	rules := lo.MapValues(t, func(tag string, _ string) any { return tag })
	verr := &Error{}
	// absent fields are checked as nil, so "required" catches them
	for field, res := range validate.ValidateMapCtx(ctx, data, rules) {
		err, ok := res.(error)
		if !ok {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.add(field, err.Error())
			continue
		}
		for _, fe := range fieldErrs {
			msg := fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
			if fe.Param() != "" {
				msg = fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
			}
			verr.add(field, msg)
		}
	}
	return verr.orNil()
}
