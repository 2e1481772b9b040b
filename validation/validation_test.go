package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraints(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		value   any
		wantErr error
	}{
		{"min length short", "min_length[5]", "abc", ErrLengthMin},
		{"min length exact", "min_length[5]", "abcde", nil},
		{"min length counts runes", "min_length[3]", "äöü", nil},
		{"max length long", "max_length[3]", "abcd", ErrLengthMax},
		{"max length ok", "max_length[3]", "abc", nil},
		{"exact length wrong", "exact_length[2]", "abc", ErrLengthExact},
		{"exact length ok", "exact_length[3]", 123, nil},
		{"email ok", "valid_email", "a@example.com", nil},
		{"email with name", "valid_email", "Bob <a@example.com>", ErrNotValidEmail},
		{"email bad", "valid_email", "not-an-email", ErrNotValidEmail},
		{"url ok", "valid_url", "https://example.com/x", nil},
		{"url without scheme", "valid_url", "example.com", ErrNotValidURL},
		{"numeric ok", "numeric", "-12.5", nil},
		{"numeric number", "numeric", 42, nil},
		{"numeric bad", "numeric", "12a", ErrNotNumeric},
		{"integer ok", "integer", "+7", nil},
		{"integer float", "integer", "7.5", ErrNotInteger},
		{"alpha ok", "alpha", "abcXYZ", nil},
		{"alpha digits", "alpha", "abc1", ErrCharSetOnly},
		{"alpha numeric ok", "alpha_numeric", "abc123", nil},
		{"alpha numeric dash", "alpha_numeric", "abc-123", ErrCharSetOnly},
		{"alpha dash ok", "alpha_dash", "abc_1-2", nil},
		{"alpha dash space", "alpha_dash", "abc 12", ErrCharSetOnly},
		{"greater than ok", "greater_than[10]", 11, nil},
		{"greater than equal", "greater_than[10]", "10", ErrMustGt},
		{"greater than not numeric", "greater_than[10]", "ten", ErrNotNumeric},
		{"less than ok", "less_than[1.5]", 1.2, nil},
		{"less than bad", "less_than[1.5]", 2, ErrMustLt},
		{"in list ok", "in_list[red, green,blue]", "green", nil},
		{"in list bad", "in_list[red,green]", "pink", ErrNotOneOf},
		{"match ok", "match[ab*]", "abc", nil},
		{"match single", "match[a?c]", "abc", nil},
		{"match bad", "match[ab?]", "abcd", ErrNotMatch},
		{"blank skips checks", "min_length[5]|valid_email", "", nil},
		{"nil skips checks", "integer", nil, nil},
		{"required missing", "required", nil, ErrRequired},
		{"required blank", "required|min_length[1]", "   ", ErrRequired},
		{"required zero", "required", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := Rules{{Field: "f", Label: "Field", Rules: tt.rules}}
			err := rules.Validate(context.Background(), map[string]any{"f": tt.value})
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			var verr *Error
			require.ErrorAs(t, err, &verr)
			require.ErrorIs(t, err, ErrInvalid)
			require.Len(t, verr.Fields["f"], 1)
			assert.Contains(t, verr.Fields["f"][0], tt.wantErr.Error())
			assert.Contains(t, verr.Fields["f"][0], "Field")
		})
	}
}

func TestRules_Matches(t *testing.T) {
	rules := Rules{
		{Field: "password", Rules: "required|min_length[8]"},
		{Field: "confirm", Label: "Password confirmation", Rules: "required|matches[password]"},
	}
	require.NoError(t, rules.Validate(context.Background(), map[string]any{"password": "s3cret-pw", "confirm": "s3cret-pw"}))

	err := rules.Validate(context.Background(), map[string]any{"password": "short", "confirm": "other"})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"password length must be at least 8 characters"}, verr.Fields["password"])
	assert.Equal(t, []string{"Password confirmation does not match the password field"}, verr.Fields["confirm"])
	assert.Equal(t, "confirm: Password confirmation does not match the password field, password: password length must be at least 8 characters", err.Error())
}

func TestRules_CollectsAllFailures(t *testing.T) {
	rules := Rules{{Field: "code", Rules: "min_length[5]|numeric"}}
	err := rules.Validate(context.Background(), map[string]any{"code": "ab"})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields["code"], 2)
}

func TestRules_Malformed(t *testing.T) {
	for _, rule := range []string{"nope", "min_length[x]", "Required", "matches[]", "match[]"} {
		err := Rules{{Field: "f", Rules: rule}}.Validate(context.Background(), map[string]any{"f": "v"})
		require.Error(t, err, rule)
		assert.False(t, errors.Is(err, ErrInvalid), rule)
	}
}

func TestGroup(t *testing.T) {
	Define("signup", Rules{{Field: "email", Rules: "required|valid_email"}})

	require.NoError(t, Group("signup").Validate(context.Background(), map[string]any{"email": "a@b.io"}))
	require.ErrorIs(t, Group("signup").Validate(context.Background(), map[string]any{}), ErrInvalid)

	err := Group("missing").Validate(context.Background(), nil)
	require.ErrorContains(t, err, "not defined")
}

func TestTags(t *testing.T) {
	tags := Tags{"email": "required,email", "age": "omitempty,gte=0,lte=130"}

	require.NoError(t, tags.Validate(context.Background(), map[string]any{"email": "a@b.io", "age": 30}))
	require.NoError(t, tags.Validate(context.Background(), map[string]any{"email": "a@b.io"}))

	err := tags.Validate(context.Background(), map[string]any{"age": 200})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email is invalid (required)"}, verr.Fields["email"])
	assert.Equal(t, []string{"age must be lte 130"}, verr.Fields["age"])
}
