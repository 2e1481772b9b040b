package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cast"
	"github.com/tidwall/match"
)

var (
	ErrRequired      = errors.New("is required")
	ErrLengthMin     = errors.New("length must be at least")
	ErrLengthMax     = errors.New("length must be at most")
	ErrLengthExact   = errors.New("length must be exactly")
	ErrNotValidEmail = errors.New("must be a valid email address")
	ErrNotValidURL   = errors.New("must be a valid url")
	ErrNotNumeric    = errors.New("must contain only numbers")
	ErrNotInteger    = errors.New("must contain an integer")
	ErrCharSetOnly   = errors.New("can only contain")
	ErrMustGt        = errors.New("must be greater than")
	ErrMustLt        = errors.New("must be less than")
	ErrNotOneOf      = errors.New("must be one of")
	ErrNotMatches    = errors.New("does not match")
	ErrNotMatch      = errors.New("does not match pattern")
)

var (
	alphaCharSet        = string(lo.LettersCharset)
	alphaNumericCharSet = string(lo.AlphanumericCharset)
	alphaDashCharSet    = alphaNumericCharSet + "_-"

	numericRe = regexp.MustCompile(`^[\-+]?[0-9]*\.?[0-9]+$`)
	integerRe = regexp.MustCompile(`^[\-+]?[0-9]+$`)
)

// check validates the string form of one field. data is the whole record,
// for rules comparing fields.
type check func(str string, data map[string]any) error

// factory builds a check from the rule parameter, the part between brackets.
type factory func(param string) (check, error)

var constraints = map[string]factory{
	"min_length":    lengthRule(ErrLengthMin, func(n, want int) bool { return n >= want }),
	"max_length":    lengthRule(ErrLengthMax, func(n, want int) bool { return n <= want }),
	"exact_length":  lengthRule(ErrLengthExact, func(n, want int) bool { return n == want }),
	"valid_email":   noParam(validEmail),
	"valid_url":     noParam(validURL),
	"numeric":       noParam(regexRule(numericRe, ErrNotNumeric)),
	"integer":       noParam(regexRule(integerRe, ErrNotInteger)),
	"alpha":         noParam(charSetOnly(alphaCharSet, "alphabetical characters")),
	"alpha_numeric": noParam(charSetOnly(alphaNumericCharSet, "alpha-numeric characters")),
	"alpha_dash":    noParam(charSetOnly(alphaDashCharSet, "alpha-numeric characters, underscores and dashes")),
	"greater_than":  compareRule(ErrMustGt, func(v, limit float64) bool { return v > limit }),
	"less_than":     compareRule(ErrMustLt, func(v, limit float64) bool { return v < limit }),
	"in_list":       inList,
	"matches":       matches,
	"match":         matchPattern,
}

func noParam(c check) factory {
	return func(string) (check, error) { return c, nil }
}

func lengthRule(sentinel error, ok func(n, want int) bool) factory {
	return func(param string) (check, error) {
		want, err := cast.ToIntE(param)
		if err != nil {
			return nil, fmt.Errorf("invalid length %q: %w", param, err)
		}
		return func(str string, _ map[string]any) error {
			return lo.Ternary(!ok(utf8.RuneCountInString(str), want), fmt.Errorf("%w %d characters", sentinel, want), nil)
		}, nil
	}
}

func compareRule(sentinel error, ok func(v, limit float64) bool) factory {
	return func(param string) (check, error) {
		limit, err := cast.ToFloat64E(param)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", param, err)
		}
		return func(str string, _ map[string]any) error {
			v, err := cast.ToFloat64E(str)
			if err != nil || !numericRe.MatchString(str) {
				return ErrNotNumeric
			}
			return lo.Ternary(!ok(v, limit), fmt.Errorf("%w %s", sentinel, param), nil)
		}, nil
	}
}

func regexRule(re *regexp.Regexp, sentinel error) check {
	return func(str string, _ map[string]any) error {
		return lo.Ternary(!re.MatchString(str), sentinel, nil)
	}
}

func charSetOnly(chars, name string) check {
	return func(str string, _ map[string]any) error {
		for _, r := range str {
			if !strings.ContainsRune(chars, r) {
				return fmt.Errorf("%w %s", ErrCharSetOnly, name)
			}
		}
		return nil
	}
}

func validEmail(str string, _ map[string]any) error {
	rs := mo.TupleToResult[*mail.Address](mail.ParseAddress(str))
	return lo.Ternary(rs.IsError() || rs.MustGet().Address != str, ErrNotValidEmail, nil)
}

func validURL(str string, _ map[string]any) error {
	rs := mo.TupleToResult[*url.URL](url.Parse(str))
	errRs := rs.IsError() || rs.MustGet().Scheme == "" || rs.MustGet().Host == ""
	return lo.Ternary(errRs, ErrNotValidURL, nil)
}

func inList(param string) (check, error) {
	allowed := lo.Map(strings.Split(param, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	return func(str string, _ map[string]any) error {
		return lo.Ternary(!lo.Contains(allowed, str), fmt.Errorf("%w: %s", ErrNotOneOf, strings.Join(allowed, ", ")), nil)
	}, nil
}

func matches(field string) (check, error) {
	if field == "" {
		return nil, errors.New("matches needs a field name")
	}
	return func(str string, data map[string]any) error {
		return lo.Ternary(str != cast.ToString(data[field]), fmt.Errorf("%w the %s field", ErrNotMatches, field), nil)
	}, nil
}

// matchPattern accepts wildcard patterns: `*` matches any sequence of
// characters and `?` a single character.
func matchPattern(pattern string) (check, error) {
	if pattern == "" {
		return nil, errors.New("match needs a pattern: `?` stands for one character, `*` stands for any number of characters")
	}
	return func(str string, _ map[string]any) error {
		return lo.Ternary(!match.Match(str, pattern), fmt.Errorf("%w %s", ErrNotMatch, pattern), nil)
	}, nil
}
