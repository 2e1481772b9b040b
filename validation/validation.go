// Package validation checks record data before it's written. Rules are
// declared CodeIgniter style, as pipe separated rule strings per field:
//
//	validation.Rules{
//		{Field: "name", Label: "Name", Rules: "required|min_length[3]|alpha_dash"},
//		{Field: "email", Label: "Email", Rules: "required|valid_email"},
//	}
//
// Rules, Group and Tags all implement model.Validator.
package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("invalid data")

// Error lists the failed checks per field.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	keys := lo.Keys(e.Fields)
	slices.Sort(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; "))
	}), ", ")
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

func (e *Error) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// orNil returns e when it holds at least one failure.
func (e *Error) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Rule declares the checks of one field. Label names the field in messages
// and defaults to Field.
type Rule struct {
	Field string `mapstructure:"field" yaml:"field"`
	Label string `mapstructure:"label" yaml:"label"`
	Rules string `mapstructure:"rules" yaml:"rules"`
}

// Rules is a rule array checked field by field.
type Rules []Rule

var ruleRe = regexp.MustCompile(`^([a-z_]+)(?:\[(.*)\])?$`)

type compiledRule struct {
	field    string
	label    string
	required bool
	checks   []check
}

func compile(r Rule) (compiledRule, error) {
	c := compiledRule{field: r.Field, label: lo.Ternary(r.Label == "", r.Field, r.Label)}
	for _, part := range strings.Split(r.Rules, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := ruleRe.FindStringSubmatch(part)
		if m == nil {
			return c, fmt.Errorf("field %s: malformed rule %q", r.Field, part)
		}
		if m[1] == "required" {
			c.required = true
			continue
		}
		f, ok := constraints[m[1]]
		if !ok {
			return c, fmt.Errorf("field %s: unknown rule %q", r.Field, m[1])
		}
		chk, err := f(m[2])
		if err != nil {
			return c, fmt.Errorf("field %s: rule %s: %w", r.Field, m[1], err)
		}
		c.checks = append(c.checks, chk)
	}
	return c, nil
}

// blank reports whether v counts as "no value": absent, nil or whitespace only.
func blank(v any) bool {
	if v == nil {
		return true
	}
	s, err := cast.ToStringE(v)
	return err == nil && strings.TrimSpace(s) == ""
}

// Validate checks data against every rule. Fields that are blank and not
// required skip the remaining checks. Malformed rules are reported as plain
// errors, failed checks as *Error.
func (rs Rules) Validate(_ context.Context, data map[string]any) error {
	verr := &Error{}
	for _, r := range rs {
		c, err := compile(r)
		if err != nil {
			return err
		}
		v := data[c.field]
		if blank(v) {
			if c.required {
				verr.add(c.field, fmt.Sprintf("%s %s", c.label, ErrRequired))
			}
			continue
		}
		str, err := cast.ToStringE(v)
		if err != nil {
			verr.add(c.field, fmt.Sprintf("%s has unsupported type %T", c.label, v))
			continue
		}
		for _, chk := range c.checks {
			if err := chk(str, data); err != nil {
				verr.add(c.field, fmt.Sprintf("%s %s", c.label, err))
			}
		}
	}
	return verr.orNil()
}

var (
	groupsMu sync.RWMutex
	groups   = map[string]Rules{}
)

// Define registers a named rule set for use with Group.
func Define(name string, rules Rules) {
	groupsMu.Lock()
	defer groupsMu.Unlock()
	groups[name] = rules
}

// Group refers to a rule set registered with Define.
type Group string

func (g Group) Validate(ctx context.Context, data map[string]any) error {
	groupsMu.RLock()
	rules, ok := groups[string(g)]
	groupsMu.RUnlock()
	if !ok {
		return fmt.Errorf("rule group %q is not defined", string(g))
	}
	return rules.Validate(ctx, data)
}
