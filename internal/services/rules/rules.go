package rules

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule is a single compiled validation predicate. Validate returns nil for an
// acceptable value and an error whose message reads after the field name
// ("title can't be blank"). Rules other than presence accept a nil value:
// absence is only an error when the field is required.
type Rule interface {
	Name() string
	Validate(value interface{}) error
}

// PresenceRule rejects nil, empty and blank string values.
type PresenceRule struct{}

func (PresenceRule) Name() string { return "presence" }

func (PresenceRule) Validate(value interface{}) error {
	if value == nil {
		return errors.New("can't be blank")
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return errors.New("can't be blank")
	}
	return nil
}

// LengthRule bounds the character count of a string value.
type LengthRule struct {
	Min *int
	Max *int
}

func (LengthRule) Name() string { return "length" }

func (r LengthRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return errors.New("is not a string")
	}
	n := len([]rune(s))
	if r.Min != nil && n < *r.Min {
		return fmt.Errorf("is too short (minimum is %d characters)", *r.Min)
	}
	if r.Max != nil && n > *r.Max {
		return fmt.Errorf("is too long (maximum is %d characters)", *r.Max)
	}
	return nil
}

// FormatRule matches a string value against a regular expression.
type FormatRule struct {
	Pattern *regexp.Regexp
	Message string
}

func (FormatRule) Name() string { return "format" }

func (r FormatRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return errors.New("is not a string")
	}
	if !r.Pattern.MatchString(s) {
		if r.Message != "" {
			return errors.New(r.Message)
		}
		return errors.New("is invalid")
	}
	return nil
}

// NumericRule bounds a numeric value. OnlyInteger additionally rejects
// fractional values.
type NumericRule struct {
	Min         *float64
	Max         *float64
	EqualTo     *float64
	OtherThan   *float64
	OnlyInteger bool
	Odd         bool
	Even        bool
}

func (NumericRule) Name() string { return "numericality" }

func (r NumericRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	f, ok := toFloat(value)
	if !ok {
		return errors.New("is not a number")
	}
	if r.OnlyInteger && f != math.Trunc(f) {
		return errors.New("must be an integer")
	}
	if r.Min != nil && f < *r.Min {
		return fmt.Errorf("must be greater than or equal to %v", *r.Min)
	}
	if r.Max != nil && f > *r.Max {
		return fmt.Errorf("must be less than or equal to %v", *r.Max)
	}
	if r.EqualTo != nil && f != *r.EqualTo {
		return fmt.Errorf("must be equal to %v", *r.EqualTo)
	}
	if r.OtherThan != nil && f == *r.OtherThan {
		return fmt.Errorf("must be other than %v", *r.OtherThan)
	}
	if r.Odd || r.Even {
		if f != math.Trunc(f) {
			return errors.New("must be an integer")
		}
		odd := int64(f)%2 != 0
		if r.Odd && !odd {
			return errors.New("must be odd")
		}
		if r.Even && odd {
			return errors.New("must be even")
		}
	}
	return nil
}

// BooleanRule restricts the value to true or false.
type BooleanRule struct{}

func (BooleanRule) Name() string { return "boolean" }

func (BooleanRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(bool); !ok {
		return errors.New("is not included in the list")
	}
	return nil
}

// TimeRangeRule keeps a date or datetime value inside [Min, Max]. Values are
// parsed with the configured layouts; an unparsable value is an error while an
// absent bound is simply not checked.
type TimeRangeRule struct {
	Min     *time.Time
	Max     *time.Time
	Layouts []string
}

func (TimeRangeRule) Name() string { return "time_range" }

func (r TimeRangeRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case string:
		parsed, ok := parseTime(v, r.Layouts)
		if !ok {
			return errors.New("is not a valid date")
		}
		t = parsed
	default:
		return errors.New("is not a valid date")
	}
	if r.Min != nil && t.Before(*r.Min) {
		return fmt.Errorf("must be on or after %s", r.Min.Format(r.Layouts[0]))
	}
	if r.Max != nil && t.After(*r.Max) {
		return fmt.Errorf("must be on or before %s", r.Max.Format(r.Layouts[0]))
	}
	return nil
}

// InclusionRule restricts a value to a fixed set.
type InclusionRule struct {
	Values []string
}

func (InclusionRule) Name() string { return "inclusion" }

func (r InclusionRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	s := fmt.Sprintf("%v", value)
	for _, v := range r.Values {
		if v == s {
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(r.Values, ", "))
}

// JSONRule requires an object value and optionally checks each schema key's
// declared type ("string", "number", "boolean", "array", "object").
type JSONRule struct {
	Schema map[string]string
}

func (JSONRule) Name() string { return "json" }

func (r JSONRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		return errors.New("is not a JSON object")
	}
	for key, want := range r.Schema {
		got, present := obj[key]
		if !present {
			return fmt.Errorf("is missing key %q", key)
		}
		if !jsonTypeMatches(got, want) {
			return fmt.Errorf("key %q must be of type %s", key, want)
		}
	}
	return nil
}

// ArrayRule requires an array value and bounds its item count.
type ArrayRule struct {
	MinItems *int
	MaxItems *int
}

func (ArrayRule) Name() string { return "array" }

func (r ArrayRule) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	arr, ok := value.([]interface{})
	if !ok {
		return errors.New("is not an array")
	}
	if r.MinItems != nil && len(arr) < *r.MinItems {
		return fmt.Errorf("must have at least %d items", *r.MinItems)
	}
	if r.MaxItems != nil && len(arr) > *r.MaxItems {
		return fmt.Errorf("must have at most %d items", *r.MaxItems)
	}
	return nil
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func jsonTypeMatches(value interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := toFloat(value)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	}
	return true
}
