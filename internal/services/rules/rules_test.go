package rules

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func intPtr(i int) *int             { return &i }
func floatPtr(f float64) *float64   { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func TestPresenceRule(t *testing.T) {
	rule := PresenceRule{}
	if err := rule.Validate(nil); err == nil {
		t.Error("expected error for nil")
	}
	if err := rule.Validate("   "); err == nil {
		t.Error("expected error for blank string")
	}
	if err := rule.Validate("hello"); err != nil {
		t.Errorf("Validate(hello) = %v, want nil", err)
	}
	if err := rule.Validate(0); err != nil {
		t.Errorf("Validate(0) = %v, want nil", err)
	}
}

func TestLengthRule(t *testing.T) {
	rule := LengthRule{Min: intPtr(2), Max: intPtr(5)}
	if err := rule.Validate("a"); err == nil || !strings.Contains(err.Error(), "too short") {
		t.Errorf("expected too short, got %v", err)
	}
	if err := rule.Validate("abcdef"); err == nil || !strings.Contains(err.Error(), "too long") {
		t.Errorf("expected too long, got %v", err)
	}
	if err := rule.Validate("abc"); err != nil {
		t.Errorf("Validate(abc) = %v, want nil", err)
	}
	// Absent value passes; presence is a separate rule.
	if err := rule.Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v, want nil", err)
	}
}

func TestFormatRule(t *testing.T) {
	rule := FormatRule{Pattern: regexp.MustCompile(`^[A-Z]+$`)}
	if err := rule.Validate("abc"); err == nil {
		t.Error("expected error for non-matching value")
	}
	if err := rule.Validate("ABC"); err != nil {
		t.Errorf("Validate(ABC) = %v, want nil", err)
	}

	withMessage := FormatRule{Pattern: regexp.MustCompile(`^x$`), Message: "must be x"}
	if err := withMessage.Validate("y"); err == nil || err.Error() != "must be x" {
		t.Errorf("expected custom message, got %v", err)
	}
}

func TestNumericRule(t *testing.T) {
	rule := NumericRule{Min: floatPtr(1), Max: floatPtr(10)}
	if err := rule.Validate(0.5); err == nil {
		t.Error("expected error below minimum")
	}
	if err := rule.Validate(11); err == nil {
		t.Error("expected error above maximum")
	}
	if err := rule.Validate(5); err != nil {
		t.Errorf("Validate(5) = %v, want nil", err)
	}
	if err := rule.Validate("not a number"); err == nil {
		t.Error("expected error for non-numeric value")
	}

	integer := NumericRule{OnlyInteger: true}
	if err := integer.Validate(1.5); err == nil {
		t.Error("expected error for fractional value")
	}
	if err := integer.Validate(float64(3)); err != nil {
		t.Errorf("Validate(3) = %v, want nil", err)
	}

	odd := NumericRule{Odd: true}
	if err := odd.Validate(float64(2)); err == nil {
		t.Error("expected error for even value")
	}
	if err := odd.Validate(float64(3)); err != nil {
		t.Errorf("Validate(3) = %v, want nil", err)
	}
}

func TestBooleanRule(t *testing.T) {
	rule := BooleanRule{}
	if err := rule.Validate(true); err != nil {
		t.Errorf("Validate(true) = %v, want nil", err)
	}
	if err := rule.Validate("true"); err == nil {
		t.Error("expected error for string value")
	}
}

func TestTimeRangeRule(t *testing.T) {
	min := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	rule := TimeRangeRule{Min: timePtr(min), Max: timePtr(max), Layouts: []string{"2006-01-02"}}

	if err := rule.Validate("2023-06-01"); err == nil {
		t.Error("expected error before minimum")
	}
	if err := rule.Validate("2025-06-01"); err == nil {
		t.Error("expected error after maximum")
	}
	if err := rule.Validate("2024-06-01"); err != nil {
		t.Errorf("Validate(2024-06-01) = %v, want nil", err)
	}
	if err := rule.Validate("not a date"); err == nil {
		t.Error("expected error for unparsable value")
	}
}

func TestInclusionRule(t *testing.T) {
	rule := InclusionRule{Values: []string{"draft", "published"}}
	if err := rule.Validate("draft"); err != nil {
		t.Errorf("Validate(draft) = %v, want nil", err)
	}
	err := rule.Validate("archived")
	if err == nil || !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("expected inclusion error, got %v", err)
	}
}

func TestJSONRule(t *testing.T) {
	rule := JSONRule{Schema: map[string]string{"count": "number", "label": "string"}}
	if err := rule.Validate(map[string]interface{}{"count": 3.0, "label": "x"}); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := rule.Validate(map[string]interface{}{"count": "three", "label": "x"}); err == nil {
		t.Error("expected type mismatch error")
	}
	if err := rule.Validate(map[string]interface{}{"label": "x"}); err == nil {
		t.Error("expected missing key error")
	}
	if err := rule.Validate([]interface{}{1, 2}); err == nil {
		t.Error("expected error for non-object value")
	}
}

func TestArrayRule(t *testing.T) {
	rule := ArrayRule{MinItems: intPtr(1), MaxItems: intPtr(2)}
	if err := rule.Validate([]interface{}{}); err == nil {
		t.Error("expected error below minimum items")
	}
	if err := rule.Validate([]interface{}{1, 2, 3}); err == nil {
		t.Error("expected error above maximum items")
	}
	if err := rule.Validate([]interface{}{1}); err != nil {
		t.Errorf("Validate([1]) = %v, want nil", err)
	}
	if err := rule.Validate("not an array"); err == nil {
		t.Error("expected error for non-array value")
	}
}
