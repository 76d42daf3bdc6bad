package rules

import (
	"regexp"
	"time"

	"github.com/protean-labs/protean/internal/entities"
)

const (
	dateLayout = "2006-01-02"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)
	urlPattern   = regexp.MustCompile(`^https?://[^\s]+$`)

	datetimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", dateLayout}
	dateLayouts     = []string{dateLayout}
)

// Compile turns a field's declared type and constraint options into an
// ordered, executable rule list. Option keys outside the fixed vocabulary are
// ignored. Unparsable date/datetime bounds are skipped rather than rejected,
// and an invalid pattern expression is dropped the same way.
func Compile(field *entities.FieldDefinition) []Rule {
	var compiled []Rule
	options := field.Options

	if entities.OptionBool(options, "required") {
		compiled = append(compiled, PresenceRule{})
	}

	switch field.Type {
	case "string", "text":
		if rule, ok := lengthRule(options, "min_length", "max_length"); ok {
			compiled = append(compiled, rule)
		}
		if pattern := entities.OptionString(options, "pattern"); pattern != "" {
			if re, err := regexp.Compile(pattern); err == nil {
				compiled = append(compiled, FormatRule{Pattern: re})
			}
		}
	case "integer", "float", "decimal":
		compiled = append(compiled, numericRule(field.Type, options))
	case "boolean":
		compiled = append(compiled, BooleanRule{})
	case "date":
		if rule, ok := timeRangeRule(options, "min_date", "max_date", dateLayouts); ok {
			compiled = append(compiled, rule)
		}
	case "datetime":
		if rule, ok := timeRangeRule(options, "min_datetime", "max_datetime", datetimeLayouts); ok {
			compiled = append(compiled, rule)
		}
	case "email":
		compiled = append(compiled, FormatRule{Pattern: emailPattern, Message: "must be a valid email address"})
	case "url":
		compiled = append(compiled, FormatRule{Pattern: urlPattern, Message: "must be a valid URL"})
	case "enum":
		if values := entities.OptionStrings(options, "values"); len(values) > 0 {
			compiled = append(compiled, InclusionRule{Values: values})
		}
	case "json":
		compiled = append(compiled, JSONRule{Schema: jsonSchema(options)})
	case "array":
		rule := ArrayRule{}
		if min, ok := entities.OptionInt(options, "min_items"); ok {
			rule.MinItems = &min
		}
		if max, ok := entities.OptionInt(options, "max_items"); ok {
			rule.MaxItems = &max
		}
		compiled = append(compiled, rule)
	}

	return compiled
}

func lengthRule(options map[string]interface{}, minKey, maxKey string) (LengthRule, bool) {
	rule := LengthRule{}
	if min, ok := entities.OptionInt(options, minKey); ok {
		rule.Min = &min
	}
	if max, ok := entities.OptionInt(options, maxKey); ok {
		rule.Max = &max
	}
	return rule, rule.Min != nil || rule.Max != nil
}

func numericRule(fieldType string, options map[string]interface{}) NumericRule {
	rule := NumericRule{OnlyInteger: fieldType == "integer"}
	if min, ok := entities.OptionFloat(options, "min"); ok {
		rule.Min = &min
	}
	if max, ok := entities.OptionFloat(options, "max"); ok {
		rule.Max = &max
	}
	if eq, ok := entities.OptionFloat(options, "equal_to"); ok {
		rule.EqualTo = &eq
	}
	if other, ok := entities.OptionFloat(options, "other_than"); ok {
		rule.OtherThan = &other
	}
	rule.Odd = entities.OptionBool(options, "odd")
	rule.Even = entities.OptionBool(options, "even")
	return rule
}

func timeRangeRule(options map[string]interface{}, minKey, maxKey string, layouts []string) (TimeRangeRule, bool) {
	rule := TimeRangeRule{Layouts: layouts}
	// An unparsable bound is skipped, not an error.
	if raw := entities.OptionString(options, minKey); raw != "" {
		if t, ok := parseTime(raw, layouts); ok {
			rule.Min = &t
		}
	}
	if raw := entities.OptionString(options, maxKey); raw != "" {
		if t, ok := parseTime(raw, layouts); ok {
			rule.Max = &t
		}
	}
	return rule, rule.Min != nil || rule.Max != nil
}

func jsonSchema(options map[string]interface{}) map[string]string {
	raw, ok := options["schema"].(map[string]interface{})
	if !ok {
		return nil
	}
	schema := make(map[string]string, len(raw))
	for key, value := range raw {
		if s, ok := value.(string); ok {
			schema[key] = s
		}
	}
	if len(schema) == 0 {
		return nil
	}
	return schema
}
