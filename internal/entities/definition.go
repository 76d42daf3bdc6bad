package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Supported field types for the core column set plus the extended variants
// accepted by the validator compiler.
var SupportedFieldTypes = []string{
	"string", "text", "integer", "float", "decimal",
	"datetime", "boolean", "json",
	"date", "email", "url", "enum", "array",
}

// Supported relationship kinds.
const (
	RelationshipBelongsTo           = "belongs_to"
	RelationshipHasMany             = "has_many"
	RelationshipHasOne              = "has_one"
	RelationshipHasAndBelongsToMany = "has_and_belongs_to_many"
)

var SupportedRelationshipTypes = []string{
	RelationshipBelongsTo,
	RelationshipHasMany,
	RelationshipHasOne,
	RelationshipHasAndBelongsToMany,
}

// SystemColumns are owned by the engine and never touched by structural updates.
var SystemColumns = []string{"id", "organization_id", "created_at", "updated_at"}

// EntityDefinition is a tenant-declared resource type. It owns its field and
// relationship definitions; deleting the definition cascades to both.
type EntityDefinition struct {
	ID             int64
	OrganizationID int64
	Name           string
	Description    string
	Metadata       map[string]interface{}
	Fields         []*FieldDefinition
	Relationships  []*RelationshipDefinition
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FieldDefinition declares a single typed column on an entity.
type FieldDefinition struct {
	ID           int64
	DefinitionID int64
	Name         string
	Type         string
	Options      map[string]interface{}
}

// RelationshipDefinition declares a link from an entity to another entity in
// the same tenant.
type RelationshipDefinition struct {
	ID           int64
	DefinitionID int64
	Name         string
	Kind         string
	TargetModel  string
	Options      map[string]interface{}
}

// TableName returns the backing table name for the definition. It is a pure
// function of (tenant id, entity name) and is never stored, so the catalog and
// the live table can not drift apart.
func (d *EntityDefinition) TableName() string {
	return TableNameFor(d.OrganizationID, d.Name)
}

// TypeName returns the generated type name under which the registry handle is
// published.
func (d *EntityDefinition) TypeName() string {
	return fmt.Sprintf("Org%d%s", d.OrganizationID, d.Name)
}

// ResourceName returns the pluralized snake_case form of the entity name used
// in table names and route paths.
func (d *EntityDefinition) ResourceName() string {
	return inflection.Plural(Underscore(d.Name))
}

// FieldNames returns the declared field names in declaration order.
func (d *EntityDefinition) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field returns the field definition with the given name, or nil.
func (d *EntityDefinition) Field(name string) *FieldDefinition {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// TableNameFor derives the backing table name for an entity name in a tenant.
func TableNameFor(organizationID int64, name string) string {
	return fmt.Sprintf("org_%d_%s", organizationID, inflection.Plural(Underscore(name)))
}

// ForeignKeyColumn returns the foreign key column name that rows referencing
// this entity carry, e.g. "project_id" for entity "Project".
func (d *EntityDefinition) ForeignKeyColumn() string {
	return Underscore(d.Name) + "_id"
}

// IsSupportedFieldType reports whether t is in the supported field type set.
func IsSupportedFieldType(t string) bool {
	for _, s := range SupportedFieldTypes {
		if s == t {
			return true
		}
	}
	return false
}

// IsSupportedRelationshipType reports whether t is in the supported
// relationship kind set.
func IsSupportedRelationshipType(t string) bool {
	for _, s := range SupportedRelationshipTypes {
		if s == t {
			return true
		}
	}
	return false
}

// IsSystemColumn reports whether name is one of the engine-owned columns.
func IsSystemColumn(name string) bool {
	for _, s := range SystemColumns {
		if s == name {
			return true
		}
	}
	return false
}

// Underscore converts a PascalCase or camelCase name to snake_case.
func Underscore(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OptionBool reads a boolean option, accepting JSON booleans and the strings
// "true"/"false".
func OptionBool(options map[string]interface{}, key string) bool {
	if options == nil {
		return false
	}
	switch v := options[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// OptionString reads a string option, returning "" when absent.
func OptionString(options map[string]interface{}, key string) string {
	if options == nil {
		return ""
	}
	if s, ok := options[key].(string); ok {
		return s
	}
	return ""
}

// OptionFloat reads a numeric option. JSON numbers decode as float64; integer
// and string forms are accepted as well.
func OptionFloat(options map[string]interface{}, key string) (float64, bool) {
	if options == nil {
		return 0, false
	}
	switch v := options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// OptionInt reads an integer option using the same coercions as OptionFloat.
func OptionInt(options map[string]interface{}, key string) (int, bool) {
	f, ok := OptionFloat(options, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// OptionStrings reads a list option such as enum "values".
func OptionStrings(options map[string]interface{}, key string) []string {
	if options == nil {
		return nil
	}
	switch v := options[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return nil
}
