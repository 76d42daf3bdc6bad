package schema

import (
	"context"
	"regexp"

	"github.com/protean-labs/protean/internal/entities"
)

var (
	entityNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// DefinitionLookup resolves entity names within a tenant. Satisfied by the
// definition repository.
type DefinitionLookup interface {
	ExistsByName(ctx context.Context, organizationID int64, name string) (bool, error)
	ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.EntityDefinition, error)
}

// Validator checks a proposed definition against the identifier grammar, the
// supported type sets, and cross-entity reference integrity. It has no side
// effects and runs to completion before any DDL or catalog write.
type Validator struct {
	definitions DefinitionLookup
}

// NewValidator creates a new Validator
func NewValidator(definitions DefinitionLookup) *Validator {
	return &Validator{definitions: definitions}
}

// Validate returns nil or a ValidationError naming the first violated rule.
func (v *Validator) Validate(ctx context.Context, def *entities.EntityDefinition) error {
	if err := v.validateBasicAttributes(def); err != nil {
		return err
	}
	if err := v.validateTableName(ctx, def); err != nil {
		return err
	}
	if err := v.validateFields(def); err != nil {
		return err
	}
	return v.validateRelationships(ctx, def)
}

// validateTableName rejects a name whose derived table collides with another
// model's table. Distinct names can pluralize to the same table ("Person" and
// "People" both map to org_N_people); without this check the second generate
// would silently alias the first model's table.
func (v *Validator) validateTableName(ctx context.Context, def *entities.EntityDefinition) error {
	existing, err := v.definitions.ListByOrganization(ctx, def.OrganizationID)
	if err != nil {
		return err
	}
	table := def.TableName()
	for _, other := range existing {
		if other.Name == def.Name {
			// Same-name duplication is reported separately.
			continue
		}
		if other.TableName() == table {
			return entities.NewValidationError("model %s conflicts with model %s: both map to table %s", def.Name, other.Name, table)
		}
	}
	return nil
}

func (v *Validator) validateBasicAttributes(def *entities.EntityDefinition) error {
	if def.Name == "" {
		return entities.NewValidationError("model name cannot be blank")
	}
	if def.OrganizationID <= 0 {
		return entities.NewValidationError("organization id cannot be blank")
	}
	if !entityNamePattern.MatchString(def.Name) {
		return entities.NewValidationError("invalid model name format: %s (must start with an uppercase letter and contain only letters and numbers)", def.Name)
	}
	return nil
}

func (v *Validator) validateFields(def *entities.EntityDefinition) error {
	seen := make(map[string]bool)
	for _, field := range def.Fields {
		if !entities.IsSupportedFieldType(field.Type) {
			return entities.NewValidationError("unsupported field type: %s (field: %s)", field.Type, field.Name)
		}
		if field.Name == "" {
			return entities.NewValidationError("field name cannot be blank")
		}
		if !identifierPattern.MatchString(field.Name) {
			return entities.NewValidationError("invalid field name format: %s", field.Name)
		}
		if entities.IsSystemColumn(field.Name) {
			return entities.NewValidationError("field name %s conflicts with a system column", field.Name)
		}
		if seen[field.Name] {
			return entities.NewValidationError("duplicate field name: %s", field.Name)
		}
		seen[field.Name] = true
	}
	return nil
}

func (v *Validator) validateRelationships(ctx context.Context, def *entities.EntityDefinition) error {
	fields := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		fields[f.Name] = true
	}

	seen := make(map[string]bool)
	for _, rel := range def.Relationships {
		if !entities.IsSupportedRelationshipType(rel.Kind) {
			return entities.NewValidationError("unsupported relationship type: %s (relationship: %s)", rel.Kind, rel.Name)
		}
		if rel.Name == "" {
			return entities.NewValidationError("relationship name cannot be blank")
		}
		if !identifierPattern.MatchString(rel.Name) {
			return entities.NewValidationError("invalid relationship name format: %s", rel.Name)
		}
		if seen[rel.Name] {
			return entities.NewValidationError("duplicate relationship name: %s", rel.Name)
		}
		if fields[rel.Name] {
			return entities.NewValidationError("relationship name %s conflicts with a field name", rel.Name)
		}
		seen[rel.Name] = true
		if rel.TargetModel == "" {
			return entities.NewValidationError("target model cannot be blank (relationship: %s)", rel.Name)
		}

		// belongs_to requires the target to already exist in the tenant;
		// has_many/has_one tolerate forward references (resolved later).
		if rel.Kind == entities.RelationshipBelongsTo {
			exists, err := v.definitions.ExistsByName(ctx, def.OrganizationID, rel.TargetModel)
			if err != nil {
				return err
			}
			if !exists {
				return entities.NewValidationError("invalid relationship %s: target model %q does not exist", rel.Name, rel.TargetModel)
			}
		}
	}
	return nil
}
