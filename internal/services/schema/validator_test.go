package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/protean-labs/protean/internal/entities"
)

type fakeLookup struct {
	defs []*entities.EntityDefinition
}

func (f *fakeLookup) ExistsByName(ctx context.Context, organizationID int64, name string) (bool, error) {
	for _, def := range f.defs {
		if def.OrganizationID == organizationID && def.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLookup) ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.EntityDefinition, error) {
	var defs []*entities.EntityDefinition
	for _, def := range f.defs {
		if def.OrganizationID == organizationID {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func newTestValidator(existing ...string) *Validator {
	lookup := &fakeLookup{}
	for i, name := range existing {
		lookup.defs = append(lookup.defs, &entities.EntityDefinition{
			ID:             int64(100 + i),
			OrganizationID: 1,
			Name:           name,
		})
	}
	return NewValidator(lookup)
}

func validDefinition() *entities.EntityDefinition {
	return &entities.EntityDefinition{
		OrganizationID: 1,
		Name:           "Customer",
		Fields: []*entities.FieldDefinition{
			{Name: "name", Type: "string"},
			{Name: "email", Type: "email"},
		},
	}
}

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	v := newTestValidator()
	if err := v.Validate(context.Background(), validDefinition()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBlankName(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.Name = ""
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "cannot be blank") {
		t.Errorf("expected blank name error, got %v", err)
	}
}

func TestValidateRejectsBadNameFormat(t *testing.T) {
	v := newTestValidator()
	for _, name := range []string{"customer", "1Customer", "Custo mer", "Custo_mer"} {
		def := validDefinition()
		def.Name = name
		if err := v.Validate(context.Background(), def); err == nil {
			t.Errorf("expected format error for name %q", name)
		}
	}
}

func TestValidateRejectsMissingOrganization(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.OrganizationID = 0
	if err := v.Validate(context.Background(), def); err == nil {
		t.Error("expected error for missing organization id")
	}
}

func TestValidateRejectsTableNameCollision(t *testing.T) {
	// "Person" and "People" both pluralize to org_1_people.
	v := newTestValidator("Person")
	def := validDefinition()
	def.Name = "People"
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "both map to table org_1_people") {
		t.Errorf("expected table collision error, got %v", err)
	}

	// Re-validating the same declared name is not a collision.
	v = newTestValidator("Customer")
	if err := v.Validate(context.Background(), validDefinition()); err != nil {
		t.Errorf("Validate() = %v, want nil for same-name revalidation", err)
	}
}

func TestValidateRejectsUnsupportedFieldType(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.Fields = append(def.Fields, &entities.FieldDefinition{Name: "ref", Type: "uuid"})
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "unsupported field type") {
		t.Errorf("expected unsupported field type error, got %v", err)
	}
}

func TestValidateRejectsSystemColumnCollision(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.Fields = append(def.Fields, &entities.FieldDefinition{Name: "created_at", Type: "datetime"})
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "system column") {
		t.Errorf("expected system column error, got %v", err)
	}
}

func TestValidateRejectsDuplicateFieldNames(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.Fields = append(def.Fields, &entities.FieldDefinition{Name: "name", Type: "text"})
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "duplicate field name") {
		t.Errorf("expected duplicate field error, got %v", err)
	}
}

func TestValidateBelongsToRequiresExistingTarget(t *testing.T) {
	def := validDefinition()
	def.Relationships = []*entities.RelationshipDefinition{
		{Name: "company", Kind: entities.RelationshipBelongsTo, TargetModel: "Company"},
	}

	// Target missing: rejected.
	v := newTestValidator()
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected missing target error, got %v", err)
	}

	// Target declared: accepted.
	v = newTestValidator("Company")
	if err := v.Validate(context.Background(), def); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateHasManyToleratesForwardReference(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.Relationships = []*entities.RelationshipDefinition{
		{Name: "orders", Kind: entities.RelationshipHasMany, TargetModel: "Order"},
	}
	if err := v.Validate(context.Background(), def); err != nil {
		t.Errorf("Validate() = %v, want nil for has_many forward reference", err)
	}
}

func TestValidateRejectsRelationshipFieldCollision(t *testing.T) {
	v := newTestValidator("Name")
	def := validDefinition()
	def.Relationships = []*entities.RelationshipDefinition{
		{Name: "name", Kind: entities.RelationshipHasOne, TargetModel: "Name"},
	}
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "conflicts with a field name") {
		t.Errorf("expected field collision error, got %v", err)
	}
}

func TestValidateRejectsUnsupportedRelationshipType(t *testing.T) {
	v := newTestValidator()
	def := validDefinition()
	def.Relationships = []*entities.RelationshipDefinition{
		{Name: "tags", Kind: "many_to_many", TargetModel: "Tag"},
	}
	err := v.Validate(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "unsupported relationship type") {
		t.Errorf("expected unsupported relationship error, got %v", err)
	}
}
