package relations

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

type fakeLookup struct {
	defs map[string]*entities.EntityDefinition
}

func (f *fakeLookup) GetByName(ctx context.Context, organizationID int64, name string) (*entities.EntityDefinition, error) {
	if def, ok := f.defs[name]; ok {
		return def, nil
	}
	return nil, repositories.ErrNotFound
}

func newTestResolver(targets ...*entities.EntityDefinition) *Resolver {
	lookup := &fakeLookup{defs: make(map[string]*entities.EntityDefinition)}
	for _, def := range targets {
		lookup.defs[def.Name] = def
	}
	return NewResolver(lookup, zerolog.Nop())
}

func TestResolveBelongsTo(t *testing.T) {
	company := &entities.EntityDefinition{ID: 1, OrganizationID: 1, Name: "Company"}
	resolver := newTestResolver(company)

	def := &entities.EntityDefinition{
		OrganizationID: 1,
		Name:           "Customer",
		Relationships: []*entities.RelationshipDefinition{
			{Name: "company", Kind: entities.RelationshipBelongsTo, TargetModel: "Company", Options: map[string]interface{}{"required": true}},
		},
	}

	links, err := resolver.Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("Resolve() = %v, want nil", err)
	}
	if len(links) != 1 {
		t.Fatalf("len(links) = %d, want 1", len(links))
	}

	link := links[0]
	if !link.Resolved {
		t.Error("expected link to be resolved")
	}
	if link.ForeignKeyColumn != "company_id" {
		t.Errorf("ForeignKeyColumn = %s, want company_id", link.ForeignKeyColumn)
	}
	if link.TargetTable != "org_1_companies" {
		t.Errorf("TargetTable = %s, want org_1_companies", link.TargetTable)
	}
	if !link.Required {
		t.Error("expected Required from options")
	}
}

func TestResolveBelongsToMissingTarget(t *testing.T) {
	resolver := newTestResolver()
	def := &entities.EntityDefinition{
		OrganizationID: 1,
		Name:           "Customer",
		Relationships: []*entities.RelationshipDefinition{
			{Name: "company", Kind: entities.RelationshipBelongsTo, TargetModel: "Company"},
		},
	}

	_, err := resolver.Resolve(context.Background(), def)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected missing target error, got %v", err)
	}
}

func TestResolveHasManyForwardReference(t *testing.T) {
	resolver := newTestResolver()
	def := &entities.EntityDefinition{
		OrganizationID: 1,
		Name:           "Customer",
		Relationships: []*entities.RelationshipDefinition{
			{Name: "orders", Kind: entities.RelationshipHasMany, TargetModel: "Order"},
		},
	}

	links, err := resolver.Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("Resolve() = %v, want nil", err)
	}
	link := links[0]
	if link.Resolved {
		t.Error("expected unresolved forward reference")
	}
	// FK column belongs to the owning side's name.
	if link.ForeignKeyColumn != "customer_id" {
		t.Errorf("ForeignKeyColumn = %s, want customer_id", link.ForeignKeyColumn)
	}
	// Target table is still derived deterministically.
	if link.TargetTable != "org_1_orders" {
		t.Errorf("TargetTable = %s, want org_1_orders", link.TargetTable)
	}
}

func TestResolveHasAndBelongsToMany(t *testing.T) {
	tag := &entities.EntityDefinition{ID: 2, OrganizationID: 1, Name: "Tag"}
	resolver := newTestResolver(tag)
	def := &entities.EntityDefinition{
		OrganizationID: 1,
		Name:           "Post",
		Relationships: []*entities.RelationshipDefinition{
			{Name: "tags", Kind: entities.RelationshipHasAndBelongsToMany, TargetModel: "Tag"},
		},
	}

	links, err := resolver.Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("Resolve() = %v, want nil", err)
	}
	if links[0].JoinTable != "org_1_posts_org_1_tags" {
		t.Errorf("JoinTable = %s, want org_1_posts_org_1_tags", links[0].JoinTable)
	}
}

func TestJoinTableNameIsOrderIndependent(t *testing.T) {
	a := JoinTableName("org_1_posts", "org_1_tags")
	b := JoinTableName("org_1_tags", "org_1_posts")
	if a != b {
		t.Errorf("join table names differ: %s vs %s", a, b)
	}
	if a != "org_1_posts_org_1_tags" {
		t.Errorf("JoinTableName = %s, want org_1_posts_org_1_tags", a)
	}
}
