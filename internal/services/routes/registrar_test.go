package routes

import (
	"context"
	"database/sql"
	"testing"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

type fakeRouteRepo struct {
	upserted []*entities.DynamicRoute
	deleted  []string
}

func (f *fakeRouteRepo) Upsert(ctx context.Context, route *entities.DynamicRoute) error {
	f.upserted = append(f.upserted, route)
	return nil
}

func (f *fakeRouteRepo) DeleteByResource(ctx context.Context, organizationID int64, basePath string) error {
	f.deleted = append(f.deleted, basePath)
	return nil
}

func (f *fakeRouteRepo) ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.DynamicRoute, error) {
	return nil, nil
}

func (f *fakeRouteRepo) ListAll(ctx context.Context) ([]*entities.DynamicRoute, error) {
	return f.upserted, nil
}

func (f *fakeRouteRepo) WithTx(tx *sql.Tx) repositories.RouteRepository { return f }

func testDefinition() *entities.EntityDefinition {
	return &entities.EntityDefinition{ID: 1, OrganizationID: 3, Name: "Customer"}
}

func TestResourcePath(t *testing.T) {
	if got := ResourcePath(testDefinition()); got != "/api/v1/org_3_customers" {
		t.Errorf("ResourcePath() = %s, want /api/v1/org_3_customers", got)
	}
	if got := ControllerPath(testDefinition()); got != "api/v1/org_3_customers" {
		t.Errorf("ControllerPath() = %s, want api/v1/org_3_customers", got)
	}
}

func TestUpsertCRUDRoutes(t *testing.T) {
	repo := &fakeRouteRepo{}
	registrar := NewRegistrar(repo)

	if err := registrar.UpsertCRUDRoutes(context.Background(), testDefinition()); err != nil {
		t.Fatalf("UpsertCRUDRoutes() = %v, want nil", err)
	}
	if len(repo.upserted) != 6 {
		t.Fatalf("upserted %d routes, want 6", len(repo.upserted))
	}

	type key struct{ method, path, action string }
	seen := make(map[key]bool)
	for _, r := range repo.upserted {
		if r.OrganizationID != 3 {
			t.Errorf("route organization id = %d, want 3", r.OrganizationID)
		}
		if r.Controller != "api/v1/org_3_customers" {
			t.Errorf("route controller = %s", r.Controller)
		}
		seen[key{r.Method, r.Path, r.Action}] = true
	}

	want := []key{
		{"GET", "/api/v1/org_3_customers", "index"},
		{"POST", "/api/v1/org_3_customers", "create"},
		{"GET", "/api/v1/org_3_customers/:id", "show"},
		{"PUT", "/api/v1/org_3_customers/:id", "update"},
		{"PATCH", "/api/v1/org_3_customers/:id", "update"},
		{"DELETE", "/api/v1/org_3_customers/:id", "destroy"},
	}
	for _, k := range want {
		if !seen[k] {
			t.Errorf("missing route %s %s -> %s", k.method, k.path, k.action)
		}
	}
}

func TestDeleteRoutesUsesCollectionPath(t *testing.T) {
	repo := &fakeRouteRepo{}
	registrar := NewRegistrar(repo)

	if err := registrar.DeleteRoutes(context.Background(), testDefinition()); err != nil {
		t.Fatalf("DeleteRoutes() = %v, want nil", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "/api/v1/org_3_customers" {
		t.Errorf("deleted = %v, want [/api/v1/org_3_customers]", repo.deleted)
	}
}
