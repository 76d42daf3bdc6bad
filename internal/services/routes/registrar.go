package routes

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

// crudAction pairs one of the six generated endpoints with its HTTP shape.
type crudAction struct {
	method string
	member bool
	action string
}

// The canonical CRUD surface of a generated entity: collection index/create,
// member show/update (PUT and PATCH)/destroy.
var crudActions = []crudAction{
	{method: "GET", member: false, action: "index"},
	{method: "POST", member: false, action: "create"},
	{method: "GET", member: true, action: "show"},
	{method: "PUT", member: true, action: "update"},
	{method: "PATCH", member: true, action: "update"},
	{method: "DELETE", member: true, action: "destroy"},
}

// Registrar derives and persists the CRUD route rows for a generated entity.
type Registrar struct {
	routes repositories.RouteRepository
}

// NewRegistrar creates a new Registrar
func NewRegistrar(routes repositories.RouteRepository) *Registrar {
	return &Registrar{routes: routes}
}

// WithTx returns a copy bound to the transaction.
func (r *Registrar) WithTx(tx *sql.Tx) *Registrar {
	return &Registrar{routes: r.routes.WithTx(tx)}
}

// ResourcePath is the collection path for a generated entity, derived from
// its table name.
func ResourcePath(def *entities.EntityDefinition) string {
	return "/api/v1/" + def.TableName()
}

// ControllerPath names the handler unit a route row points at. It mirrors the
// resource path without the leading slash.
func ControllerPath(def *entities.EntityDefinition) string {
	return "api/v1/" + def.TableName()
}

// UpsertCRUDRoutes persists the entity's six CRUD routes. Every path is
// validated before the first write so an invalid path aborts with no routes
// persisted; upserting is idempotent across repeated generation.
func (r *Registrar) UpsertCRUDRoutes(ctx context.Context, def *entities.EntityDefinition) error {
	rows := buildRoutes(def)
	for _, route := range rows {
		if err := route.Validate(); err != nil {
			return err
		}
	}
	for _, route := range rows {
		if err := r.routes.Upsert(ctx, route); err != nil {
			return fmt.Errorf("failed to persist route %s %s: %w", route.Method, route.Path, err)
		}
	}
	return nil
}

// DeleteRoutes removes the entity's persisted routes, collection and member
// paths alike.
func (r *Registrar) DeleteRoutes(ctx context.Context, def *entities.EntityDefinition) error {
	if err := r.routes.DeleteByResource(ctx, def.OrganizationID, ResourcePath(def)); err != nil {
		return fmt.Errorf("failed to delete routes for %s: %w", def.TableName(), err)
	}
	return nil
}

func buildRoutes(def *entities.EntityDefinition) []*entities.DynamicRoute {
	base := ResourcePath(def)
	controller := ControllerPath(def)

	rows := make([]*entities.DynamicRoute, 0, len(crudActions))
	for _, a := range crudActions {
		path := base
		if a.member {
			path = base + "/:id"
		}
		rows = append(rows, &entities.DynamicRoute{
			OrganizationID: def.OrganizationID,
			Path:           path,
			Method:         a.method,
			Controller:     controller,
			Action:         a.action,
		})
	}
	return rows
}
