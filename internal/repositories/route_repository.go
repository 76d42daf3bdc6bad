package repositories

import (
	"context"
	"database/sql"

	"github.com/protean-labs/protean/internal/entities"
)

// RouteRepository is the interface for the persisted dynamic route table.
type RouteRepository interface {
	// Upsert creates the route or updates its controller and action; the
	// (path, method, organization id) key never produces duplicates.
	Upsert(ctx context.Context, route *entities.DynamicRoute) error

	// DeleteByResource removes the exact collection path and every path
	// prefixed by it plus "/", scoped to the tenant.
	DeleteByResource(ctx context.Context, organizationID int64, basePath string) error

	// ListByOrganization retrieves all routes for a tenant.
	ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.DynamicRoute, error)

	// ListAll retrieves every route. Consumed by the dispatcher on reload.
	ListAll(ctx context.Context) ([]*entities.DynamicRoute, error)

	// WithTx returns a copy of the repository bound to the transaction.
	WithTx(tx *sql.Tx) RouteRepository
}
