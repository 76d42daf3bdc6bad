package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

// PostgresRouteRepository implements RouteRepository using PostgreSQL
type PostgresRouteRepository struct {
	db querier
}

// NewPostgresRouteRepository creates a new PostgreSQL route repository
func NewPostgresRouteRepository(db *sql.DB) repositories.RouteRepository {
	return &PostgresRouteRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction
func (r *PostgresRouteRepository) WithTx(tx *sql.Tx) repositories.RouteRepository {
	return &PostgresRouteRepository{db: tx}
}

// Upsert creates the route or refreshes its controller and action. The unique
// index on (path, method, organization_id) makes re-registration idempotent.
func (r *PostgresRouteRepository) Upsert(ctx context.Context, route *entities.DynamicRoute) error {
	query := `
		INSERT INTO dynamic_routes (organization_id, path, method, controller, action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path, method, organization_id)
		DO UPDATE SET controller = EXCLUDED.controller, action = EXCLUDED.action, updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		route.OrganizationID, route.Path, route.Method, route.Controller, route.Action, now, now,
	).Scan(&route.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert route %s %s: %w", route.Method, route.Path, err)
	}
	return nil
}

// DeleteByResource removes the collection path and all member paths under it,
// scoped to the owning tenant so shared prefixes across tenants are untouched.
func (r *PostgresRouteRepository) DeleteByResource(ctx context.Context, organizationID int64, basePath string) error {
	query := `
		DELETE FROM dynamic_routes
		WHERE organization_id = $1 AND (path = $2 OR path LIKE $3)
	`
	pattern := escapeLikePattern(basePath) + "/%"
	if _, err := r.db.ExecContext(ctx, query, organizationID, basePath, pattern); err != nil {
		return fmt.Errorf("failed to delete routes for %s: %w", basePath, err)
	}
	return nil
}

// escapeLikePattern makes a literal string safe inside a LIKE pattern: the
// underscores in generated table paths would otherwise match any character.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ListByOrganization retrieves all routes for a tenant
func (r *PostgresRouteRepository) ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.DynamicRoute, error) {
	query := `
		SELECT id, organization_id, path, method, controller, action, created_at, updated_at
		FROM dynamic_routes
		WHERE organization_id = $1
		ORDER BY path, method
	`
	return r.list(ctx, query, organizationID)
}

// ListAll retrieves every route ordered for stable dispatch table builds
func (r *PostgresRouteRepository) ListAll(ctx context.Context) ([]*entities.DynamicRoute, error) {
	query := `
		SELECT id, organization_id, path, method, controller, action, created_at, updated_at
		FROM dynamic_routes
		ORDER BY organization_id, path, method
	`
	return r.list(ctx, query)
}

func (r *PostgresRouteRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entities.DynamicRoute, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []*entities.DynamicRoute
	for rows.Next() {
		route := &entities.DynamicRoute{}
		if err := rows.Scan(
			&route.ID, &route.OrganizationID, &route.Path, &route.Method,
			&route.Controller, &route.Action, &route.CreatedAt, &route.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routes: %w", err)
	}
	return routes, nil
}
