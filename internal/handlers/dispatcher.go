package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/protean-labs/protean/internal/registry"
	"github.com/protean-labs/protean/internal/repositories"
)

// compiledRoute is one persisted route row prepared for matching: the path is
// pre-split and the owning entity's resource name pre-derived from the
// controller path.
type compiledRoute struct {
	organizationID int64
	method         string
	segments       []string
	action         string
	resource       string
}

// Dispatcher matches requests that fall through the static router against the
// persisted route table and executes the bound CRUD action on the entity's
// registry handle. The route snapshot is rebuilt on Reload and swapped
// atomically, so dispatch never blocks on a lifecycle operation.
type Dispatcher struct {
	routes   repositories.RouteRepository
	registry *registry.Registry
	records  *RecordHandler
	logger   zerolog.Logger

	mu       sync.RWMutex
	snapshot []compiledRoute
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(routes repositories.RouteRepository, reg *registry.Registry, records *RecordHandler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		routes:   routes,
		registry: reg,
		records:  records,
		logger:   logger,
	}
}

// Reload rebuilds the matching snapshot from the persisted route table.
// Called at boot and after every lifecycle operation that touches routes.
func (d *Dispatcher) Reload(ctx context.Context) error {
	rows, err := d.routes.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dynamic routes: %w", err)
	}

	snapshot := make([]compiledRoute, 0, len(rows))
	for _, row := range rows {
		snapshot = append(snapshot, compiledRoute{
			organizationID: row.OrganizationID,
			method:         row.Method,
			segments:       splitPath(row.Path),
			action:         row.Action,
			resource:       resourceFromController(row.Controller, row.OrganizationID),
		})
	}

	d.mu.Lock()
	d.snapshot = snapshot
	d.mu.Unlock()

	d.logger.Info().Int("routes", len(snapshot)).Msg("reloaded dynamic routes")
	return nil
}

// Handler is mounted as the router's NoRoute fallback.
func (d *Dispatcher) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, params, ok := d.match(c.Request.Method, c.Request.URL.Path)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		handle, ok := d.registry.GetByResource(route.organizationID, route.resource)
		if !ok {
			d.logger.Error().
				Int64("organization_id", route.organizationID).
				Str("resource", route.resource).
				Msg("route matched but no handle loaded")
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		switch route.action {
		case "index":
			d.records.Index(c, handle)
		case "create":
			d.records.Create(c, handle)
		case "show":
			d.records.Show(c, handle, params["id"])
		case "update":
			d.records.Update(c, handle, params["id"])
		case "destroy":
			d.records.Destroy(c, handle, params["id"])
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		}
	}
}

func (d *Dispatcher) match(method, path string) (compiledRoute, map[string]string, bool) {
	segments := splitPath(path)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, route := range d.snapshot {
		if route.method != method || len(route.segments) != len(segments) {
			continue
		}
		params, ok := matchSegments(route.segments, segments)
		if ok {
			return route, params, true
		}
	}
	return compiledRoute{}, nil, false
}

func matchSegments(pattern, actual []string) (map[string]string, bool) {
	params := make(map[string]string)
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			params[p[1:]] = actual[i]
			continue
		}
		if p != actual[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// resourceFromController recovers the pluralized resource name the registry
// indexes by: the controller path ends in the table name, which carries the
// tenant prefix.
func resourceFromController(controller string, organizationID int64) string {
	tableName := controller
	if i := strings.LastIndex(controller, "/"); i >= 0 {
		tableName = controller[i+1:]
	}
	return strings.TrimPrefix(tableName, fmt.Sprintf("org_%d_", organizationID))
}
