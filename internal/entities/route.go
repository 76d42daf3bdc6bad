package entities

import (
	"fmt"
	"regexp"
	"time"
)

// routePathPattern accepts paths made of letters, digits, '/', '_', '-' plus
// trailing named parameter segments such as "/:id".
var routePathPattern = regexp.MustCompile(`^/[a-zA-Z0-9/_\-]+(/:\w+)*$`)

// ValidHTTPMethods are the methods a dynamic route may be registered under.
var ValidHTTPMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// DynamicRoute is a persisted CRUD route for a materialized entity. Routes are
// written by the route registrar and consumed read-only by the dispatcher;
// (path, method, organization id) is unique.
type DynamicRoute struct {
	ID             int64
	OrganizationID int64
	Path           string
	Method         string
	Controller     string
	Action         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the route row before persistence.
func (r *DynamicRoute) Validate() error {
	if r.OrganizationID <= 0 {
		return NewRouteError("route organization id is required")
	}
	if r.Controller == "" || r.Action == "" {
		return NewRouteError("route controller and action are required")
	}
	if !validMethod(r.Method) {
		return NewRouteError(fmt.Sprintf("invalid HTTP method: %s", r.Method))
	}
	return ValidateRoutePath(r.Path)
}

// ValidateRoutePath checks a path against the route path grammar.
func ValidateRoutePath(path string) error {
	if path == "" || path[0] != '/' {
		return NewRouteError(fmt.Sprintf("path must start with '/', got: %q", path))
	}
	if !routePathPattern.MatchString(path) {
		return NewRouteError(fmt.Sprintf("invalid path format: %s", path))
	}
	return nil
}

func validMethod(method string) bool {
	for _, m := range ValidHTTPMethods {
		if m == method {
			return true
		}
	}
	return false
}
