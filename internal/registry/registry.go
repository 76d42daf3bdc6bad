package registry

import (
	"fmt"
	"sync"
)

// Registry is the process-wide index of generated entity handles, keyed by
// tenant and entity name, with a secondary index by resource name for route
// dispatch. Loads replace the whole handle, so readers always observe a
// consistent compiled form.
type Registry struct {
	mu         sync.RWMutex
	handles    map[string]*Handle
	byResource map[string]*Handle
}

// New creates a new Registry
func New() *Registry {
	return &Registry{
		handles:    make(map[string]*Handle),
		byResource: make(map[string]*Handle),
	}
}

// Load installs or replaces the handle for its (tenant, entity) pair.
func (r *Registry) Load(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := handleKey(h.OrganizationID, h.EntityName)
	if previous, ok := r.handles[key]; ok {
		delete(r.byResource, resourceKey(previous.OrganizationID, previous.Resource))
	}
	r.handles[key] = h
	r.byResource[resourceKey(h.OrganizationID, h.Resource)] = h
}

// Unload removes the handle for a (tenant, entity) pair. It reports whether a
// handle was present; unloading an absent entity is not an error.
func (r *Registry) Unload(organizationID int64, entityName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := handleKey(organizationID, entityName)
	h, ok := r.handles[key]
	if !ok {
		return false
	}
	delete(r.handles, key)
	delete(r.byResource, resourceKey(h.OrganizationID, h.Resource))
	return true
}

// Get returns the handle for a (tenant, entity) pair.
func (r *Registry) Get(organizationID int64, entityName string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[handleKey(organizationID, entityName)]
	return h, ok
}

// GetByResource returns the handle whose pluralized resource name matches,
// which is how the dispatcher maps a route row back to its entity.
func (r *Registry) GetByResource(organizationID int64, resource string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byResource[resourceKey(organizationID, resource)]
	return h, ok
}

// Len reports the number of loaded handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

func handleKey(organizationID int64, entityName string) string {
	return fmt.Sprintf("%d:%s", organizationID, entityName)
}

func resourceKey(organizationID int64, resource string) string {
	return fmt.Sprintf("%d:%s", organizationID, resource)
}
