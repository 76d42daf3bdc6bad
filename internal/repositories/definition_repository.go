package repositories

import (
	"context"
	"database/sql"

	"github.com/protean-labs/protean/internal/entities"
)

// DefinitionRepository is the interface for entity definition catalog storage.
// A definition row owns its field and relationship rows; reads always return
// the definition fully hydrated.
type DefinitionRepository interface {
	// Create persists a definition with its fields and relationships and
	// fills in the generated ids.
	Create(ctx context.Context, def *entities.EntityDefinition) error

	// GetByID retrieves a definition by id within a tenant.
	GetByID(ctx context.Context, organizationID int64, id int64) (*entities.EntityDefinition, error)

	// GetByName retrieves a definition by entity name within a tenant.
	GetByName(ctx context.Context, organizationID int64, name string) (*entities.EntityDefinition, error)

	// ListByOrganization retrieves all definitions for a tenant.
	ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.EntityDefinition, error)

	// ListAll retrieves every definition across tenants. Used at boot to
	// rebuild the type registry.
	ListAll(ctx context.Context) ([]*entities.EntityDefinition, error)

	// ExistsByName reports whether a tenant already declared the name.
	ExistsByName(ctx context.Context, organizationID int64, name string) (bool, error)

	// Update persists description and metadata and replaces the field and
	// relationship rows with the ones on def.
	Update(ctx context.Context, def *entities.EntityDefinition) error

	// Delete removes the definition and, by cascade, its fields and
	// relationships.
	Delete(ctx context.Context, organizationID int64, id int64) error

	// WithTx returns a copy of the repository bound to the transaction.
	WithTx(tx *sql.Tx) DefinitionRepository
}

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = sql.ErrNoRows
