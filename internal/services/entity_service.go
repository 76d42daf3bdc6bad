package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/registry"
	"github.com/protean-labs/protean/internal/repositories"
	"github.com/protean-labs/protean/internal/services/ddl"
	"github.com/protean-labs/protean/internal/services/relations"
	"github.com/protean-labs/protean/internal/services/routes"
	"github.com/protean-labs/protean/internal/services/rules"
	"github.com/protean-labs/protean/internal/services/schema"
	"github.com/protean-labs/protean/pkg/cache"
)

// snapshotTTL bounds how long a cached definition snapshot is served before
// it must be rebuilt from the catalog.
const snapshotTTL = 24 * time.Hour

// ReloadNotifier is signaled after a lifecycle operation changes the
// persisted route table. Satisfied by the dispatcher.
type ReloadNotifier interface {
	Reload(ctx context.Context) error
}

// DefinitionChanges carries a partial update to a definition. Nil means
// "leave unchanged"; non-nil field or relationship slices replace the
// declared set wholesale.
type DefinitionChanges struct {
	Name          *string
	Description   *string
	Metadata      map[string]interface{}
	Fields        []*entities.FieldDefinition
	Relationships []*entities.RelationshipDefinition
}

// EntityServiceInterface defines the interface for entity lifecycle operations
type EntityServiceInterface interface {
	Generate(ctx context.Context, def *entities.EntityDefinition) (*entities.EntityDefinition, error)
	GetDefinition(ctx context.Context, organizationID, id int64) (*entities.EntityDefinition, error)
	ListDefinitions(ctx context.Context, organizationID int64) ([]*entities.EntityDefinition, error)
	UpdateDefinition(ctx context.Context, organizationID, id int64, changes DefinitionChanges) (*entities.EntityDefinition, error)
	Cleanup(ctx context.Context, organizationID, id int64) error
	LoadAll(ctx context.Context) error
}

// EntityService orchestrates the entity lifecycle: validate the declaration,
// persist it to the catalog, materialize the backing table, register CRUD
// routes, and install the compiled handle in the type registry. Catalog
// writes, DDL and route rows share one transaction; the registry and the
// dispatcher are only touched after commit.
type EntityService struct {
	db           *sql.DB
	definitions  repositories.DefinitionRepository
	validator    *schema.Validator
	resolver     *relations.Resolver
	synchronizer *ddl.Synchronizer
	registrar    *routes.Registrar
	registry     *registry.Registry
	snapshots    cache.Cache
	notifier     ReloadNotifier
	locks        *keyedLock
	logger       zerolog.Logger
}

// NewEntityService creates a new EntityService
func NewEntityService(
	db *sql.DB,
	definitions repositories.DefinitionRepository,
	validator *schema.Validator,
	resolver *relations.Resolver,
	synchronizer *ddl.Synchronizer,
	registrar *routes.Registrar,
	reg *registry.Registry,
	snapshots cache.Cache,
	logger zerolog.Logger,
) *EntityService {
	return &EntityService{
		db:           db,
		definitions:  definitions,
		validator:    validator,
		resolver:     resolver,
		synchronizer: synchronizer,
		registrar:    registrar,
		registry:     reg,
		snapshots:    snapshots,
		locks:        newKeyedLock(),
		logger:       logger,
	}
}

// SetReloadNotifier wires the dispatcher in after construction; the
// dispatcher itself needs the registry, so the two cannot be built in one
// pass.
func (s *EntityService) SetReloadNotifier(n ReloadNotifier) {
	s.notifier = n
}

// Generate runs the full generation pipeline for a new declaration and
// returns the persisted definition. Any failure before commit leaves no
// trace: the catalog rows, the table and the routes roll back together.
func (s *EntityService) Generate(ctx context.Context, def *entities.EntityDefinition) (*entities.EntityDefinition, error) {
	lock := s.locks.Acquire(lockKey(def.OrganizationID, def.Name))
	defer lock.Unlock()

	if err := s.validator.Validate(ctx, def); err != nil {
		return nil, err
	}

	exists, err := s.definitions.ExistsByName(ctx, def.OrganizationID, def.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check model name: %w", err)
	}
	if exists {
		return nil, entities.NewValidationError("model %s already exists", def.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.definitions.WithTx(tx).Create(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to persist definition: %w", err)
	}

	links, err := s.resolver.Resolve(ctx, def)
	if err != nil {
		return nil, err
	}

	if err := s.synchronizer.EnsureTable(ctx, tx, def, links); err != nil {
		return nil, err
	}

	if err := s.registrar.WithTx(tx).UpsertCRUDRoutes(ctx, def); err != nil {
		return nil, err
	}

	handle, err := s.buildHandle(def, links)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit generation: %w", err)
	}

	s.install(ctx, def, handle)
	s.logger.Info().
		Int64("organization_id", def.OrganizationID).
		Str("model", def.Name).
		Str("table", def.TableName()).
		Msg("generated entity")
	return def, nil
}

// GetDefinition retrieves a definition by id within a tenant, serving from
// the snapshot cache when a fresh copy is available.
func (s *EntityService) GetDefinition(ctx context.Context, organizationID, id int64) (*entities.EntityDefinition, error) {
	if s.snapshots != nil {
		if cached, ok := s.snapshots.Get(ctx, snapshotKey(organizationID, id)); ok {
			if def, ok := cached.(*entities.EntityDefinition); ok {
				return def, nil
			}
		}
	}
	def, err := s.definitions.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if s.snapshots != nil {
		_ = s.snapshots.Set(ctx, snapshotKey(organizationID, id), def, snapshotTTL)
	}
	return def, nil
}

// ListDefinitions retrieves all definitions for a tenant.
func (s *EntityService) ListDefinitions(ctx context.Context, organizationID int64) ([]*entities.EntityDefinition, error) {
	return s.definitions.ListByOrganization(ctx, organizationID)
}

// UpdateDefinition applies a partial change to an existing definition.
// Renaming a materialized entity is rejected; replacing the field or
// relationship set triggers a table alteration and a handle rebuild.
func (s *EntityService) UpdateDefinition(ctx context.Context, organizationID, id int64, changes DefinitionChanges) (*entities.EntityDefinition, error) {
	def, err := s.definitions.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	lock := s.locks.Acquire(lockKey(def.OrganizationID, def.Name))
	defer lock.Unlock()

	if changes.Name != nil && *changes.Name != def.Name {
		return nil, entities.NewValidationError("model name cannot be changed after the table is generated")
	}
	if changes.Description != nil {
		def.Description = *changes.Description
	}
	if changes.Metadata != nil {
		def.Metadata = changes.Metadata
	}
	structural := changes.Fields != nil || changes.Relationships != nil
	if changes.Fields != nil {
		def.Fields = changes.Fields
	}
	if changes.Relationships != nil {
		def.Relationships = changes.Relationships
	}

	if err := s.validator.Validate(ctx, def); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.definitions.WithTx(tx).Update(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to update definition: %w", err)
	}

	links, err := s.resolver.Resolve(ctx, def)
	if err != nil {
		return nil, err
	}

	if structural {
		if err := s.synchronizer.AlterTable(ctx, tx, def, links); err != nil {
			return nil, err
		}
	}

	// Routes are keyed by the immutable name, so upserting converges even
	// when nothing structural changed.
	if err := s.registrar.WithTx(tx).UpsertCRUDRoutes(ctx, def); err != nil {
		return nil, err
	}

	handle, err := s.buildHandle(def, links)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	s.install(ctx, def, handle)
	s.logger.Info().
		Int64("organization_id", def.OrganizationID).
		Str("model", def.Name).
		Bool("structural", structural).
		Msg("updated entity definition")
	return def, nil
}

// Cleanup tears down an entity: drops the table (with referencing constraints
// and join tables), deletes the persisted routes, removes the catalog rows,
// and unloads the handle. The database work is one transaction; the registry
// and dispatcher are updated only after commit.
func (s *EntityService) Cleanup(ctx context.Context, organizationID, id int64) error {
	def, err := s.definitions.GetByID(ctx, organizationID, id)
	if err != nil {
		return err
	}

	lock := s.locks.Acquire(lockKey(def.OrganizationID, def.Name))
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.synchronizer.DropTable(ctx, tx, def, teardownLinks(def)); err != nil {
		return err
	}
	if err := s.registrar.WithTx(tx).DeleteRoutes(ctx, def); err != nil {
		return err
	}
	if err := s.definitions.WithTx(tx).Delete(ctx, def.OrganizationID, def.ID); err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleanup: %w", err)
	}

	s.registry.Unload(def.OrganizationID, def.Name)
	if s.snapshots != nil {
		_ = s.snapshots.Delete(ctx, snapshotKey(def.OrganizationID, def.ID))
	}
	s.signalReload(ctx)
	s.logger.Info().
		Int64("organization_id", def.OrganizationID).
		Str("model", def.Name).
		Str("table", def.TableName()).
		Msg("cleaned up entity")
	return nil
}

// LoadAll rebuilds the type registry from the catalog. Run at boot so every
// previously generated entity is servable before the first request. A
// definition that fails to compile is logged and skipped rather than taking
// the process down.
func (s *EntityService) LoadAll(ctx context.Context) error {
	defs, err := s.definitions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list definitions: %w", err)
	}

	for _, def := range defs {
		links, err := s.resolver.Resolve(ctx, def)
		if err == nil {
			var handle *registry.Handle
			handle, err = s.buildHandle(def, links)
			if err == nil {
				s.registry.Load(handle)
				continue
			}
		}
		s.logger.Error().Err(err).
			Int64("organization_id", def.OrganizationID).
			Str("model", def.Name).
			Msg("failed to load entity definition; skipping")
	}

	s.logger.Info().Int("models", s.registry.Len()).Msg("loaded type registry")
	return nil
}

func (s *EntityService) buildHandle(def *entities.EntityDefinition, links []relations.Link) (*registry.Handle, error) {
	ruleSet := make(map[string][]rules.Rule, len(def.Fields))
	for _, field := range def.Fields {
		if !entities.IsSupportedFieldType(field.Type) {
			return nil, entities.NewModelLoadError(fmt.Sprintf("cannot compile rules for field %s", field.Name), entities.NewValidationError("unsupported field type: %s", field.Type))
		}
		ruleSet[field.Name] = rules.Compile(field)
	}
	return registry.NewHandle(s.db, def, ruleSet, links), nil
}

// install publishes a committed definition: handle into the registry,
// snapshot into the cache, reload signal to the dispatcher.
func (s *EntityService) install(ctx context.Context, def *entities.EntityDefinition, handle *registry.Handle) {
	s.registry.Load(handle)
	if s.snapshots != nil {
		_ = s.snapshots.Set(ctx, snapshotKey(def.OrganizationID, def.ID), def, snapshotTTL)
	}
	s.signalReload(ctx)
}

func (s *EntityService) signalReload(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Reload(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to reload dynamic routes")
	}
}

// teardownLinks derives the links cleanup needs without consulting the
// catalog: targets may already be gone, only join table names matter here.
func teardownLinks(def *entities.EntityDefinition) []relations.Link {
	links := make([]relations.Link, 0, len(def.Relationships))
	for _, rel := range def.Relationships {
		link := relations.Link{Name: rel.Name, Kind: rel.Kind, TargetModel: rel.TargetModel}
		if rel.Kind == entities.RelationshipHasAndBelongsToMany {
			targetTable := entities.TableNameFor(def.OrganizationID, rel.TargetModel)
			link.JoinTable = relations.JoinTableName(def.TableName(), targetTable)
		}
		links = append(links, link)
	}
	return links
}

func lockKey(organizationID int64, name string) string {
	return fmt.Sprintf("%d:%s", organizationID, name)
}

func snapshotKey(organizationID, id int64) string {
	return fmt.Sprintf("dynamic_model:%d:%d", organizationID, id)
}
