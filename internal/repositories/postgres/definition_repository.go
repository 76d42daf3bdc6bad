package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresDefinitionRepository implements DefinitionRepository using PostgreSQL
type PostgresDefinitionRepository struct {
	db querier
}

// NewPostgresDefinitionRepository creates a new PostgreSQL definition repository
func NewPostgresDefinitionRepository(db *sql.DB) repositories.DefinitionRepository {
	return &PostgresDefinitionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the transaction
func (r *PostgresDefinitionRepository) WithTx(tx *sql.Tx) repositories.DefinitionRepository {
	return &PostgresDefinitionRepository{db: tx}
}

// Create persists a definition with its fields and relationships
func (r *PostgresDefinitionRepository) Create(ctx context.Context, def *entities.EntityDefinition) error {
	metadata, err := marshalJSON(def.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO dynamic_model_definitions (organization_id, name, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	err = r.db.QueryRowContext(ctx, query, def.OrganizationID, def.Name, def.Description, metadata, now, now).Scan(&def.ID)
	if err != nil {
		return fmt.Errorf("failed to create definition: %w", err)
	}
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := r.insertFields(ctx, def.ID, def.Fields); err != nil {
		return err
	}
	return r.insertRelationships(ctx, def.ID, def.Relationships)
}

// GetByID retrieves a definition by id within a tenant
func (r *PostgresDefinitionRepository) GetByID(ctx context.Context, organizationID int64, id int64) (*entities.EntityDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, metadata, created_at, updated_at
		FROM dynamic_model_definitions
		WHERE organization_id = $1 AND id = $2
	`
	return r.getOne(ctx, query, organizationID, id)
}

// GetByName retrieves a definition by entity name within a tenant
func (r *PostgresDefinitionRepository) GetByName(ctx context.Context, organizationID int64, name string) (*entities.EntityDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, metadata, created_at, updated_at
		FROM dynamic_model_definitions
		WHERE organization_id = $1 AND name = $2
	`
	return r.getOne(ctx, query, organizationID, name)
}

// ListByOrganization retrieves all definitions for a tenant
func (r *PostgresDefinitionRepository) ListByOrganization(ctx context.Context, organizationID int64) ([]*entities.EntityDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, metadata, created_at, updated_at
		FROM dynamic_model_definitions
		WHERE organization_id = $1
		ORDER BY name
	`
	return r.list(ctx, query, organizationID)
}

// ListAll retrieves every definition across tenants
func (r *PostgresDefinitionRepository) ListAll(ctx context.Context) ([]*entities.EntityDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, metadata, created_at, updated_at
		FROM dynamic_model_definitions
		ORDER BY organization_id, name
	`
	return r.list(ctx, query)
}

// ExistsByName reports whether a tenant already declared the name
func (r *PostgresDefinitionRepository) ExistsByName(ctx context.Context, organizationID int64, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM dynamic_model_definitions WHERE organization_id = $1 AND name = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, organizationID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check definition existence: %w", err)
	}
	return exists, nil
}

// Update persists description and metadata and replaces the child rows
func (r *PostgresDefinitionRepository) Update(ctx context.Context, def *entities.EntityDefinition) error {
	metadata, err := marshalJSON(def.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		UPDATE dynamic_model_definitions
		SET description = $1, metadata = $2, updated_at = $3
		WHERE organization_id = $4 AND id = $5
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, def.Description, metadata, now, def.OrganizationID, def.ID)
	if err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("definition not found: %d", def.ID)
	}
	def.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx, `DELETE FROM field_definitions WHERE dynamic_model_definition_id = $1`, def.ID); err != nil {
		return fmt.Errorf("failed to replace fields: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM relationship_definitions WHERE dynamic_model_definition_id = $1`, def.ID); err != nil {
		return fmt.Errorf("failed to replace relationships: %w", err)
	}
	if err := r.insertFields(ctx, def.ID, def.Fields); err != nil {
		return err
	}
	return r.insertRelationships(ctx, def.ID, def.Relationships)
}

// Delete removes the definition; field and relationship rows cascade
func (r *PostgresDefinitionRepository) Delete(ctx context.Context, organizationID int64, id int64) error {
	query := `DELETE FROM dynamic_model_definitions WHERE organization_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, organizationID, id); err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	return nil
}

func (r *PostgresDefinitionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entities.EntityDefinition, error) {
	def := &entities.EntityDefinition{}
	var metadata []byte

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&def.ID, &def.OrganizationID, &def.Name, &def.Description, &metadata, &def.CreatedAt, &def.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	if err := unmarshalJSON(metadata, &def.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := r.loadChildren(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *PostgresDefinitionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entities.EntityDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*entities.EntityDefinition
	for rows.Next() {
		def := &entities.EntityDefinition{}
		var metadata []byte
		if err := rows.Scan(&def.ID, &def.OrganizationID, &def.Name, &def.Description, &metadata, &def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if err := unmarshalJSON(metadata, &def.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate definitions: %w", err)
	}

	for _, def := range defs {
		if err := r.loadChildren(ctx, def); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func (r *PostgresDefinitionRepository) loadChildren(ctx context.Context, def *entities.EntityDefinition) error {
	fieldQuery := `
		SELECT id, name, field_type, options
		FROM field_definitions
		WHERE dynamic_model_definition_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, fieldQuery, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load fields: %w", err)
	}
	defer rows.Close()

	def.Fields = nil
	for rows.Next() {
		field := &entities.FieldDefinition{DefinitionID: def.ID}
		var options []byte
		if err := rows.Scan(&field.ID, &field.Name, &field.Type, &options); err != nil {
			return fmt.Errorf("failed to scan field: %w", err)
		}
		if err := unmarshalJSON(options, &field.Options); err != nil {
			return fmt.Errorf("failed to decode field options: %w", err)
		}
		def.Fields = append(def.Fields, field)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate fields: %w", err)
	}

	relQuery := `
		SELECT id, name, relationship_type, target_model, options
		FROM relationship_definitions
		WHERE dynamic_model_definition_id = $1
		ORDER BY id
	`
	relRows, err := r.db.QueryContext(ctx, relQuery, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load relationships: %w", err)
	}
	defer relRows.Close()

	def.Relationships = nil
	for relRows.Next() {
		rel := &entities.RelationshipDefinition{DefinitionID: def.ID}
		var options []byte
		if err := relRows.Scan(&rel.ID, &rel.Name, &rel.Kind, &rel.TargetModel, &options); err != nil {
			return fmt.Errorf("failed to scan relationship: %w", err)
		}
		if err := unmarshalJSON(options, &rel.Options); err != nil {
			return fmt.Errorf("failed to decode relationship options: %w", err)
		}
		def.Relationships = append(def.Relationships, rel)
	}
	if err := relRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate relationships: %w", err)
	}
	return nil
}

func (r *PostgresDefinitionRepository) insertFields(ctx context.Context, definitionID int64, fields []*entities.FieldDefinition) error {
	query := `
		INSERT INTO field_definitions (dynamic_model_definition_id, name, field_type, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	now := time.Now()
	for _, field := range fields {
		options, err := marshalJSON(field.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options for field %s: %w", field.Name, err)
		}
		if err := r.db.QueryRowContext(ctx, query, definitionID, field.Name, field.Type, options, now, now).Scan(&field.ID); err != nil {
			return fmt.Errorf("failed to create field %s: %w", field.Name, err)
		}
		field.DefinitionID = definitionID
	}
	return nil
}

func (r *PostgresDefinitionRepository) insertRelationships(ctx context.Context, definitionID int64, rels []*entities.RelationshipDefinition) error {
	query := `
		INSERT INTO relationship_definitions (dynamic_model_definition_id, name, relationship_type, target_model, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	for _, rel := range rels {
		options, err := marshalJSON(rel.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options for relationship %s: %w", rel.Name, err)
		}
		if err := r.db.QueryRowContext(ctx, query, definitionID, rel.Name, rel.Kind, rel.TargetModel, options, now, now).Scan(&rel.ID); err != nil {
			return fmt.Errorf("failed to create relationship %s: %w", rel.Name, err)
		}
		rel.DefinitionID = definitionID
	}
	return nil
}

func marshalJSON(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalJSON(data []byte, out *map[string]interface{}) error {
	if len(data) == 0 {
		*out = map[string]interface{}{}
		return nil
	}
	return json.Unmarshal(data, out)
}
