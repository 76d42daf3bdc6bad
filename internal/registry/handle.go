package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/services/relations"
	"github.com/protean-labs/protean/internal/services/rules"
)

// ErrNotFound is returned when a record id does not exist within the tenant.
var ErrNotFound = errors.New("record not found")

// Handle is the runtime form of a generated entity: its identity, its
// compiled validation rules, its resolved links, and the CRUD operations
// against its backing table. Handles are immutable once built; the registry
// swaps whole handles on definition changes.
type Handle struct {
	OrganizationID int64
	EntityName     string
	TypeName       string
	TableName      string
	Resource       string

	Fields []*entities.FieldDefinition
	Rules  map[string][]rules.Rule
	Links  []relations.Link

	db *sql.DB
}

// NewHandle builds a handle from a definition plus its compiled rules and
// resolved links.
func NewHandle(db *sql.DB, def *entities.EntityDefinition, ruleSet map[string][]rules.Rule, links []relations.Link) *Handle {
	return &Handle{
		OrganizationID: def.OrganizationID,
		EntityName:     def.Name,
		TypeName:       def.TypeName(),
		TableName:      def.TableName(),
		Resource:       def.ResourceName(),
		Fields:         def.Fields,
		Rules:          ruleSet,
		Links:          links,
		db:             db,
	}
}

// Validate runs every field's compiled rules against the submitted attributes
// and collects the full error list. Messages read "field message", matching
// the serialized error format. A field absent from attrs is validated as nil,
// so required fields surface as missing.
func (h *Handle) Validate(attrs map[string]interface{}) []string {
	var errs []string
	for _, field := range h.Fields {
		value := attrs[field.Name]
		for _, rule := range h.Rules[field.Name] {
			if err := rule.Validate(value); err != nil {
				errs = append(errs, field.Name+" "+err.Error())
			}
		}
	}
	for _, link := range h.Links {
		if link.Kind == entities.RelationshipBelongsTo && link.Required {
			if attrs[link.ForeignKeyColumn] == nil {
				errs = append(errs, link.ForeignKeyColumn+" can't be blank")
			}
		}
	}
	return errs
}

// Insert creates a record from the permitted attributes and returns the
// persisted row. The tenant column and timestamps are set by the handle, not
// the caller.
func (h *Handle) Insert(ctx context.Context, attrs map[string]interface{}) (map[string]interface{}, error) {
	columns, values := h.permittedPairs(attrs)

	columns = append(columns, "organization_id")
	values = append(values, h.OrganizationID)

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, NOW(), NOW()) RETURNING id",
		h.TableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)

	var id int64
	if err := h.db.QueryRowContext(ctx, query, values...).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", h.TableName, err)
	}
	return h.Get(ctx, id)
}

// Get fetches a single record by id, scoped to the tenant.
func (h *Handle) Get(ctx context.Context, id int64) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 AND organization_id = $2", h.TableName)
	rows, err := h.db.QueryContext(ctx, query, id, h.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", h.TableName, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return h.scanRow(rows)
}

// List returns one page of the tenant's records ordered by id, plus the total
// count for pagination headers.
func (h *Handle) List(ctx context.Context, page, perPage int) ([]map[string]interface{}, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE organization_id = $1", h.TableName)
	if err := h.db.QueryRowContext(ctx, countQuery, h.OrganizationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", h.TableName, err)
	}

	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE organization_id = $1 ORDER BY id LIMIT $2 OFFSET $3",
		h.TableName,
	)
	rows, err := h.db.QueryContext(ctx, query, h.OrganizationID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s: %w", h.TableName, err)
	}
	defer rows.Close()

	records := make([]map[string]interface{}, 0)
	for rows.Next() {
		record, err := h.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	return records, total, rows.Err()
}

// Update applies the permitted attributes to an existing record and returns
// the updated row.
func (h *Handle) Update(ctx context.Context, id int64, attrs map[string]interface{}) (map[string]interface{}, error) {
	columns, values := h.permittedPairs(attrs)
	if len(columns) == 0 {
		return h.Get(ctx, id)
	}

	assignments := make([]string, len(columns))
	for i, column := range columns {
		assignments[i] = fmt.Sprintf("%s = $%d", column, i+1)
	}
	values = append(values, id, h.OrganizationID)

	query := fmt.Sprintf(
		"UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		h.TableName, strings.Join(assignments, ", "), len(columns)+1, len(columns)+2,
	)

	result, err := h.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", h.TableName, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return h.Get(ctx, id)
}

// Delete removes a record by id, scoped to the tenant.
func (h *Handle) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND organization_id = $2", h.TableName)
	result, err := h.db.ExecContext(ctx, query, id, h.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", h.TableName, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// permittedColumns is the writable column set: declared fields plus
// belongs_to foreign keys. Everything else submitted by a client is dropped.
func (h *Handle) permittedColumns() []string {
	columns := make([]string, 0, len(h.Fields)+len(h.Links))
	for _, field := range h.Fields {
		columns = append(columns, field.Name)
	}
	for _, link := range h.Links {
		if link.Kind == entities.RelationshipBelongsTo {
			columns = append(columns, link.ForeignKeyColumn)
		}
	}
	return columns
}

func (h *Handle) permittedPairs(attrs map[string]interface{}) ([]string, []interface{}) {
	var columns []string
	var values []interface{}
	for _, column := range h.permittedColumns() {
		value, ok := attrs[column]
		if !ok {
			continue
		}
		columns = append(columns, column)
		values = append(values, encodeValue(value))
	}
	return columns, values
}

func (h *Handle) scanRow(rows *sql.Rows) (map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	raw := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row from %s: %w", h.TableName, err)
	}

	jsonColumns := make(map[string]bool)
	for _, field := range h.Fields {
		if field.Type == "json" || field.Type == "array" {
			jsonColumns[field.Name] = true
		}
	}

	record := make(map[string]interface{}, len(columns))
	for i, column := range columns {
		record[column] = decodeValue(raw[i], jsonColumns[column])
	}
	return record, nil
}

// encodeValue converts composite attribute values to their JSONB wire form.
func encodeValue(value interface{}) interface{} {
	switch value.(type) {
	case map[string]interface{}, []interface{}:
		encoded, err := json.Marshal(value)
		if err != nil {
			return value
		}
		return encoded
	}
	return value
}

// decodeValue normalizes driver values for serialization: byte slices become
// strings, JSONB columns are decoded back into structured values.
func decodeValue(value interface{}, isJSON bool) interface{} {
	b, ok := value.([]byte)
	if !ok {
		return value
	}
	if isJSON {
		var decoded interface{}
		if err := json.Unmarshal(b, &decoded); err == nil {
			return decoded
		}
	}
	return string(b)
}
