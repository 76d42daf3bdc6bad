package ddl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/services/relations"
)

// querier is the subset of database/sql the synchronizer issues statements
// through. Satisfied by *sql.DB and *sql.Tx; callers pass a transaction so
// catalog writes and DDL commit or roll back together.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Synchronizer keeps a tenant's physical tables in step with its declared
// definitions: create on generate, diff-and-alter on update, ordered teardown
// on cleanup. All identifiers it renders have already passed the definition
// validator's grammar.
type Synchronizer struct {
	logger zerolog.Logger
}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer(logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{logger: logger}
}

// EnsureTable creates the backing table for a definition if it does not exist,
// along with its indexes and any join tables for resolved many-to-many links.
// An already-existing table is a no-op so repeated generation converges.
func (s *Synchronizer) EnsureTable(ctx context.Context, q querier, def *entities.EntityDefinition, links []relations.Link) error {
	tableName := def.TableName()

	exists, err := s.tableExists(ctx, q, tableName)
	if err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to check existence of table %s", tableName), err)
	}

	if !exists {
		stmt, err := createTableStatement(def, links)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to create table %s", tableName), err)
		}
		s.logger.Info().Str("table", tableName).Msg("created table")
	}

	if err := s.ensureIndexes(ctx, q, def, links); err != nil {
		return err
	}
	return s.ensureJoinTables(ctx, q, def, links)
}

// AlterTable reconciles an existing table's columns with the definition: new
// field and belongs_to columns are added, columns no longer declared are
// dropped. System columns are never touched.
func (s *Synchronizer) AlterTable(ctx context.Context, q querier, def *entities.EntityDefinition, links []relations.Link) error {
	tableName := def.TableName()

	current, err := s.currentColumns(ctx, q, tableName)
	if err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to inspect columns of table %s", tableName), err)
	}

	desired := make(map[string]string)
	for _, field := range def.Fields {
		clause, err := ColumnDefinition(field)
		if err != nil {
			return err
		}
		desired[field.Name] = clause
	}
	for _, link := range links {
		if link.Kind == entities.RelationshipBelongsTo {
			desired[link.ForeignKeyColumn] = foreignKeyColumnDefinition(link)
		}
	}

	for name, clause := range desired {
		if current[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tableName, clause)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to add column %s to table %s", name, tableName), err)
		}
		s.logger.Info().Str("table", tableName).Str("column", name).Msg("added column")
	}

	for name := range current {
		if entities.IsSystemColumn(name) {
			continue
		}
		if _, keep := desired[name]; keep {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", tableName, name)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to drop column %s from table %s", name, tableName), err)
		}
		s.logger.Info().Str("table", tableName).Str("column", name).Msg("dropped column")
	}

	if err := s.ensureIndexes(ctx, q, def, links); err != nil {
		return err
	}
	return s.ensureJoinTables(ctx, q, def, links)
}

// DropTable tears down a definition's physical footprint in dependency order:
// foreign key constraints pointing at the table are dropped first, then the
// many-to-many join tables, then the table itself.
func (s *Synchronizer) DropTable(ctx context.Context, q querier, def *entities.EntityDefinition, links []relations.Link) error {
	tableName := def.TableName()

	if err := s.dropIncomingForeignKeys(ctx, q, tableName); err != nil {
		return err
	}

	for _, link := range links {
		if link.Kind != entities.RelationshipHasAndBelongsToMany || link.JoinTable == "" {
			continue
		}
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", link.JoinTable)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to drop join table %s", link.JoinTable), err)
		}
		s.logger.Info().Str("table", link.JoinTable).Msg("dropped join table")
	}

	if _, err := q.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName)); err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to drop table %s", tableName), err)
	}
	s.logger.Info().Str("table", tableName).Msg("dropped table")
	return nil
}

// EnsureJoinTable creates the join table for a many-to-many link if missing.
// The table carries a foreign key column per side and a unique compound index
// so the same pair cannot be linked twice.
func (s *Synchronizer) EnsureJoinTable(ctx context.Context, q querier, def *entities.EntityDefinition, link relations.Link) error {
	leftColumn := def.ForeignKeyColumn()
	rightColumn := entities.Underscore(link.TargetModel) + "_id"

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
	%s BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, link.JoinTable, leftColumn, def.TableName(), rightColumn, link.TargetTable)
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to create join table %s", link.JoinTable), err)
	}

	indexName := fmt.Sprintf("index_%s_on_%s_and_%s", link.JoinTable, leftColumn, rightColumn)
	indexStmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s, %s)", indexName, link.JoinTable, leftColumn, rightColumn)
	if _, err := q.ExecContext(ctx, indexStmt); err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to index join table %s", link.JoinTable), err)
	}
	return nil
}

func (s *Synchronizer) tableExists(ctx context.Context, q querier, tableName string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		tableName,
	).Scan(&exists)
	return exists, err
}

func (s *Synchronizer) currentColumns(ctx context.Context, q querier, tableName string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1",
		tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

func (s *Synchronizer) ensureIndexes(ctx context.Context, q querier, def *entities.EntityDefinition, links []relations.Link) error {
	tableName := def.TableName()

	for _, field := range def.Fields {
		unique := entities.OptionBool(field.Options, "unique")
		indexed := entities.OptionBool(field.Options, "index")
		if !unique && !indexed {
			continue
		}
		var stmt string
		if unique {
			stmt = fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS index_%s_on_%s ON %s (%s)", tableName, field.Name, tableName, field.Name)
		} else {
			stmt = fmt.Sprintf("CREATE INDEX IF NOT EXISTS index_%s_on_%s ON %s (%s)", tableName, field.Name, tableName, field.Name)
		}
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to index column %s on table %s", field.Name, tableName), err)
		}
	}

	// belongs_to foreign keys always get an index.
	for _, link := range links {
		if link.Kind != entities.RelationshipBelongsTo {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS index_%s_on_%s ON %s (%s)", tableName, link.ForeignKeyColumn, tableName, link.ForeignKeyColumn)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to index column %s on table %s", link.ForeignKeyColumn, tableName), err)
		}
	}
	return nil
}

func (s *Synchronizer) ensureJoinTables(ctx context.Context, q querier, def *entities.EntityDefinition, links []relations.Link) error {
	for _, link := range links {
		if link.Kind != entities.RelationshipHasAndBelongsToMany {
			continue
		}
		// Join tables need both sides materialized; a forward reference is
		// picked up when the target entity is generated or this one updates.
		if !link.Resolved {
			s.logger.Warn().
				Str("table", def.TableName()).
				Str("target", link.TargetModel).
				Msg("skipping join table for unresolved target")
			continue
		}
		if err := s.EnsureJoinTable(ctx, q, def, link); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) dropIncomingForeignKeys(ctx context.Context, q querier, tableName string) error {
	rows, err := q.QueryContext(ctx, `
		SELECT tc.table_name, tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = 'public'
			AND ccu.table_name = $1`,
		tableName,
	)
	if err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to find foreign keys referencing table %s", tableName), err)
	}
	defer rows.Close()

	type constraint struct {
		table string
		name  string
	}
	var constraints []constraint
	for rows.Next() {
		var c constraint
		if err := rows.Scan(&c.table, &c.name); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to find foreign keys referencing table %s", tableName), err)
		}
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return entities.NewTableOperationError(fmt.Sprintf("failed to find foreign keys referencing table %s", tableName), err)
	}

	for _, c := range constraints {
		stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", c.table, c.name)
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return entities.NewTableOperationError(fmt.Sprintf("failed to drop constraint %s on table %s", c.name, c.table), err)
		}
		s.logger.Info().Str("table", c.table).Str("constraint", c.name).Msg("dropped foreign key constraint")
	}
	return nil
}

func createTableStatement(def *entities.EntityDefinition, links []relations.Link) (string, error) {
	clauses := []string{"id BIGSERIAL PRIMARY KEY"}

	for _, field := range def.Fields {
		clause, err := ColumnDefinition(field)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}

	for _, link := range links {
		if link.Kind == entities.RelationshipBelongsTo {
			clauses = append(clauses, foreignKeyColumnDefinition(link))
		}
	}

	clauses = append(clauses,
		"organization_id BIGINT NOT NULL REFERENCES organizations(id)",
		"created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP",
		"updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP",
	)

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", def.TableName(), strings.Join(clauses, ",\n\t")), nil
}

func foreignKeyColumnDefinition(link relations.Link) string {
	clause := fmt.Sprintf("%s BIGINT REFERENCES %s(id)", link.ForeignKeyColumn, link.TargetTable)
	if link.Required {
		clause = fmt.Sprintf("%s BIGINT NOT NULL REFERENCES %s(id)", link.ForeignKeyColumn, link.TargetTable)
	}
	return clause
}
