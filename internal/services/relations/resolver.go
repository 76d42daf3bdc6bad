package relations

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

// Link is a resolved relationship binding. It is a declarative record: the
// target entity's own definition is never mutated to gain an inverse
// association, the inverse is derived from the link when needed.
type Link struct {
	Name        string
	Kind        string
	TargetModel string

	// TargetTable and TargetType are derived from the target's generated
	// identity; for unresolved forward references they are still computed
	// deterministically so DDL can be issued once the target materializes.
	TargetTable string
	TargetType  string

	// ForeignKeyColumn lives on the owning table for belongs_to and on the
	// target's table for has_many/has_one.
	ForeignKeyColumn string

	// JoinTable is set for has_and_belongs_to_many only.
	JoinTable string

	Required bool

	// Resolved reports whether the target entity existed at resolution
	// time. belongs_to requires it; has_many/has_one tolerate forward
	// references but flag them.
	Resolved bool
}

// DefinitionLookup fetches a target definition by name within a tenant.
type DefinitionLookup interface {
	GetByName(ctx context.Context, organizationID int64, name string) (*entities.EntityDefinition, error)
}

// Resolver resolves relationship declarations against other entities'
// generated identities.
type Resolver struct {
	definitions DefinitionLookup
	logger      zerolog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(definitions DefinitionLookup, logger zerolog.Logger) *Resolver {
	return &Resolver{definitions: definitions, logger: logger}
}

// Resolve resolves every relationship on the definition. An unresolved
// belongs_to target is a ValidationError; unresolved has_many/has_one targets
// are tolerated (the target may be declared later) and flagged in the link.
func (r *Resolver) Resolve(ctx context.Context, def *entities.EntityDefinition) ([]Link, error) {
	links := make([]Link, 0, len(def.Relationships))
	for _, rel := range def.Relationships {
		link, err := r.resolveOne(ctx, def, rel)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func (r *Resolver) resolveOne(ctx context.Context, def *entities.EntityDefinition, rel *entities.RelationshipDefinition) (Link, error) {
	link := Link{
		Name:        rel.Name,
		Kind:        rel.Kind,
		TargetModel: rel.TargetModel,
		TargetTable: entities.TableNameFor(def.OrganizationID, rel.TargetModel),
		TargetType:  generatedTypeName(def.OrganizationID, rel.TargetModel),
	}

	target, err := r.definitions.GetByName(ctx, def.OrganizationID, rel.TargetModel)
	switch {
	case err == nil:
		link.Resolved = true
		link.TargetTable = target.TableName()
		link.TargetType = target.TypeName()
	case errors.Is(err, repositories.ErrNotFound):
		link.Resolved = false
	default:
		return Link{}, err
	}

	switch rel.Kind {
	case entities.RelationshipBelongsTo:
		if !link.Resolved {
			return Link{}, entities.NewValidationError("invalid relationship %s: target model %q does not exist", rel.Name, rel.TargetModel)
		}
		link.ForeignKeyColumn = rel.Name + "_id"
		link.Required = entities.OptionBool(rel.Options, "required")

	case entities.RelationshipHasMany, entities.RelationshipHasOne:
		// Back-reference keyed by the owning entity's FK column on the
		// target's table.
		link.ForeignKeyColumn = def.ForeignKeyColumn()
		if !link.Resolved {
			r.logger.Warn().
				Int64("organization_id", def.OrganizationID).
				Str("entity", def.Name).
				Str("relationship", rel.Name).
				Str("target", rel.TargetModel).
				Msg("relationship target not declared yet; tolerating forward reference")
		}

	case entities.RelationshipHasAndBelongsToMany:
		link.ForeignKeyColumn = def.ForeignKeyColumn()
		link.JoinTable = JoinTableName(def.TableName(), link.TargetTable)
	}

	return link, nil
}

// JoinTableName derives the deterministic join table name for a many-to-many
// relationship: the two table names sorted and concatenated.
func JoinTableName(table1, table2 string) string {
	names := []string{table1, table2}
	sort.Strings(names)
	return strings.Join(names, "_")
}

func generatedTypeName(organizationID int64, name string) string {
	def := entities.EntityDefinition{OrganizationID: organizationID, Name: name}
	return def.TypeName()
}
