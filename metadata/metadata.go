// Package metadata holds the per-entity view of the database: which object
// an entity maps to, its columns or parameters, and its GraphQL exposure.
// The store is built once from configuration, filled in by introspection,
// and read-only from then on.
package metadata

import (
	"fmt"
	"sort"

	"github.com/weiplanet/data-api-builder/config"
)

// ObjectKind is the closed set of database object kinds an entity can map to.
type ObjectKind string

const (
	KindTable           ObjectKind = "table"
	KindView            ObjectKind = "view"
	KindStoredProcedure ObjectKind = "stored-procedure"
)

// Column describes one column of a table or view.
type Column struct {
	Name            string
	DataType        string
	Nullable        bool
	IsPrimaryKey    bool
	HasDefault      bool
	IsAutoGenerated bool
}

// Parameter describes one stored procedure parameter.
type Parameter struct {
	Name     string
	DataType string
	Nullable bool
}

// DatabaseObject is the introspected descriptor of the underlying object.
// Kind decides which payload is populated: Columns for tables and views,
// Parameters for stored procedures. A nil *DatabaseObject on an Entity means
// introspection has not resolved it; an empty Parameters slice means the
// procedure takes no arguments.
type DatabaseObject struct {
	Kind       ObjectKind
	Name       string
	Columns    []Column
	Parameters []Parameter
}

// PrimaryKeyColumns returns the key columns of a table or view.
func (o *DatabaseObject) PrimaryKeyColumns() []Column {
	var keys []Column
	for _, col := range o.Columns {
		if col.IsPrimaryKey {
			keys = append(keys, col)
		}
	}
	return keys
}

// Entity is one configured API entity and its resolved database object.
type Entity struct {
	Name             string
	GraphQLType      string
	GraphQLEnabled   bool
	GraphQLOperation config.GraphQLOperation
	SourceObject     string
	Kind             ObjectKind
	KeyFields        []string

	// Object is resolved by introspection after construction and is nil
	// until then.
	Object *DatabaseObject
}

// IsStoredProcedure reports whether the entity maps to a stored procedure.
func (e *Entity) IsStoredProcedure() bool {
	return e.Kind == KindStoredProcedure
}

// ResolvedOperation returns the GraphQL exposure of a stored procedure.
// An unconfigured operation defaults to mutation.
func (e *Entity) ResolvedOperation() config.GraphQLOperation {
	if e.GraphQLOperation == config.OperationQuery {
		return config.OperationQuery
	}
	return config.OperationMutation
}

// Store indexes entities by name and by GraphQL type name.
type Store struct {
	entities map[string]*Entity
	byType   map[string]string
}

// NewStore builds the store from runtime configuration. Database objects for
// the document dialect are resolved immediately from declared columns; the
// relational dialects leave them nil for introspection to fill in.
func NewStore(cfg *config.RuntimeConfig) (*Store, error) {
	s := &Store{
		entities: make(map[string]*Entity, len(cfg.Entities)),
		byType:   make(map[string]string, len(cfg.Entities)),
	}

	for name, ec := range cfg.Entities {
		entity := &Entity{
			Name:             name,
			GraphQLType:      ec.GraphQLTypeName(name),
			GraphQLEnabled:   ec.GraphQL.IsEnabled(),
			GraphQLOperation: ec.GraphQL.Operation,
			SourceObject:     ec.Source.Object,
			Kind:             ObjectKind(ec.Source.Type),
			KeyFields:        ec.Source.KeyFields,
		}

		if other, dup := s.byType[entity.GraphQLType]; dup {
			return nil, fmt.Errorf("entities %q and %q map to the same GraphQL type %q", other, name, entity.GraphQLType)
		}
		s.entities[name] = entity
		s.byType[entity.GraphQLType] = name

		if cfg.DataSource.DatabaseType == config.DialectDocumentDB {
			entity.Object = objectFromConfig(ec)
		}
	}

	return s, nil
}

func objectFromConfig(ec config.EntityConfig) *DatabaseObject {
	keyed := make(map[string]bool, len(ec.Source.KeyFields))
	for _, k := range ec.Source.KeyFields {
		keyed[k] = true
	}
	obj := &DatabaseObject{
		Kind: ObjectKind(ec.Source.Type),
		Name: ec.Source.Object,
	}
	for _, col := range ec.Source.Columns {
		obj.Columns = append(obj.Columns, Column{
			Name:         col.Name,
			DataType:     col.Type,
			Nullable:     col.Nullable,
			IsPrimaryKey: keyed[col.Name],
		})
	}
	return obj
}

// Entity looks an entity up by its configured name.
func (s *Store) Entity(name string) (*Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// EntityForType maps a GraphQL object type name back to its entity. The
// mapping is 1:1; a miss means the base schema and the configuration have
// diverged, which callers treat as a configuration fault.
func (s *Store) EntityForType(typeName string) (*Entity, bool) {
	name, ok := s.byType[typeName]
	if !ok {
		return nil, false
	}
	return s.entities[name], true
}

// Entities returns all entities ordered by name.
func (s *Store) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetObject attaches an introspected database object to an entity.
func (s *Store) SetObject(entityName string, obj *DatabaseObject) error {
	e, ok := s.entities[entityName]
	if !ok {
		return fmt.Errorf("unknown entity %q", entityName)
	}
	e.Object = obj
	return nil
}
