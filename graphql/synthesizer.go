// Package graphql synthesizes the authorized GraphQL surface: given the base
// object types, entity metadata and the permission index, it emits Mutation
// and Query root types containing only the fields at least one role may
// invoke, plus the input types those fields reference.
package graphql

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/authorization"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/metadata"
)

// AuthorizeDirective is the directive attached to every synthesized field,
// carrying exactly the role set authorized for that field's operation.
const AuthorizeDirective = "authorize"

// Synthesizer builds the authorized schema fragment. It only reads its
// inputs; synthesis is pure and safe to run concurrently against different
// configuration snapshots.
type Synthesizer struct {
	dialect  config.Dialect
	store    *metadata.Store
	resolver *authorization.Resolver
}

// NewSynthesizer wires a synthesizer over one configuration snapshot. A nil
// resolver means no roles are authorized for anything: the synthesized
// surface is empty, never wide open.
func NewSynthesizer(dialect config.Dialect, store *metadata.Store, resolver *authorization.Resolver) *Synthesizer {
	return &Synthesizer{dialect: dialect, store: store, resolver: resolver}
}

// Fragment is the immutable result of one synthesis pass: zero-or-one
// Mutation root, zero-or-one Query root, and the input types they reference.
type Fragment struct {
	Mutation *ast.Definition
	Query    *ast.Definition
	Inputs   []*ast.Definition
}

// Definitions flattens the fragment for merging into a full schema document.
func (f *Fragment) Definitions() ast.DefinitionList {
	var defs ast.DefinitionList
	if f.Query != nil {
		defs = append(defs, f.Query)
	}
	if f.Mutation != nil {
		defs = append(defs, f.Mutation)
	}
	defs = append(defs, f.Inputs...)
	return defs
}

// Synthesize walks every entity-backed object type in the base schema and
// emits the fields authorized for at least one role. Field order follows
// iteration order of the base document and is not part of the contract; the
// contract is the exact set of authorized (entity, operation) pairs.
func (s *Synthesizer) Synthesize(base *ast.SchemaDocument) (*Fragment, error) {
	b := &builder{
		syn:    s,
		inputs: make(map[string]*ast.Definition),
	}

	for _, def := range base.Definitions {
		if def.Kind != ast.Object {
			continue
		}
		if def.Name == "Query" || def.Name == "Mutation" || def.Name == "Subscription" {
			continue
		}

		entity, ok := s.store.EntityForType(def.Name)
		if !ok {
			// The base schema and the entity configuration must agree
			// 1:1; a miss means a prior step produced an inconsistent
			// snapshot.
			return nil, apierror.NewInitError("object type %q has no corresponding entity configuration", def.Name)
		}
		if !entity.GraphQLEnabled {
			continue
		}

		if entity.IsStoredProcedure() {
			if err := b.addStoredProcedure(entity, def); err != nil {
				return nil, err
			}
			continue
		}

		if err := b.addTableOrView(entity, def); err != nil {
			return nil, err
		}
	}

	frag := &Fragment{Inputs: b.inputOrder}
	// A root operation type with no fields is not a meaningful declaration;
	// downstream schema validation would reject it.
	if len(b.mutationFields) > 0 {
		frag.Mutation = &ast.Definition{
			Kind:   ast.Object,
			Name:   "Mutation",
			Fields: b.mutationFields,
		}
	}
	if len(b.queryFields) > 0 {
		frag.Query = &ast.Definition{
			Kind:   ast.Object,
			Name:   "Query",
			Fields: b.queryFields,
		}
	}

	logger.WithFields(map[string]interface{}{
		"mutation_fields": len(b.mutationFields),
		"query_fields":    len(b.queryFields),
		"input_types":     len(b.inputOrder),
	}).Debug("Schema synthesis complete")

	return frag, nil
}

// builder accumulates one synthesis pass. It is private to the pass and
// discarded afterward, which is what keeps Synthesize re-entrant.
type builder struct {
	syn            *Synthesizer
	mutationFields ast.FieldList
	queryFields    ast.FieldList
	inputs         map[string]*ast.Definition
	inputOrder     []*ast.Definition
}

// addStoredProcedure emits exactly one field for a stored procedure entity,
// on the root its configuration selects (default: Mutation). The per-CRUD
// fan-out never applies to procedures.
func (b *builder) addStoredProcedure(entity *metadata.Entity, def *ast.Definition) error {
	roles := b.syn.resolver.RolesAuthorizedFor(entity.Name, authorization.OpExecute)
	if len(roles) == 0 {
		return nil
	}

	if entity.Object == nil {
		// Introspection never resolved the procedure; continuing would
		// silently publish an incomplete schema.
		return apierror.NewInitError("stored procedure %q has no resolved database schema; schema introspection did not complete", entity.Name)
	}

	field := &ast.FieldDefinition{
		Name:       "execute" + def.Name,
		Type:       ast.ListType(ast.NonNullNamedType(def.Name, nil), nil),
		Directives: ast.DirectiveList{authorizeDirective(roles)},
	}
	for _, param := range entity.Object.Parameters {
		paramType := ast.NamedType(scalarForDataType(param.DataType), nil)
		if !param.Nullable {
			paramType = ast.NonNullNamedType(scalarForDataType(param.DataType), nil)
		}
		field.Arguments = append(field.Arguments, &ast.ArgumentDefinition{
			Name: param.Name,
			Type: paramType,
		})
	}

	if entity.ResolvedOperation() == config.OperationQuery {
		b.queryFields = append(b.queryFields, field)
	} else {
		b.mutationFields = append(b.mutationFields, field)
	}
	return nil
}

// addTableOrView evaluates each operation independently: create, update and
// delete on the Mutation root, read on the Query root. Operations with an
// empty role set are silently omitted; partial exposure is the expected
// steady state.
func (b *builder) addTableOrView(entity *metadata.Entity, def *ast.Definition) error {
	createRoles := b.syn.resolver.RolesAuthorizedFor(entity.Name, authorization.OpCreate)
	updateRoles := b.syn.resolver.RolesAuthorizedFor(entity.Name, authorization.OpUpdateGraphQL)
	deleteRoles := b.syn.resolver.RolesAuthorizedFor(entity.Name, authorization.OpDelete)
	readRoles := b.syn.resolver.RolesAuthorizedFor(entity.Name, authorization.OpRead)

	if len(createRoles) == 0 && len(updateRoles) == 0 && len(deleteRoles) == 0 && len(readRoles) == 0 {
		return nil
	}

	if entity.Object == nil {
		return apierror.NewInitError("entity %q has no resolved database schema; schema introspection did not complete", entity.Name)
	}

	pkCols := entity.Object.PrimaryKeyColumns()

	if len(createRoles) > 0 {
		input := b.createInputType(def.Name, entity.Object)
		b.mutationFields = append(b.mutationFields, &ast.FieldDefinition{
			Name: "create" + def.Name,
			Arguments: ast.ArgumentDefinitionList{{
				Name: "item",
				Type: ast.NonNullNamedType(input.Name, nil),
			}},
			Type:       ast.NamedType(def.Name, nil),
			Directives: ast.DirectiveList{authorizeDirective(createRoles)},
		})
	}

	if len(updateRoles) > 0 {
		input := b.updateInputType(def.Name, entity.Object)
		field := &ast.FieldDefinition{
			Name:       "update" + def.Name,
			Type:       ast.NamedType(def.Name, nil),
			Directives: ast.DirectiveList{authorizeDirective(updateRoles)},
		}
		field.Arguments = primaryKeyArguments(pkCols)
		field.Arguments = append(field.Arguments, &ast.ArgumentDefinition{
			Name: "item",
			Type: ast.NonNullNamedType(input.Name, nil),
		})
		b.mutationFields = append(b.mutationFields, field)
	}

	if len(deleteRoles) > 0 {
		b.mutationFields = append(b.mutationFields, &ast.FieldDefinition{
			Name:       "delete" + def.Name,
			Arguments:  primaryKeyArguments(pkCols),
			Type:       ast.NamedType(def.Name, nil),
			Directives: ast.DirectiveList{authorizeDirective(deleteRoles)},
		})
	}

	if len(readRoles) > 0 {
		byPK := &ast.FieldDefinition{
			Name:       byPKFieldName(def.Name),
			Arguments:  primaryKeyArguments(pkCols),
			Type:       ast.NamedType(def.Name, nil),
			Directives: ast.DirectiveList{authorizeDirective(readRoles)},
		}
		list := &ast.FieldDefinition{
			Name: listFieldName(def.Name),
			Arguments: ast.ArgumentDefinitionList{{
				Name: "first",
				Type: ast.NamedType("Int", nil),
			}},
			Type:       ast.NonNullListType(ast.NonNullNamedType(def.Name, nil), nil),
			Directives: ast.DirectiveList{authorizeDirective(readRoles)},
		}
		b.queryFields = append(b.queryFields, byPK, list)
	}

	return nil
}

// createInputType builds (or reuses) Create<Type>Input: every column except
// auto-generated ones, non-null when the database would reject its absence.
func (b *builder) createInputType(typeName string, obj *metadata.DatabaseObject) *ast.Definition {
	name := "Create" + typeName + "Input"
	if cached, ok := b.inputs[name]; ok {
		return cached
	}

	input := &ast.Definition{Kind: ast.InputObject, Name: name}
	for _, col := range obj.Columns {
		if col.IsAutoGenerated {
			continue
		}
		fieldType := ast.NamedType(scalarForDataType(col.DataType), nil)
		if !col.Nullable && !col.HasDefault {
			fieldType = ast.NonNullNamedType(scalarForDataType(col.DataType), nil)
		}
		input.Fields = append(input.Fields, &ast.FieldDefinition{
			Name: col.Name,
			Type: fieldType,
		})
	}

	b.register(input)
	return input
}

// updateInputType builds (or reuses) Update<Type>Input. The relational
// dialects take a partial set: every non-key column, all optional. The
// document dialect replaces the whole item, so its update input mirrors the
// create input's shape.
func (b *builder) updateInputType(typeName string, obj *metadata.DatabaseObject) *ast.Definition {
	name := "Update" + typeName + "Input"
	if cached, ok := b.inputs[name]; ok {
		return cached
	}

	input := &ast.Definition{Kind: ast.InputObject, Name: name}
	for _, col := range obj.Columns {
		if col.IsAutoGenerated {
			continue
		}
		if b.syn.dialect.IsRelational() {
			if col.IsPrimaryKey {
				continue
			}
			input.Fields = append(input.Fields, &ast.FieldDefinition{
				Name: col.Name,
				Type: ast.NamedType(scalarForDataType(col.DataType), nil),
			})
			continue
		}
		fieldType := ast.NamedType(scalarForDataType(col.DataType), nil)
		if !col.Nullable && !col.HasDefault {
			fieldType = ast.NonNullNamedType(scalarForDataType(col.DataType), nil)
		}
		input.Fields = append(input.Fields, &ast.FieldDefinition{
			Name: col.Name,
			Type: fieldType,
		})
	}

	b.register(input)
	return input
}

func (b *builder) register(input *ast.Definition) {
	b.inputs[input.Name] = input
	b.inputOrder = append(b.inputOrder, input)
}

func primaryKeyArguments(pkCols []metadata.Column) ast.ArgumentDefinitionList {
	args := make(ast.ArgumentDefinitionList, 0, len(pkCols))
	for _, col := range pkCols {
		args = append(args, &ast.ArgumentDefinition{
			Name: col.Name,
			Type: ast.NonNullNamedType(scalarForDataType(col.DataType), nil),
		})
	}
	return args
}

// authorizeDirective annotates a field with its own role restriction.
// Create, update and delete may be authorized for disjoint role sets, so
// fields never inherit a single per-entity restriction.
func authorizeDirective(roles []string) *ast.Directive {
	value := &ast.Value{Kind: ast.ListValue}
	for _, role := range roles {
		value.Children = append(value.Children, &ast.ChildValue{
			Value: &ast.Value{Raw: role, Kind: ast.StringValue},
		})
	}
	return &ast.Directive{
		Name: AuthorizeDirective,
		Arguments: ast.ArgumentList{{
			Name:  "roles",
			Value: value,
		}},
	}
}

func byPKFieldName(typeName string) string {
	return lowerFirst(typeName) + "_by_pk"
}

func listFieldName(typeName string) string {
	name := lowerFirst(typeName)
	if strings.HasSuffix(name, "s") {
		return name + "_all"
	}
	return name + "s"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
