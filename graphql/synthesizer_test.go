package graphql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/authorization"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/metadata"
)

var bookObject = &metadata.DatabaseObject{
	Kind: metadata.KindTable,
	Name: "public.books",
	Columns: []metadata.Column{
		{Name: "id", DataType: "integer", IsPrimaryKey: true, IsAutoGenerated: true},
		{Name: "title", DataType: "text"},
		{Name: "year", DataType: "integer", Nullable: true},
	},
}

func bookConfig(perms []config.PermissionSetting) config.EntityConfig {
	return config.EntityConfig{
		Source:      config.SourceConfig{Object: "public.books", Type: config.SourceTable},
		Permissions: perms,
	}
}

// newFixture builds a store and resolver over the given entities, resolving
// every table/view entity to the shared book object shape.
func newFixture(t *testing.T, entities map[string]config.EntityConfig) (*metadata.Store, *authorization.Resolver) {
	t.Helper()
	cfg := &config.RuntimeConfig{
		DataSource: config.DataSourceConfig{DatabaseType: config.DialectPostgreSQL},
		Entities:   entities,
	}
	store, err := metadata.NewStore(cfg)
	require.NoError(t, err)
	return store, authorization.NewResolver(cfg)
}

func fieldNames(def *ast.Definition) []string {
	if def == nil {
		return nil
	}
	names := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		names = append(names, f.Name)
	}
	return names
}

func findField(t *testing.T, def *ast.Definition, name string) *ast.FieldDefinition {
	t.Helper()
	require.NotNil(t, def)
	for _, f := range def.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %s not found in %s", name, def.Name)
	return nil
}

func directiveRoles(t *testing.T, field *ast.FieldDefinition) []string {
	t.Helper()
	for _, d := range field.Directives {
		if d.Name != AuthorizeDirective {
			continue
		}
		for _, arg := range d.Arguments {
			if arg.Name != "roles" {
				continue
			}
			roles := make([]string, 0, len(arg.Value.Children))
			for _, child := range arg.Value.Children {
				roles = append(roles, child.Value.Raw)
			}
			return roles
		}
	}
	t.Fatalf("field %s has no authorize directive with roles", field.Name)
	return nil
}

func TestSynthesize_FullyAuthorizedTable(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "anonymous", Actions: []string{"read"}},
			{Role: "author", Actions: []string{"create", "update"}},
			{Role: "admin", Actions: []string{"*"}},
		}),
	})
	require.NoError(t, store.SetObject("Book", bookObject))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"createBook", "updateBook", "deleteBook"}, fieldNames(frag.Mutation))
	assert.ElementsMatch(t, []string{"book_by_pk", "books"}, fieldNames(frag.Query))

	create := findField(t, frag.Mutation, "createBook")
	require.Len(t, create.Arguments, 1)
	assert.Equal(t, "item", create.Arguments[0].Name)
	assert.Equal(t, "CreateBookInput", create.Arguments[0].Type.Name())
	assert.True(t, create.Arguments[0].Type.NonNull)

	update := findField(t, frag.Mutation, "updateBook")
	require.Len(t, update.Arguments, 2)
	assert.Equal(t, "id", update.Arguments[0].Name)
	assert.True(t, update.Arguments[0].Type.NonNull)
	assert.Equal(t, "item", update.Arguments[1].Name)
	assert.Equal(t, "UpdateBookInput", update.Arguments[1].Type.Name())

	del := findField(t, frag.Mutation, "deleteBook")
	require.Len(t, del.Arguments, 1)
	assert.Equal(t, "id", del.Arguments[0].Name)

	byPK := findField(t, frag.Query, "book_by_pk")
	require.Len(t, byPK.Arguments, 1)
	assert.Equal(t, "id", byPK.Arguments[0].Name)
}

func TestSynthesize_DirectiveCarriesPerOperationRoles(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "anonymous", Actions: []string{"read"}},
			{Role: "author", Actions: []string{"read", "create"}},
			{Role: "editor", Actions: []string{"delete"}},
		}),
	})
	require.NoError(t, store.SetObject("Book", bookObject))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	assert.Equal(t, []string{"author"}, directiveRoles(t, findField(t, frag.Mutation, "createBook")))
	assert.Equal(t, []string{"editor"}, directiveRoles(t, findField(t, frag.Mutation, "deleteBook")))
	assert.Equal(t, []string{"anonymous", "author"}, directiveRoles(t, findField(t, frag.Query, "book_by_pk")))
	assert.Equal(t, []string{"anonymous", "author"}, directiveRoles(t, findField(t, frag.Query, "books")))
}

func TestSynthesize_UnauthorizedEntityOmitted(t *testing.T) {
	// No roles at all: the entity contributes nothing and its unresolved
	// database object is never consulted.
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig(nil),
	})

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	assert.Nil(t, frag.Mutation)
	assert.Nil(t, frag.Query)
	assert.Empty(t, frag.Inputs)
}

func TestSynthesize_RootsOmittedWhenEmpty(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "anonymous", Actions: []string{"read"}},
		}),
	})
	require.NoError(t, store.SetObject("Book", bookObject))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	assert.Nil(t, frag.Mutation, "read-only surface must not declare an empty Mutation root")
	assert.ElementsMatch(t, []string{"book_by_pk", "books"}, fieldNames(frag.Query))
}

func TestSynthesize_CreateInputShape(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "author", Actions: []string{"create"}},
		}),
	})
	require.NoError(t, store.SetObject("Book", bookObject))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	require.Len(t, frag.Inputs, 1)
	input := frag.Inputs[0]
	assert.Equal(t, "CreateBookInput", input.Name)
	assert.Equal(t, ast.InputObject, input.Kind)

	// The auto-generated id column is excluded entirely.
	assert.ElementsMatch(t, []string{"title", "year"}, fieldNames(input))
	title := findField(t, input, "title")
	assert.True(t, title.Type.NonNull, "required column stays required")
	year := findField(t, input, "year")
	assert.False(t, year.Type.NonNull, "nullable column stays optional")
}

func TestSynthesize_RelationalUpdateInputIsPartial(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "author", Actions: []string{"update"}},
		}),
	})
	require.NoError(t, store.SetObject("Book", bookObject))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	require.Len(t, frag.Inputs, 1)
	input := frag.Inputs[0]
	assert.Equal(t, "UpdateBookInput", input.Name)
	assert.ElementsMatch(t, []string{"title", "year"}, fieldNames(input))
	for _, f := range input.Fields {
		assert.False(t, f.Type.NonNull, "update input fields are all optional: %s", f.Name)
	}
}

func TestSynthesize_DocumentUpdateInputMirrorsCreate(t *testing.T) {
	cfg := &config.RuntimeConfig{
		DataSource: config.DataSourceConfig{DatabaseType: config.DialectDocumentDB},
		Entities: map[string]config.EntityConfig{
			"Book": {
				Source: config.SourceConfig{
					Object:    "books",
					Type:      config.SourceTable,
					KeyFields: []string{"id"},
					Columns: []config.ColumnConfig{
						{Name: "id", Type: "ID"},
						{Name: "title", Type: "String"},
						{Name: "year", Type: "Int", Nullable: true},
					},
				},
				Permissions: []config.PermissionSetting{
					{Role: "author", Actions: []string{"create", "update"}},
				},
			},
		},
	}
	store, err := metadata.NewStore(cfg)
	require.NoError(t, err)
	resolver := authorization.NewResolver(cfg)

	syn := NewSynthesizer(config.DialectDocumentDB, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	require.Len(t, frag.Inputs, 2)
	var create, update *ast.Definition
	for _, input := range frag.Inputs {
		switch input.Name {
		case "CreateBookInput":
			create = input
		case "UpdateBookInput":
			update = input
		}
	}
	require.NotNil(t, create)
	require.NotNil(t, update)

	// Document replacement semantics: the update input repeats the create
	// input's fields and requiredness.
	require.Equal(t, len(create.Fields), len(update.Fields))
	for i := range create.Fields {
		assert.Equal(t, create.Fields[i].Name, update.Fields[i].Name)
		assert.Equal(t, create.Fields[i].Type.NonNull, update.Fields[i].Type.NonNull)
	}
}

func TestSynthesize_StoredProcedureSingleField(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"CountBooks": {
			Source: config.SourceConfig{Object: "count_books", Type: config.SourceStoredProcedure},
			Permissions: []config.PermissionSetting{
				{Role: "admin", Actions: []string{"execute"}},
			},
		},
	})
	require.NoError(t, store.SetObject("CountBooks", &metadata.DatabaseObject{
		Kind: metadata.KindStoredProcedure,
		Name: "count_books",
		Parameters: []metadata.Parameter{
			{Name: "published_after", DataType: "integer", Nullable: true},
		},
	}))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	// Exactly one field, on the Mutation root by default.
	assert.Nil(t, frag.Query)
	require.NotNil(t, frag.Mutation)
	require.Len(t, frag.Mutation.Fields, 1)

	field := frag.Mutation.Fields[0]
	assert.Equal(t, "executeCountBooks", field.Name)
	require.Len(t, field.Arguments, 1)
	assert.Equal(t, "published_after", field.Arguments[0].Name)
	assert.False(t, field.Arguments[0].Type.NonNull)
	assert.Equal(t, []string{"admin"}, directiveRoles(t, field))
}

func TestSynthesize_StoredProcedureQueryOverride(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"CountBooks": {
			Source:  config.SourceConfig{Object: "count_books", Type: config.SourceStoredProcedure},
			GraphQL: config.EntityGraphQL{Operation: config.OperationQuery},
			Permissions: []config.PermissionSetting{
				{Role: "admin", Actions: []string{"execute"}},
			},
		},
	})
	require.NoError(t, store.SetObject("CountBooks", &metadata.DatabaseObject{
		Kind:       metadata.KindStoredProcedure,
		Name:       "count_books",
		Parameters: []metadata.Parameter{},
	}))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	assert.Nil(t, frag.Mutation)
	require.NotNil(t, frag.Query)
	require.Len(t, frag.Query.Fields, 1)

	// Zero parameters is a valid procedure shape; the field simply has no
	// arguments.
	field := frag.Query.Fields[0]
	assert.Equal(t, "executeCountBooks", field.Name)
	assert.Empty(t, field.Arguments)
}

func TestSynthesize_StoredProcedureWithoutSchemaFails(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"CountBooks": {
			Source: config.SourceConfig{Object: "count_books", Type: config.SourceStoredProcedure},
			Permissions: []config.PermissionSetting{
				{Role: "admin", Actions: []string{"execute"}},
			},
		},
	})

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	_, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.Error(t, err)

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.SubCodeErrorInInitialization, apiErr.Sub)
}

func TestSynthesize_TableWithoutSchemaFails(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "anonymous", Actions: []string{"read"}},
		}),
	})

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	_, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.Error(t, err)

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.SubCodeErrorInInitialization, apiErr.Sub)
}

func TestSynthesize_NilResolverYieldsEmptySurface(t *testing.T) {
	store, _ := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "admin", Actions: []string{"*"}},
		}),
	})
	require.NoError(t, store.SetObject("Book", bookObject))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, nil)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	assert.Nil(t, frag.Mutation)
	assert.Nil(t, frag.Query)
	assert.Empty(t, frag.Inputs)
}

func TestSynthesize_Idempotent(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Book": bookConfig([]config.PermissionSetting{
			{Role: "admin", Actions: []string{"*"}},
		}),
		"Review": {
			Source: config.SourceConfig{Object: "public.reviews", Type: config.SourceTable},
			Permissions: []config.PermissionSetting{
				{Role: "anonymous", Actions: []string{"read"}},
			},
		},
	})
	require.NoError(t, store.SetObject("Book", bookObject))
	require.NoError(t, store.SetObject("Review", &metadata.DatabaseObject{
		Kind: metadata.KindTable,
		Name: "public.reviews",
		Columns: []metadata.Column{
			{Name: "book_id", DataType: "integer", IsPrimaryKey: true},
			{Name: "id", DataType: "integer", IsPrimaryKey: true},
			{Name: "content", DataType: "text"},
		},
	}))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	base := BaseSchemaFromMetadata(store)

	first, err := syn.Synthesize(base)
	require.NoError(t, err)
	second, err := syn.Synthesize(base)
	require.NoError(t, err)

	assert.ElementsMatch(t, fieldNames(first.Mutation), fieldNames(second.Mutation))
	assert.ElementsMatch(t, fieldNames(first.Query), fieldNames(second.Query))
	require.Equal(t, len(first.Inputs), len(second.Inputs))
}

func TestSynthesize_CompositeKeyArguments(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{
		"Review": {
			Source: config.SourceConfig{Object: "public.reviews", Type: config.SourceTable},
			Permissions: []config.PermissionSetting{
				{Role: "editor", Actions: []string{"delete"}},
			},
		},
	})
	require.NoError(t, store.SetObject("Review", &metadata.DatabaseObject{
		Kind: metadata.KindTable,
		Name: "public.reviews",
		Columns: []metadata.Column{
			{Name: "book_id", DataType: "integer", IsPrimaryKey: true},
			{Name: "id", DataType: "integer", IsPrimaryKey: true},
			{Name: "content", DataType: "text"},
		},
	}))

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	frag, err := syn.Synthesize(BaseSchemaFromMetadata(store))
	require.NoError(t, err)

	del := findField(t, frag.Mutation, "deleteReview")
	require.Len(t, del.Arguments, 2)
	assert.Equal(t, "book_id", del.Arguments[0].Name)
	assert.Equal(t, "id", del.Arguments[1].Name)
}

func TestSynthesize_TypeNotBackedByEntityFails(t *testing.T) {
	store, resolver := newFixture(t, map[string]config.EntityConfig{})

	base, err := ParseBaseSchema("type Orphan { id: ID! }")
	require.NoError(t, err)

	syn := NewSynthesizer(config.DialectPostgreSQL, store, resolver)
	_, err = syn.Synthesize(base)
	require.Error(t, err)

	var apiErr *apierror.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, apierror.SubCodeErrorInInitialization, apiErr.Sub)
}

func TestListFieldName(t *testing.T) {
	assert.Equal(t, "books", listFieldName("Book"))
	assert.Equal(t, "series_all", listFieldName("Series"))
}
