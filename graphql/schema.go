package graphql

import (
	"bytes"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/metadata"
)

// ParseBaseSchema parses an SDL document into the base type schema the
// synthesizer consumes.
func ParseBaseSchema(sdl string) (*ast.SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "base", Input: sdl})
	if err != nil {
		return nil, apierror.NewInitError("failed to parse base schema: %v", err)
	}
	return doc, nil
}

// BaseSchemaFromMetadata derives the base object-type definitions from the
// metadata store: one object type per GraphQL-enabled entity, fields mapped
// from its columns (or parameters, for stored procedures). Entities whose
// database object is still unresolved yield an empty object type; the
// synthesizer decides whether that is fatal based on what is authorized.
func BaseSchemaFromMetadata(store *metadata.Store) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	for _, entity := range store.Entities() {
		if !entity.GraphQLEnabled {
			continue
		}
		def := &ast.Definition{Kind: ast.Object, Name: entity.GraphQLType}
		if entity.Object != nil {
			if entity.IsStoredProcedure() {
				for _, param := range entity.Object.Parameters {
					def.Fields = append(def.Fields, &ast.FieldDefinition{
						Name: param.Name,
						Type: ast.NamedType(scalarForDataType(param.DataType), nil),
					})
				}
			} else {
				for _, col := range entity.Object.Columns {
					fieldType := ast.NamedType(scalarForDataType(col.DataType), nil)
					if !col.Nullable {
						fieldType = ast.NonNullNamedType(scalarForDataType(col.DataType), nil)
					}
					def.Fields = append(def.Fields, &ast.FieldDefinition{
						Name: col.Name,
						Type: fieldType,
					})
				}
			}
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	return doc
}

// AssembleDocument merges the base types with a synthesized fragment into a
// complete schema document, including the @authorize directive declaration.
func AssembleDocument(base *ast.SchemaDocument, frag *Fragment) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	doc.Directives = append(doc.Directives, &ast.DirectiveDefinition{
		Name: AuthorizeDirective,
		Arguments: ast.ArgumentDefinitionList{{
			Name: "roles",
			Type: ast.ListType(ast.NonNullNamedType("String", nil), nil),
		}},
		Locations: []ast.DirectiveLocation{ast.LocationFieldDefinition},
	})
	for _, def := range base.Definitions {
		if def.Kind == ast.Object && (def.Name == "Query" || def.Name == "Mutation" || def.Name == "Subscription") {
			continue
		}
		doc.Definitions = append(doc.Definitions, def)
	}
	doc.Definitions = append(doc.Definitions, frag.Definitions()...)
	return doc
}

// PrintSDL renders a schema document as SDL text.
func PrintSDL(doc *ast.SchemaDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.String()
}
