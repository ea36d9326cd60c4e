package graphql

import "strings"

// graphqlScalars lets document-dialect configurations declare column types
// directly as GraphQL scalar names.
var graphqlScalars = map[string]string{
	"Int":     "Int",
	"Float":   "Float",
	"String":  "String",
	"Boolean": "Boolean",
	"ID":      "ID",
}

// scalarForDataType maps a database type name onto the GraphQL scalar used
// for its fields and arguments. Unrecognized types degrade to String rather
// than failing; the execution layer treats values as opaque at that point.
func scalarForDataType(dataType string) string {
	if s, ok := graphqlScalars[dataType]; ok {
		return s
	}

	dt := strings.ToLower(dataType)
	// Strip length/precision suffixes like varchar(255) or numeric(10,2).
	if i := strings.IndexByte(dt, '('); i >= 0 {
		dt = dt[:i]
	}

	switch dt {
	case "int", "integer", "smallint", "mediumint", "bigint", "serial", "bigserial", "smallserial", "year":
		return "Int"
	case "numeric", "decimal", "real", "float", "double", "double precision", "money":
		return "Float"
	case "boolean", "bool", "bit":
		return "Boolean"
	case "uuid":
		return "ID"
	default:
		return "String"
	}
}
