package authorization

import "strings"

// Operation is the closed set of actions an entity supports.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	// OpUpdateGraphQL is the GraphQL-flavored update. It is a distinct tag
	// because the mutation builder and field-name classifier need to tell it
	// apart from the generic update, but permission grants are written once:
	// index lookups normalize it to OpUpdate.
	OpUpdateGraphQL Operation = "update-graphql"
	OpDelete        Operation = "delete"
	OpExecute       Operation = "execute"
)

// normalize collapses the GraphQL update refinement onto the generic update
// for permission lookups.
func (o Operation) normalize() Operation {
	if o == OpUpdateGraphQL {
		return OpUpdate
	}
	return o
}

// tableOperations is every operation meaningful for a table or view; used to
// expand the "*" action.
var tableOperations = []Operation{OpCreate, OpRead, OpUpdate, OpDelete}

// fieldNameRules classifies a GraphQL field name into an operation by
// prefix. The list is evaluated in declaration order and that order is part
// of the contract: specific prefixes must be checked before the trailing
// Read default catches everything else.
var fieldNameRules = []struct {
	prefix string
	op     Operation
}{
	{"create", OpCreate},
	{"update", OpUpdateGraphQL},
	{"delete", OpDelete},
	{"execute", OpExecute},
}

// OperationForFieldName infers the operation a generated GraphQL field
// performs from its name. Names matching no rule are reads.
func OperationForFieldName(name string) Operation {
	for _, rule := range fieldNameRules {
		if strings.HasPrefix(name, rule.prefix) {
			return rule.op
		}
	}
	return OpRead
}

// OperationForVerb maps an HTTP method onto the operation it performs
// against a table or view.
func OperationForVerb(method string) (Operation, bool) {
	switch method {
	case "GET":
		return OpRead, true
	case "POST":
		return OpCreate, true
	case "PUT", "PATCH":
		return OpUpdate, true
	case "DELETE":
		return OpDelete, true
	default:
		return "", false
	}
}
