// Package rest resolves inbound REST paths against the configured route
// prefix and dispatches authorized CRUD requests to the execution engine.
package rest

import (
	"fmt"
	"strings"

	"github.com/weiplanet/data-api-builder/apierror"
)

// Route is the request-scoped decomposition of a REST path: the entity being
// addressed and the primary-key fragment that follows it.
type Route struct {
	Entity     string
	PrimaryKey string
}

// ResolveRoute splits a request path into entity name and primary-key route
// fragment, validated against the configured route prefix.
//
// The prefix is normalized for a single leading separator and must then be a
// literal, case-sensitive prefix of the path. The segment immediately after
// it is the entity name; everything after the next separator is the
// (possibly empty) primary-key fragment. Whitespace and punctuation are
// ordinary path characters; nothing is trimmed beyond the prefix match.
//
// ResolveRoute is a pure function and performs no authorization.
func ResolveRoute(path, prefix string) (Route, error) {
	normalized := strings.TrimPrefix(prefix, "/")
	if normalized == "" {
		return Route{}, invalidPath(path)
	}
	if !strings.HasPrefix(path, normalized) {
		return Route{}, invalidPath(path)
	}

	remainder := strings.TrimPrefix(path[len(normalized):], "/")
	if remainder == "" {
		return Route{}, invalidPath(path)
	}

	parts := strings.SplitN(remainder, "/", 2)
	if parts[0] == "" {
		return Route{}, invalidPath(path)
	}

	route := Route{Entity: parts[0]}
	if len(parts) == 2 {
		route.PrimaryKey = parts[1]
	}
	return route, nil
}

// invalidPath builds the fixed, user-facing routing failure. Callers and
// tests match on this exact message shape.
func invalidPath(route string) *apierror.Error {
	return apierror.NewBadRequest(fmt.Sprintf("Invalid Path for route: %s.", route))
}

// KeyValue is one column/value pair parsed from a primary-key fragment.
type KeyValue struct {
	Column string
	Value  string
}

// ParsePrimaryKey decomposes a primary-key route fragment of the form
// "col1/val1/col2/val2" into ordered pairs. An odd number of segments means
// a value is missing its column (or vice versa) and is a Bad Request.
func ParsePrimaryKey(fragment string) ([]KeyValue, error) {
	if fragment == "" {
		return nil, nil
	}
	segments := strings.Split(fragment, "/")
	if len(segments)%2 != 0 {
		return nil, apierror.NewBadRequest(fmt.Sprintf("Invalid primary key route: %s.", fragment))
	}
	pairs := make([]KeyValue, 0, len(segments)/2)
	for i := 0; i < len(segments); i += 2 {
		if segments[i] == "" {
			return nil, apierror.NewBadRequest(fmt.Sprintf("Invalid primary key route: %s.", fragment))
		}
		pairs = append(pairs, KeyValue{Column: segments[i], Value: segments[i+1]})
	}
	return pairs, nil
}
