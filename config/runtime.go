package config

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
)

// Dialect identifies the target database family. The synthesizer and the
// execution engine branch on it.
type Dialect string

const (
	DialectPostgreSQL Dialect = "postgresql"
	DialectMySQL      Dialect = "mysql"
	DialectDocumentDB Dialect = "documentdb"
)

// IsRelational reports whether the dialect belongs to the SQL family.
func (d Dialect) IsRelational() bool {
	return d == DialectPostgreSQL || d == DialectMySQL
}

// SourceType discriminates the database object behind an entity.
type SourceType string

const (
	SourceTable           SourceType = "table"
	SourceView            SourceType = "view"
	SourceStoredProcedure SourceType = "stored-procedure"
)

// GraphQLOperation is the configured exposure of a stored procedure.
type GraphQLOperation string

const (
	OperationQuery    GraphQLOperation = "query"
	OperationMutation GraphQLOperation = "mutation"
)

// RuntimeConfig is the declarative description of the API surface: which
// database objects are exposed, under what names, and who may do what.
// Loaded once; reload publishes a whole new value.
type RuntimeConfig struct {
	DataSource DataSourceConfig        `json:"data-source"`
	Runtime    RuntimeSettings         `json:"runtime"`
	Entities   map[string]EntityConfig `json:"entities"`
}

type DataSourceConfig struct {
	DatabaseType Dialect `json:"database-type"`
	// ConnectionStringEnv names the environment variable holding the
	// connection string, so credentials never live in the config file.
	ConnectionStringEnv string `json:"connection-string-env"`
}

// ConnectionString resolves the connection string from the environment.
func (d DataSourceConfig) ConnectionString() string {
	if d.ConnectionStringEnv == "" {
		return ""
	}
	return os.Getenv(d.ConnectionStringEnv)
}

type RuntimeSettings struct {
	Rest    RestSettings    `json:"rest"`
	GraphQL GraphQLSettings `json:"graphql"`
}

type RestSettings struct {
	// Path is the route prefix identifying requests destined for the REST
	// surface, e.g. "/api".
	Path    string `json:"path"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (r RestSettings) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type GraphQLSettings struct {
	Path    string `json:"path"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (g GraphQLSettings) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

type EntityConfig struct {
	Source      SourceConfig        `json:"source"`
	GraphQL     EntityGraphQL       `json:"graphql"`
	Permissions []PermissionSetting `json:"permissions"`
}

type SourceConfig struct {
	// Object is the underlying database object name (table, view or
	// procedure), possibly schema-qualified.
	Object    string     `json:"object"`
	Type      SourceType `json:"type"`
	KeyFields []string   `json:"key-fields,omitempty"`
	// Columns declares column metadata for the document dialect, where no
	// information_schema exists to introspect.
	Columns []ColumnConfig `json:"columns,omitempty"`
}

type ColumnConfig struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

type EntityGraphQL struct {
	// Type is the GraphQL object type name; defaults to the entity name.
	Type string `json:"type,omitempty"`
	// Operation configures whether a stored procedure surfaces as a query
	// or a mutation. Defaults to mutation.
	Operation GraphQLOperation `json:"operation,omitempty"`
	Enabled   *bool            `json:"enabled,omitempty"`
}

func (g EntityGraphQL) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

type PermissionSetting struct {
	Role    string   `json:"role"`
	Actions []string `json:"actions"`
}

// Action names accepted in permission settings. "*" expands to every action
// meaningful for the entity's source type.
var validActions = map[string]bool{
	"create":  true,
	"read":    true,
	"update":  true,
	"delete":  true,
	"execute": true,
	"*":       true,
}

// LoadRuntimeConfig reads and validates the runtime configuration file.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime config %s: %w", path, err)
	}
	return ParseRuntimeConfig(data)
}

// ParseRuntimeConfig parses and validates a runtime configuration document.
func ParseRuntimeConfig(data []byte) (*RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse runtime config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the runtime configuration for internal consistency.
func (c *RuntimeConfig) Validate() error {
	var errs []string

	switch c.DataSource.DatabaseType {
	case DialectPostgreSQL, DialectMySQL, DialectDocumentDB:
	case "":
		errs = append(errs, "data-source.database-type is required")
	default:
		errs = append(errs, fmt.Sprintf("unknown database-type %q", c.DataSource.DatabaseType))
	}

	if c.Runtime.Rest.IsEnabled() && c.Runtime.Rest.Path == "" {
		errs = append(errs, "runtime.rest.path is required when rest is enabled")
	}
	if p := c.Runtime.Rest.Path; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Sprintf("runtime.rest.path %q must begin with '/'", p))
	}

	if len(c.Entities) == 0 {
		errs = append(errs, "at least one entity must be configured")
	}

	for name, entity := range c.Entities {
		if entity.Source.Object == "" {
			errs = append(errs, fmt.Sprintf("entity %q: source.object is required", name))
		}
		switch entity.Source.Type {
		case SourceTable, SourceView:
			if len(entity.Source.KeyFields) == 0 && c.DataSource.DatabaseType == DialectDocumentDB {
				errs = append(errs, fmt.Sprintf("entity %q: key-fields are required for the document dialect", name))
			}
		case SourceStoredProcedure:
			if len(entity.Source.KeyFields) > 0 {
				errs = append(errs, fmt.Sprintf("entity %q: stored procedures cannot declare key-fields", name))
			}
			if c.DataSource.DatabaseType == DialectDocumentDB {
				errs = append(errs, fmt.Sprintf("entity %q: stored procedures are not supported by the document dialect", name))
			}
		case "":
			errs = append(errs, fmt.Sprintf("entity %q: source.type is required", name))
		default:
			errs = append(errs, fmt.Sprintf("entity %q: unknown source type %q", name, entity.Source.Type))
		}

		switch entity.GraphQL.Operation {
		case "", OperationQuery, OperationMutation:
		default:
			errs = append(errs, fmt.Sprintf("entity %q: graphql.operation must be query or mutation", name))
		}
		if entity.GraphQL.Operation != "" && entity.Source.Type != SourceStoredProcedure {
			errs = append(errs, fmt.Sprintf("entity %q: graphql.operation is only valid for stored procedures", name))
		}

		for _, perm := range entity.Permissions {
			if perm.Role == "" {
				errs = append(errs, fmt.Sprintf("entity %q: permission with empty role", name))
			}
			for _, action := range perm.Actions {
				if !validActions[action] {
					errs = append(errs, fmt.Sprintf("entity %q: unknown action %q for role %q", name, action, perm.Role))
				}
				if action == "execute" && entity.Source.Type != SourceStoredProcedure {
					errs = append(errs, fmt.Sprintf("entity %q: action \"execute\" is only valid for stored procedures", name))
				}
				if entity.Source.Type == SourceStoredProcedure && action != "execute" && action != "*" {
					errs = append(errs, fmt.Sprintf("entity %q: stored procedures only support the \"execute\" action", name))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("runtime config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// GraphQLTypeName returns the GraphQL object type name for an entity.
func (e EntityConfig) GraphQLTypeName(entityName string) string {
	if e.GraphQL.Type != "" {
		return e.GraphQL.Type
	}
	return entityName
}

// Checksum produces a stable fingerprint of the config, used as the cache key
// for exported schema documents.
func (c *RuntimeConfig) Checksum() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}
