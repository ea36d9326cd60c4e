// Package introspection resolves the database objects behind configured
// entities by querying information_schema: columns, nullability, key
// membership for tables and views, and the parameter schema for stored
// procedures.
package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/metadata"
)

// Introspector reads object metadata for one relational data source.
type Introspector struct {
	db      *sql.DB
	dialect config.Dialect
}

// Open connects to the data source. The document dialect needs no
// introspector: its column metadata comes from configuration.
func Open(dialect config.Dialect, connectionString string) (*Introspector, error) {
	if !dialect.IsRelational() {
		return nil, fmt.Errorf("introspection is not supported for dialect %q", dialect)
	}
	if connectionString == "" {
		return nil, fmt.Errorf("connection string is empty; check the connection-string-env setting")
	}

	driver := "pgx"
	if dialect == config.DialectMySQL {
		driver = "mysql"
	}
	db, err := sql.Open(driver, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}
	return &Introspector{db: db, dialect: dialect}, nil
}

// DB exposes the underlying handle so the execution engine can share it.
func (in *Introspector) DB() *sql.DB {
	return in.db
}

// Close releases the connection pool.
func (in *Introspector) Close() error {
	return in.db.Close()
}

// Populate resolves every entity in the store. Failures here are
// configuration-consistency faults: the caller must not publish a schema
// built from a partially introspected store.
func (in *Introspector) Populate(ctx context.Context, store *metadata.Store) error {
	for _, entity := range store.Entities() {
		var (
			obj *metadata.DatabaseObject
			err error
		)
		if entity.IsStoredProcedure() {
			obj, err = in.introspectProcedure(ctx, entity)
		} else {
			obj, err = in.introspectRelation(ctx, entity)
		}
		if err != nil {
			return err
		}
		if err := store.SetObject(entity.Name, obj); err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"entity": entity.Name,
			"object": entity.SourceObject,
			"kind":   string(entity.Kind),
		}).Debug("Introspected database object")
	}
	return nil
}

// splitObjectName separates an optionally schema-qualified name.
func (in *Introspector) splitObjectName(object string) (schemaName, objectName string) {
	if i := strings.IndexByte(object, '.'); i >= 0 {
		return object[:i], object[i+1:]
	}
	if in.dialect == config.DialectPostgreSQL {
		return "public", object
	}
	return "", object
}

const postgresColumnsQuery = `
SELECT c.column_name,
       c.data_type,
       c.is_nullable = 'YES',
       c.column_default IS NOT NULL,
       c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%'
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

const postgresKeysQuery = `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY'
  AND tc.table_schema = $1 AND tc.table_name = $2`

const mysqlColumnsQuery = `
SELECT c.COLUMN_NAME,
       c.DATA_TYPE,
       c.IS_NULLABLE = 'YES',
       c.COLUMN_DEFAULT IS NOT NULL,
       c.EXTRA LIKE '%auto_increment%'
FROM information_schema.COLUMNS c
WHERE c.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND c.TABLE_NAME = ?
ORDER BY c.ORDINAL_POSITION`

const mysqlKeysQuery = `
SELECT c.COLUMN_NAME
FROM information_schema.COLUMNS c
WHERE c.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND c.TABLE_NAME = ?
  AND c.COLUMN_KEY = 'PRI'`

func (in *Introspector) introspectRelation(ctx context.Context, entity *metadata.Entity) (*metadata.DatabaseObject, error) {
	schemaName, objectName := in.splitObjectName(entity.SourceObject)

	columnsQuery, keysQuery := postgresColumnsQuery, postgresKeysQuery
	if in.dialect == config.DialectMySQL {
		columnsQuery, keysQuery = mysqlColumnsQuery, mysqlKeysQuery
	}

	rows, err := in.db.QueryContext(ctx, columnsQuery, schemaName, objectName)
	if err != nil {
		return nil, apierror.NewInitError("failed to introspect columns for entity %q: %v", entity.Name, err)
	}
	defer rows.Close()

	obj := &metadata.DatabaseObject{Kind: entity.Kind, Name: entity.SourceObject}
	for rows.Next() {
		var col metadata.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.HasDefault, &col.IsAutoGenerated); err != nil {
			return nil, apierror.NewInitError("failed to read column metadata for entity %q: %v", entity.Name, err)
		}
		obj.Columns = append(obj.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewInitError("failed to read column metadata for entity %q: %v", entity.Name, err)
	}
	if len(obj.Columns) == 0 {
		return nil, apierror.NewInitError("database object %q for entity %q does not exist or has no columns", entity.SourceObject, entity.Name)
	}

	keyed, err := in.keyColumns(ctx, keysQuery, schemaName, objectName)
	if err != nil {
		return nil, apierror.NewInitError("failed to introspect key columns for entity %q: %v", entity.Name, err)
	}
	// Configured key-fields override the introspected primary key; views
	// frequently have none of their own.
	if len(entity.KeyFields) > 0 {
		keyed = make(map[string]bool, len(entity.KeyFields))
		for _, k := range entity.KeyFields {
			keyed[k] = true
		}
	}
	for i := range obj.Columns {
		obj.Columns[i].IsPrimaryKey = keyed[obj.Columns[i].Name]
	}

	return obj, nil
}

func (in *Introspector) keyColumns(ctx context.Context, query, schemaName, objectName string) (map[string]bool, error) {
	rows, err := in.db.QueryContext(ctx, query, schemaName, objectName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keyed := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		keyed[name] = true
	}
	return keyed, rows.Err()
}

const postgresParametersQuery = `
SELECT p.parameter_name,
       p.data_type
FROM information_schema.parameters p
JOIN information_schema.routines r
  ON p.specific_schema = r.specific_schema
 AND p.specific_name = r.specific_name
WHERE r.routine_schema = $1 AND r.routine_name = $2
  AND p.parameter_mode IN ('IN', 'INOUT')
ORDER BY p.ordinal_position`

const mysqlParametersQuery = `
SELECT p.PARAMETER_NAME,
       p.DATA_TYPE
FROM information_schema.PARAMETERS p
WHERE p.SPECIFIC_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND p.SPECIFIC_NAME = ?
  AND p.PARAMETER_MODE IN ('IN', 'INOUT')
ORDER BY p.ORDINAL_POSITION`

const postgresRoutineExistsQuery = `
SELECT COUNT(*) FROM information_schema.routines r
WHERE r.routine_schema = $1 AND r.routine_name = $2`

const mysqlRoutineExistsQuery = `
SELECT COUNT(*) FROM information_schema.ROUTINES r
WHERE r.ROUTINE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND r.ROUTINE_NAME = ?`

func (in *Introspector) introspectProcedure(ctx context.Context, entity *metadata.Entity) (*metadata.DatabaseObject, error) {
	schemaName, objectName := in.splitObjectName(entity.SourceObject)

	existsQuery, paramsQuery := postgresRoutineExistsQuery, postgresParametersQuery
	if in.dialect == config.DialectMySQL {
		existsQuery, paramsQuery = mysqlRoutineExistsQuery, mysqlParametersQuery
	}

	var count int
	if err := in.db.QueryRowContext(ctx, existsQuery, schemaName, objectName).Scan(&count); err != nil {
		return nil, apierror.NewInitError("failed to introspect procedure for entity %q: %v", entity.Name, err)
	}
	if count == 0 {
		return nil, apierror.NewInitError("stored procedure %q for entity %q does not exist", entity.SourceObject, entity.Name)
	}

	rows, err := in.db.QueryContext(ctx, paramsQuery, schemaName, objectName)
	if err != nil {
		return nil, apierror.NewInitError("failed to introspect parameters for entity %q: %v", entity.Name, err)
	}
	defer rows.Close()

	// Parameters stays non-nil even for zero-argument procedures: a nil
	// descriptor means introspection never ran, an empty one means the
	// procedure takes no arguments.
	obj := &metadata.DatabaseObject{
		Kind:       metadata.KindStoredProcedure,
		Name:       entity.SourceObject,
		Parameters: []metadata.Parameter{},
	}
	for rows.Next() {
		var param metadata.Parameter
		if err := rows.Scan(&param.Name, &param.DataType); err != nil {
			return nil, apierror.NewInitError("failed to read parameter metadata for entity %q: %v", entity.Name, err)
		}
		param.Nullable = true
		obj.Parameters = append(obj.Parameters, param)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewInitError("failed to read parameter metadata for entity %q: %v", entity.Name, err)
	}

	return obj, nil
}
