package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/weiplanet/data-api-builder/apierror"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/metadata"
	"github.com/weiplanet/data-api-builder/rest"
)

const defaultListLimit = 100

// SQLExecutor runs parameterized statements against a relational database.
// It covers the minimal surface the REST dispatcher needs; anything fancier
// (filtering, pagination cursors, nested selects) is deliberately absent.
type SQLExecutor struct {
	db      *sql.DB
	dialect config.Dialect
}

// NewSQLExecutor wraps an open database handle.
func NewSQLExecutor(db *sql.DB, dialect config.Dialect) (*SQLExecutor, error) {
	if !dialect.IsRelational() {
		return nil, fmt.Errorf("SQL executor does not support dialect %q", dialect)
	}
	return &SQLExecutor{db: db, dialect: dialect}, nil
}

func (e *SQLExecutor) FindByPK(ctx context.Context, entity *metadata.Entity, pk []rest.KeyValue) (Row, error) {
	where, args := e.whereClause(pk, 1)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", e.quote(entity.SourceObject), where)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (e *SQLExecutor) FindMany(ctx context.Context, entity *metadata.Entity, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", e.quote(entity.SourceObject), limit)

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	return results, nil
}

func (e *SQLExecutor) Create(ctx context.Context, entity *metadata.Entity, item Row) (Row, error) {
	if len(item) == 0 {
		return nil, apierror.NewBadRequest("request body contains no insertable columns")
	}

	columns := sortedKeys(item)
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		quoted[i] = e.quote(col)
		placeholders[i] = e.placeholder(i + 1)
		args[i] = item[col]
	}

	if e.dialect == config.DialectPostgreSQL {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			e.quote(entity.SourceObject), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
		rows, err := e.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, e.dbError(entity.Name, err)
		}
		defer rows.Close()
		results, err := scanRows(rows)
		if err != nil {
			return nil, e.dbError(entity.Name, err)
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	}

	// MySQL has no RETURNING; re-read by last insert id when the key is
	// auto-generated, otherwise by the values supplied in the body.
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.quote(entity.SourceObject), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}

	pk := e.keyValuesAfterInsert(entity, item, result)
	if pk == nil {
		return item, nil
	}
	return e.FindByPK(ctx, entity, pk)
}

func (e *SQLExecutor) Update(ctx context.Context, entity *metadata.Entity, pk []rest.KeyValue, item Row) (Row, error) {
	if len(item) == 0 {
		return nil, apierror.NewBadRequest("request body contains no updatable columns")
	}

	columns := sortedKeys(item)
	assignments := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+len(pk))
	for i, col := range columns {
		assignments[i] = fmt.Sprintf("%s = %s", e.quote(col), e.placeholder(i+1))
		args = append(args, item[col])
	}

	where, whereArgs := e.whereClause(pk, len(columns)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		e.quote(entity.SourceObject), strings.Join(assignments, ", "), where)
	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	if affected == 0 {
		return nil, nil
	}
	return e.FindByPK(ctx, entity, pk)
}

func (e *SQLExecutor) Delete(ctx context.Context, entity *metadata.Entity, pk []rest.KeyValue) (bool, error) {
	where, args := e.whereClause(pk, 1)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", e.quote(entity.SourceObject), where)

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, e.dbError(entity.Name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, e.dbError(entity.Name, err)
	}
	return affected > 0, nil
}

func (e *SQLExecutor) Execute(ctx context.Context, entity *metadata.Entity, parameters Row) ([]Row, error) {
	if entity.Object == nil {
		return nil, apierror.NewInitError("stored procedure %q has no resolved database schema", entity.Name)
	}

	// Parameter order follows the introspected signature, not the request.
	args := make([]interface{}, 0, len(entity.Object.Parameters))
	placeholders := make([]string, 0, len(entity.Object.Parameters))
	for _, param := range entity.Object.Parameters {
		value, ok := parameters[param.Name]
		if !ok {
			if !param.Nullable {
				return nil, apierror.NewBadRequest(fmt.Sprintf("missing parameter %q for procedure %q", param.Name, entity.Name))
			}
			value = nil
		}
		args = append(args, value)
		placeholders = append(placeholders, e.placeholder(len(args)))
	}

	var query string
	if e.dialect == config.DialectPostgreSQL {
		query = fmt.Sprintf("SELECT * FROM %s(%s)", e.quote(entity.SourceObject), strings.Join(placeholders, ", "))
	} else {
		query = fmt.Sprintf("CALL %s(%s)", e.quote(entity.SourceObject), strings.Join(placeholders, ", "))
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, e.dbError(entity.Name, err)
	}
	return results, nil
}

func (e *SQLExecutor) whereClause(pk []rest.KeyValue, firstIndex int) (string, []interface{}) {
	conditions := make([]string, len(pk))
	args := make([]interface{}, len(pk))
	for i, kv := range pk {
		conditions[i] = fmt.Sprintf("%s = %s", e.quote(kv.Column), e.placeholder(firstIndex+i))
		args[i] = kv.Value
	}
	return strings.Join(conditions, " AND "), args
}

func (e *SQLExecutor) keyValuesAfterInsert(entity *metadata.Entity, item Row, result sql.Result) []rest.KeyValue {
	if entity.Object == nil {
		return nil
	}
	pkCols := entity.Object.PrimaryKeyColumns()
	if len(pkCols) == 0 {
		return nil
	}

	pairs := make([]rest.KeyValue, 0, len(pkCols))
	for _, col := range pkCols {
		if value, ok := item[col.Name]; ok {
			pairs = append(pairs, rest.KeyValue{Column: col.Name, Value: fmt.Sprintf("%v", value)})
			continue
		}
		if col.IsAutoGenerated {
			lastID, err := result.LastInsertId()
			if err != nil {
				return nil
			}
			pairs = append(pairs, rest.KeyValue{Column: col.Name, Value: fmt.Sprintf("%d", lastID)})
			continue
		}
		return nil
	}
	return pairs
}

func (e *SQLExecutor) quote(identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		if e.dialect == config.DialectMySQL {
			parts[i] = "`" + strings.ReplaceAll(part, "`", "``") + "`"
		} else {
			parts[i] = `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

func (e *SQLExecutor) placeholder(n int) string {
	if e.dialect == config.DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (e *SQLExecutor) dbError(entity string, err error) error {
	logger.WithError(err).WithField("entity", entity).Error("Database operation failed")
	return apierror.New(fmt.Sprintf("database operation failed for entity %q", entity), 500, apierror.SubCodeDatabaseOperationFailed)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func sortedKeys(m Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
