package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/rest"
)

func TestNewSQLExecutor_RejectsDocumentDialect(t *testing.T) {
	_, err := NewSQLExecutor(nil, config.DialectDocumentDB)
	require.Error(t, err)
}

func TestQuote(t *testing.T) {
	pg, err := NewSQLExecutor(nil, config.DialectPostgreSQL)
	require.NoError(t, err)
	my, err := NewSQLExecutor(nil, config.DialectMySQL)
	require.NoError(t, err)

	assert.Equal(t, `"books"`, pg.quote("books"))
	assert.Equal(t, `"public"."books"`, pg.quote("public.books"))
	assert.Equal(t, `"we""ird"`, pg.quote(`we"ird`))

	assert.Equal(t, "`books`", my.quote("books"))
	assert.Equal(t, "`lib`.`books`", my.quote("lib.books"))
}

func TestPlaceholder(t *testing.T) {
	pg, _ := NewSQLExecutor(nil, config.DialectPostgreSQL)
	my, _ := NewSQLExecutor(nil, config.DialectMySQL)

	assert.Equal(t, "$1", pg.placeholder(1))
	assert.Equal(t, "$3", pg.placeholder(3))
	assert.Equal(t, "?", my.placeholder(1))
	assert.Equal(t, "?", my.placeholder(3))
}

func TestWhereClause(t *testing.T) {
	pg, _ := NewSQLExecutor(nil, config.DialectPostgreSQL)

	where, args := pg.whereClause([]rest.KeyValue{
		{Column: "book_id", Value: "1"},
		{Column: "id", Value: "568"},
	}, 2)

	assert.Equal(t, `"book_id" = $2 AND "id" = $3`, where)
	assert.Equal(t, []interface{}{"1", "568"}, args)
}

func TestSortedKeys(t *testing.T) {
	keys := sortedKeys(Row{"title": 1, "id": 2, "year": 3})
	assert.Equal(t, []string{"id", "title", "year"}, keys)
}
