// Package engine executes resolved, authorized requests against the
// database. The Executor contract is what the REST dispatcher consumes;
// richer query generation lives behind it and can be swapped per dialect.
package engine

import (
	"context"

	"github.com/weiplanet/data-api-builder/metadata"
	"github.com/weiplanet/data-api-builder/rest"
)

// Row is one result record keyed by column name.
type Row = map[string]interface{}

// Executor runs CRUD-style operations for an entity. Implementations
// receive the entity's resolved metadata; they never consult authorization,
// which the dispatcher has already applied.
type Executor interface {
	FindByPK(ctx context.Context, entity *metadata.Entity, pk []rest.KeyValue) (Row, error)
	FindMany(ctx context.Context, entity *metadata.Entity, limit int) ([]Row, error)
	Create(ctx context.Context, entity *metadata.Entity, item Row) (Row, error)
	Update(ctx context.Context, entity *metadata.Entity, pk []rest.KeyValue, item Row) (Row, error)
	Delete(ctx context.Context, entity *metadata.Entity, pk []rest.KeyValue) (bool, error)
	Execute(ctx context.Context, entity *metadata.Entity, parameters Row) ([]Row, error)
}
