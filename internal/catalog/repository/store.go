package repository

import (
	"context"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/pipeline"
)

// Cursor is a forward-only result stream. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Store is the document-store boundary of the catalog: filtered reads with a
// projection, aggregation pipelines, the review append and bulk inserts.
type Store interface {
	Find(ctx context.Context, filter pipeline.Match, proj pipeline.Project) (Cursor, error)
	Aggregate(ctx context.Context, p pipeline.Pipeline) (Cursor, error)
	PushReview(ctx context.Context, productID string, r catalog.Review) (catalog.UpdateResult, error)
	InsertMany(ctx context.Context, products []catalog.Product) (catalog.ImportResult, error)
	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
}
