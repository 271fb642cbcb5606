package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/pipeline"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const duplicateKeyCode = 11000

// MongoRepo implements Store over the products collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// EnsureIndexes creates the unique product_id index and a category index.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
	}
	if _, err := m.col.Indexes().CreateMany(ctx, models); err != nil {
		return catalog.Classify("ensure indexes", err)
	}
	return nil
}

func (m *MongoRepo) Find(ctx context.Context, filter pipeline.Match, proj pipeline.Project) (Cursor, error) {
	if err := filter.Validate(); err != nil {
		return nil, &catalog.QueryError{Op: "find", Err: err}
	}
	if err := proj.Validate(); err != nil {
		return nil, &catalog.QueryError{Op: "find", Err: err}
	}
	cur, err := m.col.Find(ctx, filter.Filter(), options.Find().SetProjection(proj.Spec()))
	if err != nil {
		return nil, catalog.Classify("find", err)
	}
	return cur, nil
}

func (m *MongoRepo) Aggregate(ctx context.Context, p pipeline.Pipeline) (Cursor, error) {
	if err := p.Validate(); err != nil {
		return nil, &catalog.QueryError{Op: "aggregate", Err: err}
	}
	cur, err := m.col.Aggregate(ctx, p.Mongo())
	if err != nil {
		return nil, catalog.Classify("aggregate", err)
	}
	return cur, nil
}

// PushReview appends r to the product's reviews in a single-document update.
// An unknown product yields a zero result and no upsert.
func (m *MongoRepo) PushReview(ctx context.Context, productID string, r catalog.Review) (catalog.UpdateResult, error) {
	res, err := m.col.UpdateOne(ctx,
		bson.D{{Key: "product_id", Value: productID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "reviews", Value: r}}}},
	)
	if err != nil {
		return catalog.UpdateResult{}, catalog.Classify("push review", err)
	}
	return catalog.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// InsertMany bulk-inserts products unordered. Duplicate product_id rejections
// are counted as skipped; any other write error fails the call.
func (m *MongoRepo) InsertMany(ctx context.Context, products []catalog.Product) (catalog.ImportResult, error) {
	if len(products) == 0 {
		return catalog.ImportResult{}, nil
	}
	docs := make([]interface{}, 0, len(products))
	for i := range products {
		p := products[i]
		p.Normalize()
		docs = append(docs, p)
	}
	_, err := m.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return catalog.ImportResult{Inserted: len(products)}, nil
	}
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return catalog.ImportResult{}, catalog.Classify("insert", err)
	}
	dups := 0
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return catalog.ImportResult{}, &catalog.QueryError{Op: "insert", Err: fmt.Errorf("document %d: %s", we.Index, we.Message)}
		}
		dups++
	}
	if bwe.WriteConcernError != nil {
		return catalog.ImportResult{}, &catalog.QueryError{Op: "insert", Err: err}
	}
	return catalog.ImportResult{Inserted: len(products) - dups, Skipped: dups}, nil
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	if err := m.col.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return catalog.Classify("ping", err)
	}
	return nil
}
