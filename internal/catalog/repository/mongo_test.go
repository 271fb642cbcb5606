package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/pipeline"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("push review matched", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		res, err := repo.PushReview(context.Background(), "ELEC001", catalog.Review{UserID: "U999", Rating: 4, Comment: "Good value", Date: time.Now()})
		require.NoError(mt, err)
		require.Equal(mt, catalog.UpdateResult{Matched: 1, Modified: 1}, res)
		require.Equal(mt, "update", mt.GetStartedEvent().CommandName)
	})

	mt.Run("push review unknown product", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		res, err := repo.PushReview(context.Background(), "ELEC001", catalog.Review{UserID: "U999", Rating: 4})
		require.NoError(mt, err)
		require.True(mt, res.NotFound())
		require.Zero(mt, res.Modified)
	})

	mt.Run("find decodes projection", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "name", Value: "Phone"}, {Key: "price", Value: 30000.0}, {Key: "stock", Value: int32(10)}}),
		)
		cur, err := repo.Find(context.Background(),
			pipeline.Where(pipeline.Eq("category", "Electronics"), pipeline.Lt("price", 50000.0)),
			pipeline.Project{Include: []string{"name", "price", "stock"}, ExcludeID: true})
		require.NoError(mt, err)
		require.True(mt, cur.Next(context.Background()))
		var v catalog.ProductView
		require.NoError(mt, cur.Decode(&v))
		require.Equal(mt, catalog.ProductView{Name: "Phone", Price: 30000, Stock: 10}, v)
		require.False(mt, cur.Next(context.Background()))
		require.NoError(mt, cur.Close(context.Background()))
	})

	mt.Run("insert counts duplicates as skipped", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 1, Code: duplicateKeyCode, Message: "E11000 duplicate key"}))

		res, err := repo.InsertMany(context.Background(), []catalog.Product{
			{ProductID: "A", Name: "a", Category: "c", Reviews: []catalog.Review{}},
			{ProductID: "A", Name: "a", Category: "c", Reviews: []catalog.Review{}},
		})
		require.NoError(mt, err)
		require.Equal(mt, catalog.ImportResult{Inserted: 1, Skipped: 1}, res)
	})

	mt.Run("insert fails on other write errors", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "validation failed"}))

		_, err := repo.InsertMany(context.Background(), []catalog.Product{{ProductID: "A", Name: "a", Category: "c"}})
		require.Error(mt, err)
		require.True(mt, errors.Is(err, catalog.ErrQuery))
	})

	mt.Run("aggregate command error is a query error", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 40324, Name: "Location40324", Message: "unrecognized pipeline stage"}))

		_, err := repo.Aggregate(context.Background(), pipeline.New(pipeline.By(pipeline.Desc("avg_price"))))
		require.Error(mt, err)
		require.True(mt, errors.Is(err, catalog.ErrQuery))
		require.False(mt, errors.Is(err, catalog.ErrConnection))
	})

	mt.Run("aggregate rejects malformed pipeline before sending", func(mt *mtest.T) {
		repo := NewMongoRepo(mt.Coll)
		_, err := repo.Aggregate(context.Background(), pipeline.New(pipeline.Group{Key: "$category"}))
		require.True(mt, errors.Is(err, catalog.ErrQuery))
	})
}
