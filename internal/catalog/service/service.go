package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/pipeline"
	"github.com/fleximart/catalog-service/internal/catalog/repository"
	"github.com/fleximart/catalog-service/pkg/logger"
	"github.com/fleximart/catalog-service/pkg/metrics"
)

// DefaultMinAvgRating is the review-quality threshold used when none is configured.
const DefaultMinAvgRating = 4.0

// Operation names used for metrics and error context.
const (
	OpProductsByCategory = "products_by_category"
	OpTopRated           = "top_rated"
	OpAppendReview       = "append_review"
	OpCategorySummary    = "category_summary"
)

var productView = pipeline.Project{Include: []string{"name", "price", "stock"}, ExcludeID: true}

// CategoryPriceFilter selects products of category priced strictly below maxPrice.
func CategoryPriceFilter(category string, maxPrice float64) pipeline.Match {
	return pipeline.Where(pipeline.Eq("category", category), pipeline.Lt("price", maxPrice))
}

// ReviewQualityPipeline averages review ratings per product and keeps products
// whose mean is at least threshold. Products without reviews drop out at the
// unwind. product_name is the name on the first unwound row of each group.
func ReviewQualityPipeline(threshold float64) pipeline.Pipeline {
	return pipeline.New(
		pipeline.Unwind{Path: "reviews"},
		pipeline.Group{Key: "product_id", Fields: []pipeline.Accumulator{
			pipeline.First("product_name", "name"),
			pipeline.Avg("avg_rating", "reviews.rating"),
		}},
		pipeline.Where(pipeline.Gte("avg_rating", threshold)),
		pipeline.By(pipeline.Desc("avg_rating"), pipeline.Asc("_id")),
	)
}

// CategorySummaryPipeline averages price and counts products per category,
// highest average first, ties by category name.
func CategorySummaryPipeline() pipeline.Pipeline {
	return pipeline.New(
		pipeline.Group{Key: "category", Fields: []pipeline.Accumulator{
			pipeline.Avg("avg_price", "price"),
			pipeline.Count("product_count"),
		}},
		pipeline.By(pipeline.Desc("avg_price"), pipeline.Asc("_id")),
	)
}

// Options tunes a Service.
type Options struct {
	// MinAvgRating is the review-quality threshold; nil selects
	// DefaultMinAvgRating. Zero is a valid threshold.
	MinAvgRating *float64
	QueryTimeout time.Duration
	Now          func() time.Time
}

// Service runs the catalog operations against a Store. It holds no mutable
// state and is safe for concurrent use.
type Service struct {
	store        repository.Store
	minAvgRating float64
	timeout      time.Duration
	now          func() time.Time
}

func NewService(store repository.Store, opts Options) *Service {
	s := &Service{store: store, minAvgRating: DefaultMinAvgRating, timeout: opts.QueryTimeout, now: opts.Now}
	if opts.MinAvgRating != nil {
		s.minAvgRating = *opts.MinAvgRating
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// MinAvgRating returns the configured review-quality threshold.
func (s *Service) MinAvgRating() float64 { return s.minAvgRating }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ProductsByCategoryUnderPrice streams the name, price and stock of every
// product in category with price < maxPrice. The query is issued before
// returning; results are read from the store as the sequence is consumed.
// The sequence must be ranged over to release the cursor.
func (s *Service) ProductsByCategoryUnderPrice(ctx context.Context, category string, maxPrice float64) (iter.Seq2[catalog.ProductView, error], error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	cur, err := s.store.Find(ctx, CategoryPriceFilter(category, maxPrice), productView)
	observe(OpProductsByCategory, start, err)
	if err != nil {
		cancel()
		return nil, catalog.Classify(OpProductsByCategory, err)
	}
	logger.Debugf("catalog: %s category=%q max_price=%v", OpProductsByCategory, category, maxPrice)
	return each[catalog.ProductView](ctx, cancel, cur, OpProductsByCategory), nil
}

// ProductsWithRatingAtLeast streams products whose mean review rating is
// >= threshold, best rated first.
func (s *Service) ProductsWithRatingAtLeast(ctx context.Context, threshold float64) (iter.Seq2[catalog.RatedProduct, error], error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	cur, err := s.store.Aggregate(ctx, ReviewQualityPipeline(threshold))
	observe(OpTopRated, start, err)
	if err != nil {
		cancel()
		return nil, catalog.Classify(OpTopRated, err)
	}
	logger.Debugf("catalog: %s threshold=%v", OpTopRated, threshold)
	return each[catalog.RatedProduct](ctx, cancel, cur, OpTopRated), nil
}

// TopRated runs ProductsWithRatingAtLeast with the configured threshold.
func (s *Service) TopRated(ctx context.Context) (iter.Seq2[catalog.RatedProduct, error], error) {
	return s.ProductsWithRatingAtLeast(ctx, s.minAvgRating)
}

// AppendReview appends a review dated now to the product's reviews. A
// product that does not exist is reported through a zero UpdateResult, not
// an error. Rating range checks are the caller's concern.
func (s *Service) AppendReview(ctx context.Context, productID string, in catalog.ReviewInput) (catalog.UpdateResult, error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	r := catalog.Review{
		UserID:  in.UserID,
		Rating:  in.Rating,
		Comment: in.Comment,
		Date:    s.now().UTC(),
	}
	res, err := s.store.PushReview(ctx, productID, r)
	if err != nil {
		observe(OpAppendReview, start, err)
		return catalog.UpdateResult{}, catalog.Classify(OpAppendReview, err)
	}
	if res.NotFound() {
		metrics.CatalogOperations.WithLabelValues(OpAppendReview, "not_found").Inc()
		metrics.CatalogOperationDuration.WithLabelValues(OpAppendReview).Observe(time.Since(start).Seconds())
		logger.Infof("catalog: review for unknown product %q not stored", productID)
		return res, nil
	}
	observe(OpAppendReview, start, nil)
	return res, nil
}

// CategoryPriceSummary streams one row per category with the mean price and
// product count, highest mean first.
func (s *Service) CategoryPriceSummary(ctx context.Context) (iter.Seq2[catalog.CategorySummary, error], error) {
	start := time.Now()
	ctx, cancel := s.withTimeout(ctx)
	cur, err := s.store.Aggregate(ctx, CategorySummaryPipeline())
	observe(OpCategorySummary, start, err)
	if err != nil {
		cancel()
		return nil, catalog.Classify(OpCategorySummary, err)
	}
	return each[catalog.CategorySummary](ctx, cancel, cur, OpCategorySummary), nil
}

// Ping checks that the store answers.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

// Collect drains a result sequence into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func each[T any](ctx context.Context, cancel context.CancelFunc, cur repository.Cursor, op string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer cancel()
		defer cur.Close(context.WithoutCancel(ctx))
		for cur.Next(ctx) {
			var v T
			if err := cur.Decode(&v); err != nil {
				var zero T
				yield(zero, catalog.Classify(op, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			var zero T
			yield(zero, catalog.Classify(op, err))
		}
	}
}

func observe(op string, start time.Time, err error) {
	metrics.CatalogOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.CatalogOperations.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, catalog.ErrConnection):
		return "connection_error"
	default:
		return "query_error"
	}
}
