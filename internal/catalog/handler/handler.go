package handler

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/service"
	"github.com/fleximart/catalog-service/pkg/logger"
	"github.com/fleximart/catalog-service/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Service is the subset of the catalog service the HTTP layer needs.
type Service interface {
	ProductsByCategoryUnderPrice(ctx context.Context, category string, maxPrice float64) (iter.Seq2[catalog.ProductView, error], error)
	ProductsWithRatingAtLeast(ctx context.Context, threshold float64) (iter.Seq2[catalog.RatedProduct, error], error)
	MinAvgRating() float64
	AppendReview(ctx context.Context, productID string, in catalog.ReviewInput) (catalog.UpdateResult, error)
	CategoryPriceSummary(ctx context.Context) (iter.Seq2[catalog.CategorySummary, error], error)
}

// MaxPrice is an exclusive ceiling; zero or negative is valid and matches nothing.
type productQuery struct {
	Category string   `form:"category" binding:"required"`
	MaxPrice *float64 `form:"max_price" binding:"required"`
}

type topRatedQuery struct {
	MinRating *float64 `form:"min_rating" binding:"omitempty,gte=0,lte=5"`
}

// RegisterCatalogRoutes mounts the catalog API under /api/v1. writeGuard runs
// before the review write handler (auth, for instance).
func RegisterCatalogRoutes(r gin.IRouter, svc Service, writeGuard ...gin.HandlerFunc) {
	api := r.Group("/api/v1")

	api.GET("/products", func(c *gin.Context) {
		var q productQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		seq, err := svc.ProductsByCategoryUnderPrice(c.Request.Context(), q.Category, *q.MaxPrice)
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := service.Collect(seq)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	api.GET("/products/top-rated", func(c *gin.Context) {
		var q topRatedQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		threshold := svc.MinAvgRating()
		if q.MinRating != nil {
			threshold = *q.MinRating
		}
		seq, err := svc.ProductsWithRatingAtLeast(c.Request.Context(), threshold)
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := service.Collect(seq)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	appendReview := func(c *gin.Context) {
		id := c.Param("product_id")
		var req catalog.ReviewInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.AppendReview(c.Request.Context(), id, req)
		if err != nil {
			writeError(c, err)
			return
		}
		if sub := middleware.Subject(c); sub != "" {
			logger.Infof("review for %q by user_id=%q submitted by %q", id, req.UserID, sub)
		}
		if res.NotFound() {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found", "product_id": id, "matched": res.Matched, "modified": res.Modified})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": id, "matched": res.Matched, "modified": res.Modified})
	}
	api.POST("/products/:product_id/reviews", append(writeGuard, appendReview)...)

	api.GET("/categories/summary", func(c *gin.Context) {
		seq, err := svc.CategoryPriceSummary(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := service.Collect(seq)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrConnection):
		logger.Warnf("catalog store unavailable: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog store unavailable"})
	default:
		logger.Errorf("catalog query failed: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog query failed"})
	}
}
