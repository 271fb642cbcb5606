package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleximart/catalog-service/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const productsQuery = "/api/v1/products?category=Electronics&max_price=50000"

func catalogReads(mw gin.HandlerFunc) *gin.Engine {
	g := gin.New()
	g.Use(mw)
	g.GET("/api/v1/products", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	g.GET("/api/v1/categories/summary", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	return g
}

func get(g *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ip != "" {
		req.RemoteAddr = ip + ":40000"
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_CatalogReadsWithinBurst(t *testing.T) {
	allowed := metrics.RateLimitAllowed.WithLabelValues("memory")
	before := testutil.ToFloat64(allowed)
	g := catalogReads(RateLimitMiddleware(10, 2))

	require.Equal(t, http.StatusOK, get(g, productsQuery, "").Code)
	require.Equal(t, http.StatusOK, get(g, "/api/v1/categories/summary", "").Code)
	require.Equal(t, before+2, testutil.ToFloat64(allowed))
}

func TestRateLimitMiddleware_RejectsThenRefills(t *testing.T) {
	rejected := metrics.RateLimitRejected.WithLabelValues("memory")
	before := testutil.ToFloat64(rejected)
	g := catalogReads(RateLimitMiddleware(2, 1))

	require.Equal(t, http.StatusOK, get(g, productsQuery, "").Code)
	w := get(g, productsQuery, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Equal(t, before+1, testutil.ToFloat64(rejected))

	// 2 tokens/s: one is back after 500ms
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, http.StatusOK, get(g, productsQuery, "").Code)
}

func TestRateLimitMiddleware_ClientsHaveSeparateBuckets(t *testing.T) {
	g := catalogReads(RateLimitMiddleware(0.5, 1))

	require.Equal(t, http.StatusOK, get(g, productsQuery, "10.0.0.1").Code)
	require.Equal(t, http.StatusOK, get(g, productsQuery, "10.0.0.2").Code)
	require.Equal(t, http.StatusTooManyRequests, get(g, productsQuery, "10.0.0.1").Code)
}

func TestRateLimitMiddleware_ReviewerKeyedBySubject(t *testing.T) {
	g := gin.New()
	// reviewers behind one NAT share an IP but not a bucket
	g.POST(reviewPath, AuthMiddleware(knownReviewers), RateLimitMiddleware(0.5, 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, postReview(g, "ELEC001", "Bearer tok-u999").Code)
	require.Equal(t, http.StatusOK, postReview(g, "ELEC001", "Bearer tok-u001").Code)
	require.Equal(t, http.StatusTooManyRequests, postReview(g, "ELEC002", "Bearer tok-u999").Code)
}

func TestRateLimitMiddleware_ReadAndWriteLimitsIndependent(t *testing.T) {
	g := gin.New()
	reads := RateLimitMiddleware(0.5, 1)
	g.GET("/api/v1/products", reads, func(c *gin.Context) { c.Status(http.StatusOK) })
	g.POST(reviewPath, RateLimitMiddleware(0.5, 1), func(c *gin.Context) { c.Status(http.StatusOK) })

	// same client IP on both routes
	require.Equal(t, http.StatusOK, get(g, productsQuery, "").Code)
	require.Equal(t, http.StatusOK, postReview(g, "ELEC001", "").Code)
	require.Equal(t, http.StatusTooManyRequests, get(g, productsQuery, "").Code)
}
