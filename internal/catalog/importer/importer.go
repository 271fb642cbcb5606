package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/repository"
	"github.com/fleximart/catalog-service/pkg/logger"
	"github.com/fleximart/catalog-service/pkg/metrics"
	"github.com/go-playground/validator/v10"
)

const opImport = "import"

// dateLayouts are the review date formats found in catalog exports, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"01-02-2006",
	"01/02/2006",
}

// reviewDate accepts any of dateLayouts. Unparsable or empty values decode to
// the zero time.
type reviewDate struct {
	time.Time
}

func (d *reviewDate) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		// null or a non-string value
		d.Time = time.Time{}
		return nil
	}
	d.Time = ParseDate(raw)
	if d.Time.IsZero() && strings.TrimSpace(raw) != "" {
		logger.Warnf("importer: unparsable review date %q, storing zero time", raw)
	}
	return nil
}

type rawReview struct {
	UserID  string     `json:"user_id"`
	Rating  float64    `json:"rating"`
	Comment string     `json:"comment"`
	Date    reviewDate `json:"date"`
}

type rawProduct struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Price     float64     `json:"price"`
	Stock     int         `json:"stock"`
	Reviews   []rawReview `json:"reviews"`
}

// ParseDate parses s with the first matching layout, returning UTC. It
// returns the zero time when nothing matches.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Decode reads a JSON array of products.
func Decode(r io.Reader) ([]catalog.Product, error) {
	var raw []rawProduct
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	out := make([]catalog.Product, 0, len(raw))
	for _, rp := range raw {
		p := catalog.Product{
			ProductID: strings.TrimSpace(rp.ProductID),
			Name:      rp.Name,
			Category:  rp.Category,
			Price:     rp.Price,
			Stock:     rp.Stock,
		}
		for _, rr := range rp.Reviews {
			p.Reviews = append(p.Reviews, catalog.Review{
				UserID:  rr.UserID,
				Rating:  rr.Rating,
				Comment: rr.Comment,
				Date:    rr.Date.Time,
			})
		}
		p.Normalize()
		out = append(out, p)
	}
	return out, nil
}

// Importer loads catalog exports into a Store.
type Importer struct {
	store    repository.Store
	validate *validator.Validate
}

func New(store repository.Store) *Importer {
	return &Importer{store: store, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Filter drops products that fail validation or repeat an earlier product_id
// and returns the survivors with the number dropped.
func (im *Importer) Filter(products []catalog.Product) ([]catalog.Product, int) {
	seen := make(map[string]struct{}, len(products))
	keep := make([]catalog.Product, 0, len(products))
	skipped := 0
	for i, p := range products {
		if err := im.validate.Struct(p); err != nil {
			logger.Warnf("importer: skipping entry %d (%q): %v", i, p.ProductID, err)
			skipped++
			continue
		}
		if _, dup := seen[p.ProductID]; dup {
			logger.Warnf("importer: skipping duplicate product_id %q at entry %d", p.ProductID, i)
			skipped++
			continue
		}
		seen[p.ProductID] = struct{}{}
		keep = append(keep, p)
	}
	return keep, skipped
}

// Import decodes r, ensures the collection indexes and inserts the valid
// products. Products already present in the store count as skipped.
func (im *Importer) Import(ctx context.Context, r io.Reader) (catalog.ImportResult, error) {
	start := time.Now()
	res, err := im.run(ctx, r)
	metrics.CatalogOperationDuration.WithLabelValues(opImport).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "query_error"
		if errors.Is(err, catalog.ErrConnection) {
			outcome = "connection_error"
		}
		metrics.CatalogOperations.WithLabelValues(opImport, outcome).Inc()
		return res, err
	}
	metrics.CatalogOperations.WithLabelValues(opImport, "ok").Inc()
	logger.Infof("importer: inserted %d products, skipped %d", res.Inserted, res.Skipped)
	return res, nil
}

func (im *Importer) run(ctx context.Context, r io.Reader) (catalog.ImportResult, error) {
	products, err := Decode(r)
	if err != nil {
		return catalog.ImportResult{}, err
	}
	keep, skipped := im.Filter(products)
	if err := im.store.EnsureIndexes(ctx); err != nil {
		return catalog.ImportResult{Skipped: skipped}, catalog.Classify(opImport, err)
	}
	if len(keep) == 0 {
		return catalog.ImportResult{Skipped: skipped}, nil
	}
	res, err := im.store.InsertMany(ctx, keep)
	res.Skipped += skipped
	if err != nil {
		return res, catalog.Classify(opImport, err)
	}
	return res, nil
}
