package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/catalog/pipeline"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryRepo is an in-memory Store used when no MongoDB is configured and in
// unit tests. Products keep their insertion order so order dependent
// accumulators ($first) behave like a natural-order collection scan.
type MemoryRepo struct {
	mu    sync.RWMutex
	order []string
	store map[string]*catalog.Product
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*catalog.Product)}
}

// snapshot converts every product to its document form under the read lock.
func (m *MemoryRepo) snapshot() ([]bson.M, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]bson.M, 0, len(m.order))
	for _, id := range m.order {
		d, err := pipeline.ToDocument(m.store[id])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryRepo) Find(ctx context.Context, filter pipeline.Match, proj pipeline.Project) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.Classify("find", err)
	}
	if err := filter.Validate(); err != nil {
		return nil, &catalog.QueryError{Op: "find", Err: err}
	}
	if err := proj.Validate(); err != nil {
		return nil, &catalog.QueryError{Op: "find", Err: err}
	}
	docs, err := m.snapshot()
	if err != nil {
		return nil, &catalog.QueryError{Op: "find", Err: err}
	}
	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		if filter.Matches(d) {
			out = append(out, proj.Apply(d))
		}
	}
	return &sliceCursor{docs: out}, nil
}

func (m *MemoryRepo) Aggregate(ctx context.Context, p pipeline.Pipeline) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.Classify("aggregate", err)
	}
	docs, err := m.snapshot()
	if err != nil {
		return nil, &catalog.QueryError{Op: "aggregate", Err: err}
	}
	out, err := p.Run(docs)
	if err != nil {
		return nil, &catalog.QueryError{Op: "aggregate", Err: err}
	}
	return &sliceCursor{docs: out}, nil
}

func (m *MemoryRepo) PushReview(ctx context.Context, productID string, r catalog.Review) (catalog.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return catalog.UpdateResult{}, catalog.Classify("push review", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[productID]
	if !ok {
		return catalog.UpdateResult{}, nil
	}
	p.Reviews = append(p.Reviews, r)
	return catalog.UpdateResult{Matched: 1, Modified: 1}, nil
}

// InsertMany stores copies of the given products. A product_id that already
// exists is skipped, as the unique index would reject it.
func (m *MemoryRepo) InsertMany(ctx context.Context, products []catalog.Product) (catalog.ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return catalog.ImportResult{}, catalog.Classify("insert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res catalog.ImportResult
	for i := range products {
		p := products[i]
		if _, dup := m.store[p.ProductID]; dup {
			res.Skipped++
			continue
		}
		p.Reviews = append([]catalog.Review{}, p.Reviews...)
		p.Normalize()
		m.store[p.ProductID] = &p
		m.order = append(m.order, p.ProductID)
		res.Inserted++
	}
	return res, nil
}

func (m *MemoryRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *MemoryRepo) Ping(ctx context.Context) error { return ctx.Err() }

// Get returns a copy of the product with the given id.
func (m *MemoryRepo) Get(productID string) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[productID]
	if !ok {
		return nil, fmt.Errorf("product %q not found", productID)
	}
	cp := *p
	cp.Reviews = append([]catalog.Review{}, p.Reviews...)
	return &cp, nil
}

// Len returns the number of stored products.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// sliceCursor walks pre-computed result documents.
type sliceCursor struct {
	docs []bson.M
	pos  int
	cur  bson.M
	err  error
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *sliceCursor) Decode(v any) error {
	if c.cur == nil {
		return fmt.Errorf("cursor is not positioned on a document")
	}
	return pipeline.Decode(c.cur, v)
}

func (c *sliceCursor) Err() error { return c.err }

func (c *sliceCursor) Close(ctx context.Context) error {
	c.docs = nil
	c.cur = nil
	return nil
}
