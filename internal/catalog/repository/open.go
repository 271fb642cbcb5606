package repository

import (
	"context"
	"time"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/config"
	"github.com/fleximart/catalog-service/internal/database"
	"github.com/fleximart/catalog-service/pkg/logger"
)

// Open returns the catalog store for cfg. Without a URI the catalog is an
// empty in-memory store. With a URI the store is MongoDB or nothing: a
// connection that cannot be made is reported as a ConnectionError rather
// than replaced by a local store.
func Open(ctx context.Context, cfg config.MongoDBConfig) (Store, func(context.Context) error, error) {
	if cfg.URI == "" {
		logger.Warnf("MONGODB_URI not set: using in-memory catalog")
		return NewMemoryRepo(), func(context.Context) error { return nil }, nil
	}
	client, err := database.ConnectWithRetry(ctx, cfg.URI, cfg.Timeout, cfg.ConnectAttempts, time.Second)
	if err != nil {
		return nil, nil, &catalog.ConnectionError{Op: "connect", Err: err}
	}
	repo := NewMongoRepo(client.Database(cfg.Database).Collection(cfg.Collection))
	idxCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := repo.EnsureIndexes(idxCtx); err != nil {
		logger.Warnf("ensure catalog indexes: %v", err)
	}
	return repo, client.Disconnect, nil
}
