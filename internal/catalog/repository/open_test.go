package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fleximart/catalog-service/internal/catalog"
	"github.com/fleximart/catalog-service/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOpenWithoutURIUsesMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), config.MongoDBConfig{Database: "fleximart_nosql", Collection: "products"})
	require.NoError(t, err)
	require.IsType(t, &MemoryRepo{}, store)
	require.NoError(t, closeFn(context.Background()))
}

func TestOpenUnreachableStoreIsConnectionError(t *testing.T) {
	store, _, err := Open(context.Background(), config.MongoDBConfig{
		URI:             "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=100",
		Database:        "fleximart_nosql",
		Collection:      "products",
		Timeout:         200 * time.Millisecond,
		ConnectAttempts: 1,
	})
	require.Nil(t, store)
	require.ErrorIs(t, err, catalog.ErrConnection)
}
