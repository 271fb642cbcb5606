package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source opens a catalog export by name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Files reads exports from the local filesystem; names are paths.
type Files struct{}

func (Files) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	return f, nil
}

var (
	_ Source = Files{}
	_ Source = (*ObjectStore)(nil)
)
