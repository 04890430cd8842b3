// Package blob stores document and report content outside the database.
//
// Keys are opaque slash-separated paths chosen by the caller, for example
// "documents/12/4f1c....pdf" or "reports/12/9b2e....xlsx".
package blob

import (
	"context"
	"errors"
	"io"

	"github.com/platinummonkey/groundwork/pkg/config"
	"github.com/platinummonkey/groundwork/pkg/observability"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("blob not found")

// Store reads and writes blobs by key
type Store interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New returns a FileSystemStore when cfg.LocalDir is set and an S3Store otherwise
func New(ctx context.Context, cfg config.S3Config, metrics *observability.Metrics) (Store, error) {
	if cfg.LocalDir != "" {
		return NewFileSystemStore(cfg.LocalDir)
	}
	return NewS3Store(ctx, cfg, metrics)
}
