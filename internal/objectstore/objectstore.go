// Package objectstore is the boundary to the S3-compatible stores the
// pipeline reads from and writes to.
package objectstore

import (
	"context"
	"io"
	"time"
)

// StorageObject is one entry of a store listing.
type StorageObject struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// Page is one page of a listing. NextToken is empty on the last page.
type Page struct {
	Objects   []StorageObject
	NextToken string
}

// Lister pages through the objects under a prefix.
type Lister interface {
	ListPage(ctx context.Context, prefix, token string) (Page, error)
}

// Getter opens an object for reading. The caller closes the body.
type Getter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Putter writes an object. body is read to EOF; size is its exact length.
type Putter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// Store is the full object store boundary.
type Store interface {
	Lister
	Getter
	Putter
}
