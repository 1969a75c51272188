// Package ports declares the interfaces montage depends on for storing
// finished videos.
package ports

import (
	"context"
	"io"
	"time"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// ObjectKey is the key to read the object back with. localfs and s3
	// echo the input key; gdrive returns the Drive file id.
	ObjectKey string
	Size      int64
}

type SignedURLOutput struct {
	URL       string
	ExpiresAt time.Time
}

// StorageProvider keeps finished videos outside of job working directories.
// Implementations: localfs, gdrive, s3.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error

	// GetSignedURL returns an empty URL when the backend cannot sign.
	GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (SignedURLOutput, error)
}

// Pinger is implemented by providers that can report reachability for the
// deep health check.
type Pinger interface {
	Ping(ctx context.Context) error
}
