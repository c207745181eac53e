// Package storage uploads user files to Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/notism-go/internal/application"
	"github.com/oksasatya/notism-go/pkg/helpers"
)

// MaxAvatarBytes caps a single upload.
const MaxAvatarBytes = 5 << 20

var ErrTooLarge = errors.New("file exceeds upload limit")

type GCSStorage struct {
	client *storage.Client
	bucket string
}

func NewGCSStorage(client *storage.Client, bucket string) *GCSStorage {
	return &GCSStorage{client: client, bucket: bucket}
}

func (s *GCSStorage) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	lr := &limitedReader{r: r, n: MaxAvatarBytes}
	url, err := helpers.PutObject(ctx, s.client, s.bucket, objectPath, contentType, lr)
	if lr.exceeded {
		return "", ErrTooLarge
	}
	return url, err
}

// limitedReader fails once more than n bytes are read, so the writer aborts
// instead of storing a truncated object.
type limitedReader struct {
	r        io.Reader
	n        int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		l.exceeded = true
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		l.exceeded = true
		return n, ErrTooLarge
	}
	return n, err
}

var _ application.ObjectStorage = (*GCSStorage)(nil)
