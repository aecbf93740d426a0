package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketCharts is the object store bucket holding rendered chart images.
const BucketCharts = "FPAGENT_CHARTS"

// DefaultTTL is how long a rendered chart stays servable.
const DefaultTTL = 24 * time.Hour

// maxImageSize caps a stored chart image.
const maxImageSize = 5 * 1024 * 1024 // 5MB

// ErrNotFound is returned for unknown or expired chart IDs.
var ErrNotFound = errors.New("chart not found")

// Storage persists rendered chart images by ID.
type Storage interface {
	Store(ctx context.Context, id string, image []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
}

// ObjectStorage keeps chart images in a NATS JetStream object store
// bucket whose TTL handles expiry.
type ObjectStorage struct {
	bucket jetstream.ObjectStore
}

// NewObjectStorage creates the charts bucket if needed.
func NewObjectStorage(ctx context.Context, js jetstream.JetStream, ttl time.Duration) (*ObjectStorage, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	bucket, err := js.ObjectStore(ctx, BucketCharts)
	if err != nil {
		bucket, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      BucketCharts,
			Description: "fpagent rendered chart images",
			TTL:         ttl,
			MaxBytes:    256 * 1024 * 1024,
		})
		if err != nil {
			return nil, fmt.Errorf("create charts bucket: %w", err)
		}
	}
	return &ObjectStorage{bucket: bucket}, nil
}

// Store saves a chart image under the given ID.
func (s *ObjectStorage) Store(ctx context.Context, id string, image []byte) error {
	if len(image) > maxImageSize {
		return fmt.Errorf("chart image too large: %d bytes", len(image))
	}
	if _, err := s.bucket.PutBytes(ctx, id, image); err != nil {
		return fmt.Errorf("store chart %s: %w", id, err)
	}
	return nil
}

// Get returns the image bytes for a chart ID.
func (s *ObjectStorage) Get(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.bucket.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chart %s: %w", id, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(obj, maxImageSize)); err != nil {
		return nil, fmt.Errorf("read chart %s: %w", id, err)
	}
	return buf.Bytes(), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrObjectNotFound) ||
		(err != nil && strings.Contains(err.Error(), "not found"))
}
