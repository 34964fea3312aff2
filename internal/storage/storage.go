package storage

import "context"

// Service stores small objects in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body []byte) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
