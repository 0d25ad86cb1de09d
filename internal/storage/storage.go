package storage

import (
	"context"
)

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data from the given storage URL
	Get(ctx context.Context, url string) ([]byte, error)
	// List returns the storage URLs of all objects under the given key prefix
	List(ctx context.Context, prefix string) ([]string, error)
}
