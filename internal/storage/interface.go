// Package storage keeps published catalog archives so they can be downloaded
// again after the source URL is gone.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key holds no archive.
var ErrNotFound = errors.New("archive not found")

// Metadata describes where a stored archive came from.
type Metadata struct {
	SourceURL   string    `json:"sourceUrl,omitempty"`
	PublishID   string    `json:"publishId,omitempty"`
	CatalogCode string    `json:"catalogCode,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	StoredAt    time.Time `json:"storedAt"`
}

// FileInfo describes a stored archive without its content.
type FileInfo struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// Storage is a blob store keyed by slash-separated paths.
type Storage interface {
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetInfo(ctx context.Context, key string) (*FileInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// ArchiveKey returns the storage key of a catalog archive.
func ArchiveKey(catalogCode string) string {
	return "catalogs/" + catalogCode + ".zip"
}
