// Package core defines the content store abstraction shared by the blob
// drivers. Evidence content is write-once: a key is never overwritten.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores content under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 targets an S3 or MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps content in process memory (tests).
	DriverMemory Driver = "memory"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	// Metadata is small flat user metadata stored beside the object.
	Metadata map[string]string
}

// SignedURLOptions holds options for generating a pre-signed URL.
type SignedURLOptions struct {
	// Method is GET; other methods are unsupported.
	Method string
	// Expiry defaults to DefaultURLExpiry.
	Expiry time.Duration
}

// DefaultURLExpiry bounds pre-signed download links.
const DefaultURLExpiry = 15 * time.Minute

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the content store used by evidence attachments.
type Store interface {
	// Put writes a new object. It fails with ErrExists if key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get opens an object. Callers close the reader.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether the object existed.
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned when an optional capability is not available.
	ErrUnsupported = errors.New("blobstore: unsupported operation")
	// ErrNotFound is returned for keys that hold no object.
	ErrNotFound = errors.New("blobstore: object not found")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blobstore: object already exists")
)

// CleanKey validates key and returns its canonical slash-separated form.
// Empty keys, absolute keys and any ".." segment are rejected.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", errors.New("blobstore: empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blobstore: absolute key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("blobstore: key %q escapes root", key)
		}
	}
	clean := path.Clean(key)
	if clean == "." {
		return "", errors.New("blobstore: empty key")
	}
	return clean, nil
}

// CloneMetadata copies m; nil stays nil.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
