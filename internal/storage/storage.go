// Package storage provides temporary file handling and artifact fetching.
// It defines the Storage interface (port) and implementations for local disk
// and S3-backed artifacts.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// S3Scheme is the URI prefix that marks a path as an S3 object.
const S3Scheme = "s3://"

var (
	// ErrObjectNotFound is returned when a local file or remote object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidURI is returned for malformed s3:// URIs.
	ErrInvalidURI = errors.New("storage: invalid S3 URI")
)

// Storage defines the interface for temporary files and artifact resolution.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// TempPath reserves a unique path in the temp directory without writing to it.
	TempPath(ctx context.Context, name string) (string, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Fetch resolves a model or audio location to a readable local path.
	// Local paths are returned unchanged after an existence check; s3:// URIs
	// are downloaded to the temp directory. The returned cleanup list holds
	// any temporary files the caller must remove with CleanupTemp.
	Fetch(ctx context.Context, location string) (path string, temp []string, err error)
}

// IsS3URI reports whether location uses the s3:// scheme.
func IsS3URI(location string) bool {
	return strings.HasPrefix(location, S3Scheme)
}

// ParseS3URI splits an s3://bucket/key URI into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", ErrInvalidURI
	}
	rest := strings.TrimPrefix(uri, S3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", ErrInvalidURI
	}
	return bucket, key, nil
}
