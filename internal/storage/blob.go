package storage

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore keeps uploaded files such as profile photos.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// PhotoKey is where a user's profile photo lives.
func PhotoKey(userID string) string { return "photos/" + userID }
