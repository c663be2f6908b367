// Package media normalizes submitted face photos and stores them in an object store.
package media

import (
	"context"
	"fmt"
)

// ImageStore persists one object per key and returns where it can be found.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// FaceKey is the object key for a submission photo.
func FaceKey(classID, rollNumber, sessionID string) string {
	return fmt.Sprintf("faces/%s/%s/%s.jpg", classID, rollNumber, sessionID)
}

// Discard accepts and drops every object. Used when IMAGE_BACKEND=none.
type Discard struct{}

func (Discard) Put(context.Context, string, []byte, string) (string, error) { return "", nil }
