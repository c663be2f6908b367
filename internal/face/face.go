// Package face indexes student faces and searches submitted photos against them.
package face

import (
	"context"
	"errors"
)

// ErrNoFace is returned when a photo contains no detectable face.
var ErrNoFace = errors.New("no face detected in image")

// Match is the best gallery hit for a searched photo. Similarity is a percentage.
type Match struct {
	FaceID     string
	ExternalID string
	Similarity float64
}

// Accept reports whether m identifies studentID with similarity strictly above threshold.
func Accept(m *Match, studentID string, threshold float64) bool {
	return m != nil && m.Similarity > threshold && m.ExternalID == studentID
}

// Recognizer is a face gallery keyed by an external id (the student id).
type Recognizer interface {
	// Index stores the face in image under externalID and returns the backend face id.
	Index(ctx context.Context, externalID string, image []byte) (string, error)
	// Search returns the best match for the face in image, or nil when nothing matches.
	Search(ctx context.Context, image []byte) (*Match, error)
	// Remove deletes a face returned by Index. Removing an unknown face is not an error.
	Remove(ctx context.Context, faceID string) error
	Health(ctx context.Context) error
}
