package repositories

import (
	"context"
	"io"
	"time"
)

// AudioFileStore keeps uploaded audio artifacts. Temporary artifacts exist
// only while an upload is processed; durable ones are referenced by audio
// records and messages.
type AudioFileStore interface {
	SaveTemp(ctx context.Context, filename string, r io.Reader) (string, error)
	// Promote copies a temporary artifact to the durable per-user location
	// and returns the durable path. The temporary artifact is left in place.
	Promote(ctx context.Context, tempPath, userID, filename string, at time.Time) (string, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}
