package port

import "context"

// ImageStore keeps profile images in an object store keyed by account email.
// SaveProfileImage returns the path recorded on the user row.
type ImageStore interface {
	SaveProfileImage(ctx context.Context, email, filename, contentType string, data []byte) (string, error)
	RemoveProfileImages(ctx context.Context, email string) error
}
