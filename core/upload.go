package core

import (
	"context"
	"time"
)

// Upload kinds accepted by the blob store.
const (
	UploadKindImage = "image"
	UploadKindVideo = "video"
)

type (
	// PendingUpload is the first half of the two-phase upload protocol: the
	// client PUTs the file to UploadURL, then submits PublicURL with the
	// entity (course image, section video) that references it.
	PendingUpload struct {
		UploadURL string    `json:"upload_url"`
		PublicURL string    `json:"public_url"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	// UploadService is any service that can issue pre-authorized upload URLs.
	UploadService interface {
		RequestUpload(ctx context.Context, kind, filename string) (PendingUpload, error)
	}
)
