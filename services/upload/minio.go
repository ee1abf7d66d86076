// Package uploadsvc issues presigned URLs for direct browser uploads of
// course media, so large video files never transit the API server.
package uploadsvc

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

type minioService struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	urlExpiration time.Duration
}

var _ core.UploadService = (*minioService)(nil)

func NewMinioService(conf *core.Config) (*minioService, error) {
	client, err := minio.New(conf.Upload.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Upload.AccessKey, conf.Upload.SecretKey, ""),
		Secure: conf.Upload.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to object storage")
	}
	return &minioService{
		client:        client,
		bucket:        conf.Upload.Bucket,
		publicBaseURL: strings.TrimRight(conf.Upload.PublicBaseURL, "/"),
		urlExpiration: conf.Upload.URLExpirationDelta,
	}, nil
}

// RequestUpload reserves an object key and returns a short-lived URL the
// client PUTs the file to, plus the stable URL to reference it by afterwards.
func (svc *minioService) RequestUpload(ctx context.Context, kind, filename string) (core.PendingUpload, error) {
	key := fmt.Sprintf("%s/%s/%s", kind, uuid.NewString(), safeFilename(filename))

	u, err := svc.client.PresignedPutObject(ctx, svc.bucket, key, svc.urlExpiration)
	if err != nil {
		return core.PendingUpload{}, errors.Wrap(core.ErrUpstreamDependency, err.Error())
	}
	return core.PendingUpload{
		UploadURL: u.String(),
		PublicURL: fmt.Sprintf("%s/%s/%s", svc.publicBaseURL, svc.bucket, key),
		ExpiresAt: time.Now().UTC().Add(svc.urlExpiration),
	}, nil
}

// safeFilename keeps the extension and a sanitized base so keys stay valid
// regardless of what the browser submits.
func safeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	if base == "" || base == "." {
		base = "file"
	}
	return base
}
