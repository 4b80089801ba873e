package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/coursepilot/go-services/internal/document"
)

const uploadContentType = "application/pdf"

// Key is the object name an upload for id is archived under.
func Key(id document.ID) string {
	return "uploads/" + id.String() + ".pdf"
}

// Archive keeps the original uploaded PDFs in a MinIO bucket, next to the
// extracted text held by the document store.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive creates a MinIO client and ensures the bucket exists.
func NewArchive(ctx context.Context, cfg *MinIOConfig) (*Archive, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	a := &Archive{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return a, nil
}

// Put stores the raw upload for id. Re-uploading the same report overwrites
// the object with identical bytes.
func (a *Archive) Put(ctx context.Context, id document.ID, data []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, Key(id), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: uploadContentType})
	return err
}

// PresignedURL returns a GET URL for the archived upload valid for expires.
func (a *Archive) PresignedURL(ctx context.Context, id document.ID, expires time.Duration) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", id.String()+".pdf"))
	u, err := a.client.PresignedGetObject(ctx, a.bucket, Key(id), expires, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
