package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

// DocumentKind routes objects into org-scoped key prefixes.
type DocumentKind string

const (
	DocumentKindPolicy DocumentKind = "policies"
	DocumentKindAudit  DocumentKind = "audits"
)

// BucketService is the object-store surface the pipelines depend on.
type BucketService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the canonical {org}/{kind}/{id}.{ext} storage path.
func ObjectKey(orgID, kind, id, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s/%s/%s.%s", orgID, kind, id, ext)
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	bucketName := os.Getenv("DOCUMENTS_GCS_BUCKET_NAME")
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var DOCUMENTS_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	var opts []option.ClientOption
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucketName,
	}, nil
}

func (bs *bucketService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return &apperr.StorageError{Msg: "failed to write object", Err: err}
	}
	if err := w.Close(); err != nil {
		return &apperr.StorageError{Msg: "failed to finalize object", Err: err}
	}
	return nil
}

func (bs *bucketService) Download(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := bs.storageClient.Bucket(bs.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, &apperr.StorageError{Msg: "object not found: " + key, Err: err}
		}
		return nil, &apperr.StorageError{Msg: "failed to open object", Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &apperr.StorageError{Msg: "failed to read object", Err: err}
	}
	return data, nil
}

func (bs *bucketService) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := bs.storageClient.Bucket(bs.bucketName).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return &apperr.StorageError{Msg: "failed to delete object", Err: err}
	}
	return nil
}
