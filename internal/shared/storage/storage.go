// Package storage archives rendered documents (receipts, labels) in a MinIO
// bucket so they can be fetched again later.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DocumentStore archives and retrieves binary documents.
type DocumentStore struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*DocumentStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: make bucket: %w", err)
		}
	}

	return &DocumentStore{client: client, bucket: bucket}, nil
}

// Put archives a document and returns its object name.
func (s *DocumentStore) Put(ctx context.Context, prefix, name string, data []byte, contentType string) (string, error) {
	objectName := fmt.Sprintf("%s/%s/%s", prefix, time.Now().Format("2006/01"), name)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", objectName, err)
	}
	return objectName, nil
}

// PresignedURL returns a temporary download link for an archived document.
func (s *DocumentStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", objectName, err)
	}
	return u.String(), nil
}
