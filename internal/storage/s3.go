// Package storage uploads applicant documents to blob storage and hands
// back the public URLs stored on the application record.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DocumentStore is the slice of blob storage the application flow needs.
type DocumentStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	PublicURL(key string) string
}

type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store wires the bucket documents are uploaded into. baseURL overrides
// the default public URL host, for CDN-fronted buckets; leave it empty to
// serve straight from S3.
func NewS3Store(client *s3.Client, bucket, baseURL string) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return key, nil
}

func (s *S3Store) PublicURL(key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

// DocumentKey namespaces uploads by owning identity and a timestamp so two
// files with the same name never collide.
func DocumentKey(ownerID, fileName string) string {
	return fmt.Sprintf("applications/%s/%d-%s", ownerID, time.Now().UnixMilli(), fileName)
}
