// Package proofs stores payment proof documents (transfer slips, cheque
// scans) in S3 and answers existence checks for the ingestion service.
package proofs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/s3"
)

type Store struct {
	S3 *s3.S3
}

func NewStore(s3c *s3.S3) *Store {
	return &Store{S3: s3c}
}

// Put uploads a proof document and returns its s3:// reference.
func (s *Store) Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	fname := path.Base(filename)
	key := fmt.Sprintf("proofs/%d-%s", time.Now().UnixNano(), fname)

	if size <= 0 {
		size = -1
	}

	_, err := s.S3.Client.PutObject(ctx, s.S3.Bucket, key, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("s3 put: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.S3.Bucket, key), nil
}

// Exists checks that the referenced proof object is actually stored.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	bucket, key, err := parseRef(url)
	if err != nil {
		return false, err
	}

	_, err = s.S3.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, fmt.Errorf("s3 stat: %w", err)
	}
	return true, nil
}

// ViewLink returns a time-limited download URL so a reviewer can inspect
// the document without the service proxying bytes.
func (s *Store) ViewLink(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	return s.S3.PresignedGet(ctx, bucket, key, expiry)
}

func parseRef(url string) (bucket, key string, err error) {
	trimmed, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 reference: %q", url)
	}
	bucket, key, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("bad s3 reference: %q", url)
	}
	return bucket, key, nil
}
