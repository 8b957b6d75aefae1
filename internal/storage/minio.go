// Package storage stores uploaded writing-sample files in S3-compatible
// object storage. Uploads are validated against a size cap and a MIME
// allow-list before any network call.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxUploadBytes is the upload size cap.
const MaxUploadBytes = 10 << 20 // 10 MB

var (
	// ErrTooLarge rejects uploads over MaxUploadBytes.
	ErrTooLarge = errors.New("file exceeds the 10 MB upload limit")
	// ErrUnsupportedType rejects uploads outside the MIME allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNotConfigured is returned when no object storage is configured.
	ErrNotConfigured = errors.New("file storage not configured")
)

// allowedTypes maps accepted MIME types to the extension stored objects
// get. Text, PDF and Word documents only.
var allowedTypes = map[string]string{
	"text/plain":      "txt",
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// Config configures the MinIO-backed store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base URL for stored objects,
	// e.g. https://files.example.com. Defaults to the endpoint.
	PublicURL string
}

// Store saves uploads to a single bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// Upload is one stored file.
type Upload struct {
	Key string
	URL string
}

// New connects to object storage and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &Store{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

// ValidateUpload checks size and MIME type without touching the network.
// It is exposed separately so handlers can reject bad uploads before
// reading the whole body.
func ValidateUpload(size int64, contentType string) error {
	if size > MaxUploadBytes {
		return ErrTooLarge
	}
	if _, ok := allowedTypes[normalizeContentType(contentType)]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// SaveSample stores a writing-sample file under the owner's prefix and
// returns its key and public URL.
func (s *Store) SaveSample(ctx context.Context, ownerID, title string, data []byte, contentType string) (Upload, error) {
	if err := ValidateUpload(int64(len(data)), contentType); err != nil {
		return Upload{}, err
	}
	contentType = normalizeContentType(contentType)

	key := path.Join("samples", ownerID, fmt.Sprintf("%s-%d.%s", slug(title), time.Now().Unix(), allowedTypes[contentType]))
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("store upload: %w", err)
	}

	return Upload{
		Key: key,
		URL: s.publicURL + "/" + path.Join(s.bucket, key),
	}, nil
}

// Delete removes a stored object. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// normalizeContentType strips parameters like "; charset=utf-8".
func normalizeContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// slug reduces a title to a safe object-key fragment.
func slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "sample"
	}
	return b.String()
}
