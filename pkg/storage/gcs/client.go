package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/northcraft/cabinetry-backend/pkg/config"
	"github.com/northcraft/cabinetry-backend/pkg/logger"
	"google.golang.org/api/option"
)

const (
	defaultPublicBaseURL = "https://storage.googleapis.com"
	defaultSignedURLTTL  = 15 * time.Minute
	pingTimeout          = 5 * time.Second
)

var (
	errBucketRequired = errors.New("gcs bucket name is required")
	errObjectRequired = errors.New("gcs object name is required")
	errNotInitialized = errors.New("gcs client not initialized")
)

// ObjectStore is the subset of bucket operations domain services depend on.
type ObjectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, object string) error
	PublicURL(object string) string
}

// Client wraps a Cloud Storage client bound to the configured bucket.
type Client struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	accessID      string
}

// NewClient builds a storage client from the GCP credentials in config.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errBucketRequired
	}

	sc, err := storage.NewClient(ctx, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	c := &Client{
		client:        sc,
		bucket:        bucket,
		publicBaseURL: normalizeBaseURL(cfg.PublicBaseURL),
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "bucket", bucket)
		logg.Info(ctx, "gcs client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return defaultPublicBaseURL
	}
	return base
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Upload streams body into the bucket and returns the object's public URL.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error) {
	if c == nil || c.client == nil {
		return "", errNotInitialized
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return "", errObjectRequired
	}

	w := c.client.Bucket(c.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object %q: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %q: %w", object, err)
	}
	return c.PublicURL(object), nil
}

// Delete removes the object; a missing object is not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return errObjectRequired
	}
	err := c.client.Bucket(c.bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object %q: %w", object, err)
	}
	return nil
}

// Copy duplicates src into dst inside the bucket.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
		return errObjectRequired
	}
	bkt := c.client.Bucket(c.bucket)
	if _, err := bkt.Object(dst).CopierFrom(bkt.Object(src)).Run(ctx); err != nil {
		return fmt.Errorf("copying %q to %q: %w", src, dst, err)
	}
	return nil
}

// PublicURL returns the browser-facing URL for an object key.
func (c *Client) PublicURL(object string) string {
	if c == nil {
		return ""
	}
	return PublicObjectURL(c.publicBaseURL, c.bucket, object)
}

// PublicObjectURL joins base, bucket and an escaped object path.
func PublicObjectURL(base, bucket, object string) string {
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", normalizeBaseURL(base), bucket, strings.Join(segments, "/"))
}

// SignedDownloadURL returns a V4 signed GET URL for private objects.
func (c *Client) SignedDownloadURL(object string, ttl time.Duration) (string, error) {
	if c == nil || c.client == nil {
		return "", errNotInitialized
	}
	if strings.TrimSpace(object) == "" {
		return "", errObjectRequired
	}
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	opts := &storage.SignedURLOptions{
		GoogleAccessID: c.accessID,
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        time.Now().Add(ttl),
	}
	return c.client.Bucket(c.bucket).SignedURL(object, opts)
}

// Ping checks the bucket metadata is readable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.client.Bucket(c.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %q: %w", c.bucket, err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
