// Package archive stores raw fetched payloads so extraction bugs can be
// replayed against the bytes that actually came off the wire.
package archive

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// GCS writes payloads to a Google Cloud Storage bucket. Object names are
// derived from the source, the crawl date, and a digest of the body, so a
// re-crawl of identical content lands on the same object.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS initializes the client and verifies the bucket is reachable, so a
// misconfigured deployment fails at startup rather than mid-crawl.
// Authentication comes from Application Default Credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put uploads the payload and returns its gs:// URI.
func (g *GCS) Put(ctx context.Context, source, contentType string, body []byte) (string, error) {
	name := ObjectName(source, time.Now().UTC(), body)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %s: %w", name, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, name), nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// ObjectName builds the content-addressed key for one payload.
func ObjectName(source string, at time.Time, body []byte) string {
	digest := sha256.Sum256(body)
	return fmt.Sprintf("raw/%s/%s/%x", source, at.Format("2006-01-02"), digest[:8])
}
