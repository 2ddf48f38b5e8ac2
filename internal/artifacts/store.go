// Package artifacts implements the object-storage client the node uses to
// fetch programs/stdins and publish proofs, grounded on
// chainadapter/rpc's retry-and-cache conventions and wired against the
// aws-sdk-go-v2 family (ethereum-go-ethereum pulls in aws-sdk-go-v2 for
// Route53; the s3 service client is a same-family extension of that
// dependency).
package artifacts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Type selects which key prefix an artifact is stored under.
type Type string

const (
	TypeArtifact    Type = "artifacts"
	TypeProgram     Type = "programs"
	TypeStdin       Type = "stdins"
	TypeProof       Type = "proofs"
	TypeTransaction Type = "transactions"
)

// Item is the logical artifact a node uploads or downloads. Label is
// descriptive only; Expiry, when set, is a Unix timestamp the backing
// store may use for lifecycle rules.
type Item struct {
	ID     string
	Label  string
	Expiry *int64
}

// Encodable is anything Store can serialize with a canonical binary
// encoder before upload.
type Encodable interface {
	Encode() []byte
}

// Key derives the object key an artifact of the given type is stored
// under: "<prefix>/<id>".
func Key(t Type, id string) string {
	return fmt.Sprintf("%s/%s", t, id)
}

const (
	downloadAttempts  = 5
	downloadBaseDelay = 1 * time.Second
	httpTimeout       = 60 * time.Second
)

// Store is the artifact store client: per-region backing clients are
// resolved lazily through RegionClients and cached there: the store
// itself only implements the upload/download/copy surface.
type Store struct {
	clients    *RegionClients
	httpClient *http.Client
}

// NewStore builds a Store backed by clients.
func NewStore(clients *RegionClients) *Store {
	return &Store{
		clients:    clients,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Upload serializes item with its canonical encoder and uploads it under
// the key derived from typ and id, into bucket/region.
func (s *Store) Upload(ctx context.Context, item Encodable, bucket, region string, typ Type, id string) error {
	client, err := s.clients.Get(ctx, region)
	if err != nil {
		return err
	}
	return client.PutObject(ctx, bucket, Key(typ, id), item.Encode())
}

// DownloadRaw fetches the raw bytes for id from bucket/region, retrying up
// to downloadAttempts times with exponential backoff doubling from
// downloadBaseDelay.
func (s *Store) DownloadRaw(ctx context.Context, bucket, region string, typ Type, id string) ([]byte, error) {
	client, err := s.clients.Get(ctx, region)
	if err != nil {
		return nil, err
	}

	key := Key(typ, id)
	delay := downloadBaseDelay
	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		data, err := client.GetObject(ctx, bucket, key)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == downloadAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("artifacts: download %s/%s failed after %d attempts: %w", bucket, key, downloadAttempts, lastErr)
}

// DownloadRawFromURI resolves an s3:// or https:// artifact URI and
// downloads its bytes; the final path segment is treated as the artifact
// id for s3 URIs.
func (s *Store) DownloadRawFromURI(ctx context.Context, uri, region string, typ Type) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("artifacts: malformed s3 uri %q", uri)
		}
		bucket := parts[0]
		id := parts[1][strings.LastIndex(parts[1], "/")+1:]
		return s.DownloadRaw(ctx, bucket, region, typ, id)

	case strings.HasPrefix(uri, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, fmt.Errorf("artifacts: building request for %s: %w", uri, err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("artifacts: fetching %s: %w", uri, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("artifacts: %s returned status %d", uri, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("artifacts: reading body of %s: %w", uri, err)
		}
		return body, nil

	default:
		return nil, fmt.Errorf("artifacts: unsupported uri scheme in %q", uri)
	}
}

// Copy moves an artifact between buckets/regions, skipping the transfer
// if the destination key already holds an object.
func (s *Store) Copy(ctx context.Context, typ Type, id string, srcBucket, srcRegion, dstBucket, dstRegion string) error {
	dstClient, err := s.clients.Get(ctx, dstRegion)
	if err != nil {
		return err
	}
	key := Key(typ, id)

	exists, err := dstClient.ObjectExists(ctx, dstBucket, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	data, err := s.DownloadRaw(ctx, srcBucket, srcRegion, typ, id)
	if err != nil {
		return err
	}
	return dstClient.PutObject(ctx, dstBucket, key, data)
}
