package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const (
	credentialRefresh = 300 * time.Second
	credentialLoad    = 10 * time.Second
	clientMaxAttempts = 7
	clientMaxBackoff  = 30 * time.Second
)

// ObjectClient is the minimal object-store surface Store needs; satisfied
// by the s3Client adapter below, exported so callers (including tests) can
// substitute a fake backing store.
type ObjectClient interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
}

// RegionClients lazily constructs and caches one ObjectClient per AWS
// region behind a reader-writer lock, constructed once and cached
// process-wide.
type RegionClients struct {
	mu      sync.RWMutex
	clients map[string]ObjectClient
}

// NewRegionClients returns an empty, ready-to-use cache.
func NewRegionClients() *RegionClients {
	return &RegionClients{clients: make(map[string]ObjectClient)}
}

// Preload registers client as the cached ObjectClient for region,
// bypassing lazy S3 construction. Intended for tests that need a fake
// backing store.
func (r *RegionClients) Preload(region string, client ObjectClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[region] = client
}

// Get returns the cached client for region, building and caching one on
// first use.
func (r *RegionClients) Get(ctx context.Context, region string) (ObjectClient, error) {
	r.mu.RLock()
	client, ok := r.clients[region]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[region]; ok {
		return client, nil
	}

	client, err := newS3Client(ctx, region)
	if err != nil {
		return nil, err
	}
	r.clients[region] = client
	return client, nil
}

// s3Client adapts *s3.Client to ObjectClient.
type s3Client struct {
	inner *s3.Client
}

func newS3Client(ctx context.Context, region string) (*s3Client, error) {
	loadCtx, cancel := context.WithTimeout(ctx, credentialLoad)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(loadCtx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsCacheOptions(func(o *aws.CredentialsCacheOptions) {
			o.ExpiryWindow = credentialRefresh
		}),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = clientMaxAttempts
				o.MaxBackoff = clientMaxBackoff
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("artifacts: loading aws config for region %s: %w", region, err)
	}

	return &s3Client{inner: s3.NewFromConfig(cfg)}, nil
}

func (c *s3Client) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.inner.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("artifacts: put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (c *s3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.inner.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("artifacts: get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (c *s3Client) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.inner.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("artifacts: head %s/%s: %w", bucket, key, err)
}
