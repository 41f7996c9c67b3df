package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/model"
	"github.com/edvin/coordinator/internal/relation"
)

// Relation databag keys of the object-storage integration.
const (
	keyS3Endpoint   = "endpoint"
	keyS3Bucket     = "bucket"
	keyS3AccessKey  = "access-key"
	keyS3SecretKey  = "secret-key"
	keyS3Region     = "region"
	keyS3TLSCAChain = "tls-ca-chain"
)

// ObjectStorage reads object-storage credentials from the s3 endpoint.
type ObjectStorage struct {
	logger   zerolog.Logger
	store    relation.Store
	endpoint string
}

// NewObjectStorage creates the object-storage credential source.
func NewObjectStorage(logger zerolog.Logger, store relation.Store, endpoint string) *ObjectStorage {
	return &ObjectStorage{
		logger:   logger.With().Str("component", "s3-source").Logger(),
		store:    store,
		endpoint: endpoint,
	}
}

// Read returns the object-storage configuration in worker drop-in format.
// It fails with a NotFoundError unless endpoint, bucket, access key and
// secret key are all present in the relation data.
func (o *ObjectStorage) Read() (*model.ObjectStorageConfig, error) {
	rels := o.store.Relations(o.endpoint)
	if len(rels) == 0 {
		return nil, &NotFoundError{Reason: "s3 integration inactive"}
	}
	data := rels[0].RemoteAppData()

	rawEndpoint := data[keyS3Endpoint]
	if rawEndpoint == "" || data[keyS3Bucket] == "" || data[keyS3AccessKey] == "" || data[keyS3SecretKey] == "" {
		return nil, &NotFoundError{Reason: "s3 integration inactive"}
	}

	cfg := &model.ObjectStorageConfig{
		Endpoint:        stripScheme(rawEndpoint),
		Region:          data[keyS3Region],
		AccessKeyID:     data[keyS3AccessKey],
		SecretAccessKey: data[keyS3SecretKey],
		BucketName:      data[keyS3Bucket],
		Insecure:        !strings.HasPrefix(rawEndpoint, "https://"),
	}

	if raw := data[keyS3TLSCAChain]; raw != "" {
		var chain []string
		if err := json.Unmarshal([]byte(raw), &chain); err != nil {
			o.logger.Warn().Err(err).Msg("ignoring unparseable tls-ca-chain")
		} else {
			cfg.TLSCAChain = chain
		}
	}
	return cfg, nil
}

// Available reports whether a complete object-storage configuration exists.
func (o *ObjectStorage) Available() bool {
	_, err := o.Read()
	return err == nil
}

// Client builds an S3 client for the configured endpoint, with static
// credentials and path-style addressing.
func (o *ObjectStorage) Client(cfg *model.ObjectStorageConfig) *s3.Client {
	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return s3.New(s3.Options{
		BaseEndpoint: aws.String(scheme + "://" + cfg.Endpoint),
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,
	})
}

// ProbeBucket checks that the configured bucket is reachable. Best effort:
// callers log the outcome and carry on either way.
func (o *ObjectStorage) ProbeBucket(ctx context.Context) error {
	cfg, err := o.Read()
	if err != nil {
		return err
	}
	client := o.Client(cfg)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", cfg.BucketName, err)
	}
	return nil
}

// stripScheme removes a leading URL scheme from an endpoint, if there is
// one. Scheme-less endpoints pass through unchanged, so stripping is
// idempotent.
func stripScheme(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" {
		return endpoint
	}
	return strings.TrimPrefix(endpoint, u.Scheme+"://")
}
