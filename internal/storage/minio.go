package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// compile-time check that *MinIO implements Store
var _ Store = (*MinIO)(nil)

// MinIOConfig describes an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is prefixed to keys to build image URLs, e.g.
	// "https://cdn.example.com/birds". Defaults to {scheme}://{endpoint}/{bucket}.
	//
	// A bucket created by NewMinIO gets an anonymous read policy. An existing
	// bucket keeps whatever policy its operator gave it.
	PublicURL string
}

// bucketAdmin is the part of *minio.Client used to prepare the bucket.
type bucketAdmin interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
}

// MinIO stores objects in a bucket on a MinIO (or any S3-compatible) server.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIO connects and makes sure the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: creating minio client: %w", err)
	}

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinIO{client: client, bucket: cfg.Bucket, publicURL: strings.TrimRight(public, "/")}, nil
}

// Put uploads the object with its content type.
func (m *MinIO) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: uploading %s: %w", key, err)
	}
	return m.publicURL + "/" + key, nil
}

// Delete removes the object. S3 semantics already treat a missing key as success.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

// ensureBucket creates the bucket when it is missing and opens it for
// anonymous reads, so the URLs returned by Put load in a browser.
func ensureBucket(ctx context.Context, admin bucketAdmin, bucket string) error {
	exists, err := admin.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("storage: checking bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := admin.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: creating bucket %s: %w", bucket, err)
	}
	policy, err := publicReadPolicy(bucket)
	if err != nil {
		return err
	}
	if err := admin.SetBucketPolicy(ctx, bucket, policy); err != nil {
		return fmt.Errorf("storage: setting policy on bucket %s: %w", bucket, err)
	}
	return nil
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy allows anyone to GET objects in bucket. Listing and
// writing stay private.
func publicReadPolicy(bucket string) (string, error) {
	data, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("storage: encoding bucket policy: %w", err)
	}
	return string(data), nil
}
