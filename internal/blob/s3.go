package blob

import (
	"context"

	"forensicvault/internal/config"
	infraS3 "forensicvault/internal/infra/blob/s3"
)

// NewS3 constructs an S3-backed Store from the blob configuration section.
func NewS3(ctx context.Context, cfg config.S3) (Store, error) {
	return infraS3.New(ctx, infraS3.Config{
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		PathStyle:       cfg.PathStyle,
	})
}

// NewMockS3ForTests exposes the fake-bucket S3 store for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
