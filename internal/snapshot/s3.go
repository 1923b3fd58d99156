package snapshot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// snapshotContentType marks uploads as newline-delimited JSON.
const snapshotContentType = "application/x-ndjson"

// S3Destination uploads snapshots to a fixed object in an S3 bucket. Each
// upload replaces the previous object, so the key always holds the latest
// export; enable bucket versioning to keep history.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination resolves AWS credentials from the environment. A non-empty
// endpoint switches the client to path-style addressing for S3-compatible
// stores such as MinIO.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(snapshotContentType),
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot to s3://%s/%s: %w", d.bucket, d.key, err)
	}
	return nil
}
