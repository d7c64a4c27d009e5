package s3store

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options holds the S3 connection settings.
type Options struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // optional, for S3-compatible stores
	Prefix          string // optional key prefix for all objects
}

// Store is a put-only adapter over the S3 API.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New validates the options and builds an S3 client. Incomplete credentials
// are a hard error so a misconfigured archiver fails at invocation instead
// of silently dropping snapshots.
func New(opts Options) (*Store, error) {
	region := strings.TrimSpace(opts.Region)
	bucket := strings.TrimSpace(opts.Bucket)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if region == "" || bucket == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: region/bucket/access_key_id/secret_access_key are required")
	}

	cfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(opts.Prefix),
	}, nil
}

// Put uploads body under key and returns the object's ETag.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %q: %w", key, err)
	}
	return aws.ToString(out.ETag), nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
