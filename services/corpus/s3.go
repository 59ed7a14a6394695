package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/upb/rag-pipeline/config"
	"github.com/upb/rag-pipeline/models"
)

// maxObjectSize caps how much of a corpus object is read.
const maxObjectSize = 64 << 20

// S3Client is the subset of the S3 API the loader needs. [s3.Client]
// satisfies it.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 loads a YAML or JSON corpus object from an S3-compatible bucket.
type S3 struct {
	client S3Client
	bucket string
	key    string
}

// NewS3 returns a loader reading bucket/key through client.
func NewS3(client S3Client, bucket, key string) *S3 {
	return &S3{client: client, bucket: bucket, key: key}
}

// NewS3Client builds an S3 client from corpus configuration. Static
// credentials are used when set; otherwise requests are anonymous. A custom
// endpoint switches to path-style addressing for MinIO and LocalStack.
func NewS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{Region: cfg.Region}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Source:          "environment",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	return s3.New(opts)
}

func (l *S3) Load(ctx context.Context) ([]models.Document, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("corpus object s3://%s/%s does not exist", l.bucket, l.key)
		}
		return nil, fmt.Errorf("get corpus object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read corpus object: %w", err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("corpus object exceeds %d bytes", maxObjectSize)
	}
	return Decode(data)
}

func (l *S3) Name() string { return "s3" }

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
