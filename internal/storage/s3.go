package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store stores objects in Amazon S3 or an S3 compatible endpoint.
type S3Store struct {
	client *s3.Client
	prefix string
}

// NewS3Store loads credentials from the default AWS chain. A non-empty endpoint
// switches to path-style addressing for S3 compatible servers.
func NewS3Store(ctx context.Context, region, endpoint, prefix string) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, prefix: prefix}, nil
}

var _ ObjectStore = (*S3Store)(nil)

func (s *S3Store) Get(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName(s.prefix, bucket)),
		Key:    aws.String(p),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucketName(s.prefix, bucket), p)
		}
		return nil, fmt.Errorf("storage: get s3://%s/%s: %w", bucketName(s.prefix, bucket), p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read s3://%s/%s: %w", bucketName(s.prefix, bucket), p, err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucketName(s.prefix, bucket)),
		Key:         aws.String(p),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put s3://%s/%s: %w", bucketName(s.prefix, bucket), p, err)
	}
	return nil
}
