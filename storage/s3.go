package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openchallenges/harness/config"
)

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Store(options config.S3StorageOptions) (*s3Store, error) {
	secretKey, err := options.SecretAccessKey.GetValue()
	if err != nil {
		return nil, fmt.Errorf("cannot get secret access key: %w", err)
	}
	clientOptions := s3.Options{
		Region: options.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				options.AccessKeyID, secretKey, "",
			),
		),
		UsePathStyle: options.UsePathStyle,
	}
	if clientOptions.Region == "" {
		clientOptions.Region = "us-east-1"
	}
	if options.Endpoint != "" {
		clientOptions.EndpointResolver = s3.EndpointResolverFromURL(options.Endpoint)
	}
	return &s3Store{
		client: s3.New(clientOptions),
		bucket: options.Bucket,
		prefix: options.PathPrefix,
	}, nil
}

func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return nil, err
	}
	return object.Body, nil
}
