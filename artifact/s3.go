package artifact

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// S3Config selects the endpoint and credentials for s3:// URIs. Empty
// fields fall back to the AWS SDK defaults (environment, shared config).
type S3Config struct {
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"accessKey" yaml:"accessKey"`
	SecretKey string `mapstructure:"secretKey" yaml:"secretKey"`
}

type s3Store struct {
	client *awss3.S3
	bucket string
	prefix string
}

func (s *s3Store) uri() string { return "s3://" + s.bucket + "/" + s.prefix }

func (s *s3Store) object(key string) string { return joinKey(s.prefix, key) }

func (s *s3Store) put(ctx context.Context, key string, f *os.File) error {
	_, err := s.client.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.object(key)),
		Body:   f,
	})
	return err
}

func (s *s3Store) get(ctx context.Context, key string, w io.Writer) error {
	resp, err := s.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.object(key)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == awss3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return notFound(s.object(key))
		}
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (s *s3Store) list(ctx context.Context, prefix string) ([]string, error) {
	full := s.object(prefix)
	if full != "" {
		full += "/"
	}

	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	}, func(page *awss3.ListObjectsV2Output, _ bool) bool {
		for _, o := range page.Contents {
			keys = append(keys, relativeKey(s.prefix, aws.StringValue(o.Key)))
		}
		return true
	})
	return keys, err
}

// NewS3 returns a Repository for an s3://bucket/prefix URI. A custom
// endpoint (MinIO, MLFLOW_S3_ENDPOINT_URL) switches to path-style
// addressing.
func NewS3(artifactURI string, cfg S3Config) (Repository, error) {
	bucket, prefix, err := splitBucketURI(artifactURI, "s3")
	if err != nil {
		return nil, err
	}

	awsCfg := aws.NewConfig()
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "new aws session failed")
	}
	return newRepository(&s3Store{
		client: awss3.New(sess),
		bucket: bucket,
		prefix: prefix,
	}, nil), nil
}
