// Package storage publishes encrypted chunks to S3-compatible object
// storage. Keys are partitioned by resolution tier and relative path, and
// publishes are idempotent overwrites.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher is the object-storage boundary the watcher feeds encrypted
// chunks into.
type Publisher interface {
	Publish(ctx context.Context, localPath, rung, relPath string) error
}

type Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	KeyPrefix    string
}

type S3Publisher struct {
	cfg    Config
	client *s3.Client
}

func NewS3Publisher(ctx context.Context, cfg Config) (*S3Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.BaseEndpoint != ""
	})
	return &S3Publisher{cfg: cfg, client: client}, nil
}

// RemoteKey builds the object key for a chunk: {prefix}{tier}/{relPath},
// where the tier is the short resolution marker players request by.
func RemoteKey(prefix, rung, relPath string) string {
	tier := "10"
	if rung == "720p" {
		tier = "7"
	}
	return prefix + tier + "/" + filepath.ToSlash(relPath)
}

func (p *S3Publisher) Publish(ctx context.Context, localPath, rung, relPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open chunk %s: %w", localPath, err)
	}
	defer f.Close()

	key := RemoteKey(p.cfg.KeyPrefix, rung, relPath)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
