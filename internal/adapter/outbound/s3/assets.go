package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/henjicc/henji-server/internal/adapter/outbound/assetfs"
	"github.com/henjicc/henji-server/internal/domain/asset"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint        string        `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Region          string        `json:"region" yaml:"region" mapstructure:"region"`
	AccessKeyID     string        `json:"access_key_id" yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"-" yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Bucket          string        `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Prefix          string        `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	URLExpiry       time.Duration `json:"url_expiry" yaml:"url_expiry" mapstructure:"url_expiry"`
}

// AssetStorageAdapter implements AssetStoragePort on a bucket. Keys are content
// addressed like the local store, and display URLs are presigned GETs.
type AssetStorageAdapter struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	expiry    time.Duration
}

// NewClient builds an S3 client from cfg.
func NewClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, errors.New("incomplete S3 configuration")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewAssetStorageAdapter creates a new asset storage adapter.
func NewAssetStorageAdapter(client *s3.Client, cfg *Config) *AssetStorageAdapter {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &AssetStorageAdapter{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		prefix:    prefix,
		expiry:    expiry,
	}
}

// objectKey maps a stored path to its object key. Paths are canonicalized first so that
// every spelling of a path addresses one object.
func (a *AssetStorageAdapter) objectKey(p string) (string, error) {
	key, ok := asset.CleanPath(p)
	if !ok {
		return "", fmt.Errorf("%w: %q", asset.ErrInvalidPath, p)
	}
	return a.prefix + key, nil
}

func (a *AssetStorageAdapter) Save(ctx context.Context, data []byte, ext string) (string, error) {
	key := assetfs.Key(data, ext)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.prefix + key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

func (a *AssetStorageAdapter) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := a.objectKey(path)
	if err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", outbound.ErrAssetNotFound, path)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (a *AssetStorageAdapter) Delete(ctx context.Context, path string) error {
	key, err := a.objectKey(path)
	if err != nil {
		return err
	}
	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (a *AssetStorageAdapter) DisplayURL(ctx context.Context, path string) (string, error) {
	key, err := a.objectKey(path)
	if err != nil {
		return "", err
	}
	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = a.expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

func (a *AssetStorageAdapter) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix),
	})

	var paths []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, strings.TrimPrefix(aws.ToString(obj.Key), a.prefix))
		}
	}
	return paths, nil
}

// Compile-time check
var _ outbound.AssetStoragePort = (*AssetStorageAdapter)(nil)
