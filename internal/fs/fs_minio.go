package fs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/packcore/internal/helpers"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type MinioOptions struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`

	// Prepended to every object key
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// Writes assets to an S3-compatible bucket. Object stores have no real
// directories, so creating one does nothing and removing one removes every
// object under its prefix.
type MinioFS struct {
	client *minio.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

func NewMinioFS(options MinioOptions, log zerolog.Logger) (*MinioFS, error) {
	if options.Bucket == "" {
		return nil, fmt.Errorf("no bucket name was given")
	}
	client, err := minio.New(options.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(options.AccessKey, options.SecretKey, ""),
		Secure: options.UseSSL,
		Region: options.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	log.Debug().
		Str("endpoint", options.Endpoint).
		Str("bucket", options.Bucket).
		Bool("ssl", options.UseSSL).
		Msg("S3 output initialized")

	return &MinioFS{
		client: client,
		bucket: options.Bucket,
		prefix: strings.Trim(options.Prefix, "/"),
		log:    log,
	}, nil
}

// The object key of a path. Keys never start with a slash.
func (fs *MinioFS) key(p string) string {
	return objectKey(fs.prefix, p)
}

func objectKey(prefix string, p string) string {
	return strings.TrimPrefix(path.Join("/", prefix, p), "/")
}

func (fs *MinioFS) CreateDirAll(ctx context.Context, dir string) error {
	return ctx.Err()
}

func (fs *MinioFS) Write(ctx context.Context, file string, data []byte) error {
	key := fs.key(file)
	options := minio.PutObjectOptions{ContentType: helpers.MimeTypeByExtension(path.Ext(file))}
	info, err := fs.client.PutObject(ctx, fs.bucket, key, bytes.NewReader(data), int64(len(data)), options)
	if err != nil {
		return fmt.Errorf("failed to upload %q: %w", key, err)
	}

	fs.log.Debug().
		Str("bucket", fs.bucket).
		Str("key", key).
		Int64("size", info.Size).
		Msg("Asset uploaded")
	return nil
}

func (fs *MinioFS) RemoveFile(ctx context.Context, file string) error {
	key := fs.key(file)
	if err := fs.client.RemoveObject(ctx, fs.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (fs *MinioFS) RemoveDirAll(ctx context.Context, dir string) error {
	prefix := fs.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	var firstErr error
	objects := fs.client.ListObjects(ctx, fs.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if err := fs.client.RemoveObject(ctx, fs.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to delete %q: %w", object.Key, err)
		}
	}

	fs.log.Debug().
		Str("bucket", fs.bucket).
		Str("prefix", prefix).
		Msg("Output prefix cleared")
	return firstErr
}
