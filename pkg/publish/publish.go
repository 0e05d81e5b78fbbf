// Package publish uploads finished reports to an S3 bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultRegion is used when neither the options nor the AWS profile name
// a region.
const DefaultRegion = "us-east-1"

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Config selects the destination bucket and credentials.
type Config struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix  string
	Region  string
	Profile string
}

// PutObjectAPI is the subset of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts report files into a bucket.
type Uploader struct {
	client PutObjectAPI
	fs     afero.Fs
	cfg    Config
	now    func() time.Time
}

// New creates an uploader on top of client, reading files from fs.
func New(client PutObjectAPI, fs afero.Fs, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("publish bucket is required")
	}
	return &Uploader{client: client, fs: fs, cfg: cfg, now: time.Now}, nil
}

// NewFromConfig loads AWS credentials for cfg.Profile and creates an
// uploader backed by a real S3 client.
func NewFromConfig(ctx context.Context, fs afero.Fs, cfg Config) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithDefaultRegion(DefaultRegion),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return New(s3.NewFromConfig(awsCfg), fs, cfg)
}

// Key returns the object key for a file: prefix, upload date, base name.
func (u *Uploader) Key(name string) string {
	return path.Join(u.cfg.Prefix, u.now().Format("2006-01-02"), filepath.Base(name))
}

// Publish uploads the file at name and returns its s3:// location.
func (u *Uploader) Publish(ctx context.Context, name string) (string, error) {
	f, err := u.fs.Open(name)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	contentType := "application/octet-stream"
	if filepath.Ext(name) == ".docx" {
		contentType = docxContentType
	}

	key := u.Key(name)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", name, u.cfg.Bucket, err)
	}

	location := fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key)
	zerolog.Ctx(ctx).Info().Str("location", location).Msg("report published")
	return location, nil
}
