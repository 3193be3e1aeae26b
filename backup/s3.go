// Package backup uploads repository exports to an S3-compatible
// object store, for the "backup --output" CLI command's optional
// off-box target.
package backup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"newsarchive/kinderr"
)

// Target describes an S3-compatible destination for a backup upload.
// Endpoint is optional; when set, it points at a non-AWS S3-compatible
// service (MinIO, a self-hosted gateway) the way the teacher's storage
// package supports Hetzner/MinIO endpoints alongside AWS proper.
type Target struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Uploader uploads backup archives to an S3-compatible bucket.
type Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewUploader configures an S3 client and manager.Uploader for target.
func NewUploader(ctx context.Context, target Target) (*Uploader, error) {
	region := target.Region
	if region == "" {
		region = "us-east-1"
	}

	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(target.AccessKey, target.SecretKey, "")),
	}
	if target.Endpoint != "" {
		optFns = append(optFns, config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: target.Endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Internal, err, "backup: load s3 configuration")
	}

	client := s3.NewFromConfig(cfg)
	return &Uploader{client: client, uploader: manager.NewUploader(client), bucket: target.Bucket}, nil
}

// Upload sends filePath's contents to objectKey in the configured
// bucket, attaching an MD5 checksum as object metadata so a later
// restore can verify integrity.
func (u *Uploader) Upload(ctx context.Context, filePath, objectKey string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "backup: open archive")
	}
	defer file.Close()

	sum, err := fileMD5(filePath)
	if err != nil {
		return kinderr.Wrap(kinderr.Internal, err, "backup: checksum archive")
	}

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(u.bucket),
		Key:      aws.String(objectKey),
		Body:     file,
		Metadata: map[string]string{"md5": sum},
	})
	if err != nil {
		return kinderr.Wrap(kinderr.TransientUpstream, err, fmt.Sprintf("backup: upload %s", objectKey))
	}
	return nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
