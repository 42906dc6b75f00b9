package kajiya

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MirrorClient wraps the S3 client for the archive mirror bucket. Any
// S3-compatible store works (R2, MinIO, S3 itself).
type MirrorClient struct {
	Client *s3.Client
	Bucket string
}

// NewMirrorClient initializes a mirror client from the config document.
func NewMirrorClient(mc *MirrorConfig) (*MirrorClient, error) {
	if mc == nil || mc.Endpoint == "" || mc.Bucket == "" || mc.AccessKey == "" || mc.SecretKey == "" {
		return nil, fmt.Errorf("mirror credentials missing in configuration (mirror.endpoint, mirror.bucket, mirror.access_key, mirror.secret_key)")
	}

	region := mc.Region
	if region == "" {
		region = "auto"
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: mc.Endpoint}, nil
	})

	options := []func(*config.LoadOptions) error{
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(mc.AccessKey, mc.SecretKey, "")),
		config.WithRegion(region),
	}

	if Debug {
		options = append(options, config.WithClientLogMode(aws.LogSigning|aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &MirrorClient{Client: client, Bucket: mc.Bucket}, nil
}

// UploadLocalFile uploads a file from disk to the mirror bucket.
func (m *MirrorClient) UploadLocalFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".xz") {
		contentType = "application/x-xz"
	}

	_, err = m.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.Bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType),
	})
	return err
}

// uploadArchives pushes every toolchain archive in the archive directory
// to the configured mirror.
func uploadArchives(ctx context.Context, cfg *Config) error {
	client, err := NewMirrorClient(cfg.Mirror)
	if err != nil {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(cfg.ArchivePrefix, "*"+archiveExt))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no archives found in %s; run a pack flag first", cfg.ArchivePrefix)
	}

	for _, path := range matches {
		key := filepath.Base(path)
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", key)
		if err := client.UploadLocalFile(ctx, key, path); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}
	return nil
}
