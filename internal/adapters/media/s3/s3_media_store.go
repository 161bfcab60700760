package s3

import (
	"context"
	"errors"
	"fmt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrForeignURL = errors.New("url does not belong to the media bucket")

// ObjectAPI: подмножество *s3.Client, нужное хранилищу.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type MediaStore struct {
	client  ObjectAPI
	bucket  string
	baseURL string
	prefix  string
	now     func() time.Time
}

// NewClient создаёт клиент для любого S3-совместимого бэкенда (AWS, MinIO).
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewMediaStore отдаёт объекты с baseURL; если он пуст, используется
// path-style адрес бакета.
func NewMediaStore(client ObjectAPI, cfg *config.Config) *MediaStore {
	base := strings.TrimRight(cfg.MediaPublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(cfg.S3BaseEndpoint, "/") + "/" + cfg.S3Bucket
	}
	return &MediaStore{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: base,
		prefix:  "users",
		now:     time.Now,
	}
}

func (m *MediaStore) objectKey(localPath string) string {
	d := m.now()
	ext := strings.ToLower(filepath.Ext(localPath))
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", m.prefix, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func (m *MediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", errors.New("empty local path")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := m.objectKey(localPath)
	input := &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		return "", err
	}
	return m.baseURL + "/" + key, nil
}

func (m *MediaStore) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, m.baseURL+"/")
	if !ok || key == "" {
		return ErrForeignURL
	}
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	return err
}
