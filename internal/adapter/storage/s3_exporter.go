package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/plastinin/docconverter/internal/config"
	"github.com/plastinin/docconverter/internal/domain"
	"go.uber.org/zap"
)

// S3Exporter публикует результаты конвертации в S3/MinIO
type S3Exporter struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *zap.Logger
}

// NewS3Exporter создаёт новый экземпляр S3Exporter
func NewS3Exporter(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Exporter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	// Проверяем/создаём bucket
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Exporter{
		client: client,
		bucket: cfg.Bucket,
		expiry: cfg.URLExpiry,
		logger: logger,
	}, nil
}

// Export загружает файл и возвращает presigned URL.
// Каталог загружается целиком под общим префиксом, ссылкой служит s3://bucket/prefix/.
func (s *S3Exporter) Export(ctx context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat output: %w", err)
	}

	prefix := objectPrefix(time.Now())

	if info.IsDir() {
		return s.exportDir(ctx, localPath, prefix)
	}

	key := path.Join(prefix, filepath.Base(localPath))
	if err := s.upload(ctx, localPath, key); err != nil {
		return "", err
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	s.logger.Info("Output uploaded to S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
	)

	return url.String(), nil
}

func (s *S3Exporter) exportDir(ctx context.Context, dir, prefix string) (string, error) {
	base := path.Join(prefix, filepath.Base(dir))

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return s.upload(ctx, p, path.Join(base, filepath.ToSlash(rel)))
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload directory: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s/", s.bucket, base), nil
}

func (s *S3Exporter) upload(ctx context.Context, localPath, key string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: domain.ContentTypeFromFileName(localPath),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// objectPrefix уникальный префикс ключа: year/month/day/uuid
func objectPrefix(now time.Time) string {
	return path.Join(
		now.Format("2006"),
		now.Format("01"),
		now.Format("02"),
		uuid.New().String(),
	)
}
