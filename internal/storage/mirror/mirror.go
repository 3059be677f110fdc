// Пакет mirror — копирование сохранённых файлов во внешнее
// S3-совместимое хранилище (MinIO). Локальный файл остаётся
// источником истины, зеркало заполняется после commit.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror — приёмник копий сохранённых файлов.
type Mirror interface {
	// Put загружает объект key размером size из reader.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// Options — параметры подключения к S3-совместимому хранилищу.
type Options struct {
	// Endpoint — host:port без схемы
	Endpoint string
	// AccessKey, SecretKey — статические учётные данные
	AccessKey string
	SecretKey string
	// Bucket — бакет для копий
	Bucket string
	// UseSSL — TLS до endpoint
	UseSSL bool
	// Timeout — таймаут одной операции
	Timeout time.Duration
}

// Validate проверяет обязательные поля.
func (o Options) Validate() error {
	switch {
	case o.Endpoint == "":
		return fmt.Errorf("mirror: endpoint не задан")
	case strings.Contains(o.Endpoint, "://"):
		return fmt.Errorf("mirror: endpoint %q должен быть host:port без схемы", o.Endpoint)
	case o.AccessKey == "" || o.SecretKey == "":
		return fmt.Errorf("mirror: учётные данные не заданы")
	case o.Bucket == "":
		return fmt.Errorf("mirror: бакет не задан")
	case o.Timeout <= 0:
		return fmt.Errorf("mirror: таймаут должен быть положительным")
	}
	return nil
}

// URL возвращает базовый URL endpoint со схемой (для health-проверок).
func (o Options) URL() string {
	scheme := "http"
	if o.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + o.Endpoint
}

// MinioMirror — Mirror поверх minio-go.
type MinioMirror struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMinio создаёт клиента MinIO и создаёт бакет, если его нет.
func NewMinio(ctx context.Context, opts Options, logger *slog.Logger) (*MinioMirror, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: создание клиента MinIO: %w", err)
	}

	m := &MinioMirror{
		client:  client,
		bucket:  opts.Bucket,
		timeout: opts.Timeout,
		logger:  logger.With(slog.String("component", "mirror")),
	}

	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// ensureBucket проверяет наличие бакета и создаёт его при отсутствии.
func (m *MinioMirror) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("mirror: проверка бакета %q: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("mirror: создание бакета %q: %w", m.bucket, err)
	}
	m.logger.Info("Бакет создан", slog.String("bucket", m.bucket))
	return nil
}

// Put загружает объект с таймаутом из Options.
func (m *MinioMirror) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("mirror: put object %q: %w", key, err)
	}
	return nil
}

// ObjectKey формирует ключ объекта из относительного пути файла.
// uploads/profile/a.png → uploads/profile/a.png
func ObjectKey(relPath string) string {
	return strings.TrimPrefix(path.Clean("/"+relPath), "/")
}
