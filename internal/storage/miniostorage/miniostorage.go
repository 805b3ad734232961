// Package miniostorage binds the media-store contract to minio
package miniostorage

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/UnendingLoop/ImageHosting/internal/model"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
)

type MinioImageStorage struct {
	bucket    string
	publicURL string
	client    *minio.Client
}

func NewMinioClient(cfg *config.Config) (*MinioImageStorage, error) {
	bucket := cfg.GetString("BUCKET_NAME")

	if bucket == "" {
		bucket = "images"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	user := cfg.GetString("MINIO_USER")
	pass := cfg.GetString("MINIO_PASS")
	addr := cfg.GetString("MINIO_CONTAINER_NAME")

	// внешний адрес, по которому картинки доступны браузеру
	publicURL := cfg.GetString("MINIO_PUBLIC_URL")
	if publicURL == "" {
		publicURL = "http://localhost:9000"
	}
	publicURL = strings.TrimRight(publicURL, "/")

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(addr+":9000", &minio.Options{
		Creds:  credentials.NewStaticV4(user, pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(context.Background(), strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioImageStorage{bucket: bucket, publicURL: publicURL, client: strg}, nil
}

// Upload - кладет объект и выдает его asset_id(он же ключ) вместе с публичной ссылкой.
// Ключ генерируем сами: каждая загрузка - новый объект, перезаписи не бывает.
func (s *MinioImageStorage) Upload(ctx context.Context, folder, ext string, size int64, contentType string, r io.Reader) (model.Asset, error) {
	if r == nil {
		return model.Asset{}, errors.New("nil reader passed to storage.Upload")
	}

	key := uuid.New().String() + ext
	if folder != "" {
		key = folder + "/" + key
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return model.Asset{}, err
	}

	return model.Asset{
		ID:  key,
		URL: s.publicURL + "/" + s.bucket + "/" + key,
	}, nil
}

// Destroy - удаляет объект по asset_id; отсутствующий ключ минио считает успехом,
// поэтому повторное удаление безопасно
func (s *MinioImageStorage) Destroy(ctx context.Context, assetID string) error {
	return s.client.RemoveObject(ctx, s.bucket, assetID, minio.RemoveObjectOptions{})
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
