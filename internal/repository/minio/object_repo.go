package minio

import (
	"context"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ObjectRepo реализует низкоуровневые операции с объектным хранилищем поверх MinIO.
type ObjectRepo struct {
	mc *minio.Client
}

func NewObjectRepo(mc *minio.Client) *ObjectRepo {
	return &ObjectRepo{mc: mc}
}

// ListKeys возвращает ключи всех объектов бакета с заданным префиксом.
func (r *ObjectRepo) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range r.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), obj.Err)
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}

// Download скачивает объект в локальный файл.
func (r *ObjectRepo) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := r.mc.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Copy выполняет серверное копирование объекта между бакетами.
func (r *ObjectRepo) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := r.mc.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Upload загружает локальный файл в бакет и возвращает ключ объекта.
func (r *ObjectRepo) Upload(ctx context.Context, bucket, key, localPath string) (string, error) {
	info, err := r.mc.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}
