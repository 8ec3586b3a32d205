package minio_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	minioInfra "github.com/DRSN-tech/inference-pipeline/internal/infrastructure/minio"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

type testLogger struct{}

func (testLogger) Debugf(string, ...any)        {}
func (testLogger) Infof(string, ...any)         {}
func (testLogger) Warnf(string, ...any)         {}
func (testLogger) Errorf(error, string, ...any) {}

// fakeRepo раздаёт заранее заданное содержимое объектов и записывает копии/выгрузки.
type fakeRepo struct {
	objects   map[string]string // key -> содержимое CSV
	copies    []string          // "srcKey -> dstBucket/dstKey"
	uploads   []string          // "bucket/key <- localPath"
	listErr   error
	copyErr   error
	uploadErr error
}

func (f *fakeRepo) ListKeys(_ context.Context, _, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for key := range f.objects {
		keys = append(keys, key)
	}
	// Стабильный порядок для проверок.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys, nil
}

func (f *fakeRepo) Download(_ context.Context, _, key, localPath string) error {
	content, ok := f.objects[key]
	if !ok {
		return fmt.Errorf("object not found: %s", key)
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (f *fakeRepo) Copy(_ context.Context, _, srcKey, dstBucket, dstKey string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	f.copies = append(f.copies, fmt.Sprintf("%s -> %s/%s", srcKey, dstBucket, dstKey))
	return nil
}

func (f *fakeRepo) Upload(_ context.Context, bucket, key, localPath string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, fmt.Sprintf("%s/%s <- %s", bucket, key, localPath))
	return key, nil
}

func newTestStorage(t *testing.T, repo *fakeRepo) *minioInfra.Storage {
	t.Helper()

	return minioInfra.NewStorage(repo, &cfg.MinIOCfg{
		IngestBucket:  "ml-v1",
		IngestPrefix:  "input/ingest/",
		BackupBucket:  "ml-backup",
		BackupPrefix:  "backup_input/",
		UploadBucket:  "ml-v1",
		UploadPrefix:  "output/",
		LocalInputDir: t.TempDir(),
	}, testLogger{})
}

func TestGetFiles_CombinesSheetsAndBacksUpEach(t *testing.T) {
	repo := &fakeRepo{objects: map[string]string{
		"input/ingest/a.csv":      "item_id,marketplace_id,img_id,product_type\ni1,000000,img1,FLAT_SHEET\n",
		"input/ingest/b.csv":      "item_id,marketplace_id,img_id,product_type\ni2,111111,img2,PILLOW\ni3,111111,img3,PILLOW\n",
		"input/ingest/readme.txt": "not a dataset",
	}}

	ds, err := newTestStorage(t, repo).GetFiles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, "i1", ds.Rows[0].ItemID)
	assert.Equal(t, "i3", ds.Rows[2].ItemID)

	// Каждый CSV-файл зарезервирован; readme.txt пропущен.
	assert.Equal(t, []string{
		"input/ingest/a.csv -> ml-backup/backup_input/a.csv",
		"input/ingest/b.csv -> ml-backup/backup_input/b.csv",
	}, repo.copies)
}

func TestGetFiles_NoCSVFiles(t *testing.T) {
	repo := &fakeRepo{objects: map[string]string{
		"input/ingest/readme.txt": "not a dataset",
	}}

	_, err := newTestStorage(t, repo).GetFiles(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrNoInputFiles)
	assert.Contains(t, err.Error(), "input/ingest/")
}

func TestUpload_ReturnsSuccessEnvelope(t *testing.T) {
	repo := &fakeRepo{objects: map[string]string{}}
	storage := newTestStorage(t, repo)

	local := filepath.Join(t.TempDir(), "output-01-01-2026.csv")
	require.NoError(t, os.WriteFile(local, []byte("item_id\n"), 0o644))

	env, err := storage.Upload(context.Background(), local)
	require.NoError(t, err)
	assert.True(t, env.IsSuccess())
	assert.Contains(t, env.Reason, "ml-v1/output/output-01-01-2026.csv")
}

func TestUpload_Failure(t *testing.T) {
	repo := &fakeRepo{uploadErr: fmt.Errorf("connection refused")}

	_, err := newTestStorage(t, repo).Upload(context.Background(), "/tmp/missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
