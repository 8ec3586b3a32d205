package minio

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/DRSN-tech/inference-pipeline/pkg/logger"
)

// ObjectRepository — низкоуровневые операции с объектным хранилищем,
// используемые коллаборатором датасета.
type ObjectRepository interface {
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	Download(ctx context.Context, bucket, key, localPath string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Upload(ctx context.Context, bucket, key, localPath string) (string, error)
}

// Storage реализует обоих внешних коллабораторов пайплайна:
// источник датасета (GetFiles) и приёмник итогового артефакта (Upload).
type Storage struct {
	repo   ObjectRepository
	cfg    *cfg.MinIOCfg
	logger logger.Logger
}

func NewStorage(repo ObjectRepository, cfg *cfg.MinIOCfg, logger logger.Logger) *Storage {
	return &Storage{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// GetFiles собирает все CSV-файлы входной папки в единый датасет.
// Каждый обработанный файл скачивается локально и резервируется серверным
// копированием в backup-бакет. Не-CSV объекты пропускаются.
func (s *Storage) GetFiles(ctx context.Context) (*domain.Dataset, error) {
	const op = "Storage.GetFiles"

	keys, err := s.repo.ListKeys(ctx, s.cfg.IngestBucket, s.cfg.IngestPrefix)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := os.MkdirAll(s.cfg.LocalInputDir, 0o755); err != nil {
		return nil, e.Wrap(op, err)
	}

	combined := domain.NewDataset()
	processed := 0
	for _, key := range keys {
		name := path.Base(key)
		if !strings.HasSuffix(name, ".csv") {
			continue
		}

		localPath := filepath.Join(s.cfg.LocalInputDir, name)
		if err := s.repo.Download(ctx, s.cfg.IngestBucket, key, localPath); err != nil {
			return nil, e.Wrap(op, err)
		}

		sheet, err := s.readSheet(localPath)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		combined.Merge(sheet)

		backupKey := s.cfg.BackupPrefix + name
		if err := s.repo.Copy(ctx, s.cfg.IngestBucket, key, s.cfg.BackupBucket, backupKey); err != nil {
			return nil, e.Wrap(op, err)
		}

		s.logger.Infof("ingested %s (%d rows), backed up as %s", key, sheet.Len(), backupKey)
		processed++
	}

	if processed == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: no files found in the folder: %s",
			e.ErrNoInputFiles, s.cfg.IngestPrefix))
	}

	return combined, nil
}

// Upload выгружает локальный артефакт в бакет результата и возвращает конверт статуса.
func (s *Storage) Upload(ctx context.Context, localPath string) (*domain.StatusEnvelope, error) {
	const op = "Storage.Upload"

	uploadKey := s.cfg.UploadPrefix + filepath.Base(localPath)
	key, err := s.repo.Upload(ctx, s.cfg.UploadBucket, uploadKey, localPath)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return domain.NewSuccess(fmt.Sprintf("File uploaded successfully to %s/%s", s.cfg.UploadBucket, key)), nil
}

func (s *Storage) readSheet(localPath string) (*domain.Dataset, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return domain.ReadDatasetCSV(f)
}
