package usecase

import (
	"context"

	"github.com/DRSN-tech/inference-pipeline/internal/domain"
)

// DatasetInfra — внешний коллаборатор-источник: собирает все входные CSV-файлы
// в единый датасет и резервирует каждый исходный файл как побочный эффект.
type DatasetInfra interface {
	GetFiles(ctx context.Context) (*domain.Dataset, error)
}

// ArtifactInfra — внешний коллаборатор-приёмник итогового артефакта.
type ArtifactInfra interface {
	Upload(ctx context.Context, localPath string) (*domain.StatusEnvelope, error)
}

// InferenceInfra — цепочка инференса для одного однородного батча.
type InferenceInfra interface {
	Invoke(ctx context.Context, batch domain.Batch) (*NeighborRes, error)
}

// StatusReporter публикует события статуса прогона. Ошибки публикации
// не влияют на результат прогона.
type StatusReporter interface {
	ReportBatchFailure(ctx context.Context, runID, batchKey string, env *domain.StatusEnvelope)
	ReportRunStatus(ctx context.Context, runID string, env *domain.StatusEnvelope)
}

// NopStatusReporter — заглушка для случая, когда публикация событий не настроена.
type NopStatusReporter struct{}

func (NopStatusReporter) ReportBatchFailure(context.Context, string, string, *domain.StatusEnvelope) {
}

func (NopStatusReporter) ReportRunStatus(context.Context, string, *domain.StatusEnvelope) {}
