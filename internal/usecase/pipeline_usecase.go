package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/DRSN-tech/inference-pipeline/pkg/logger"
	"github.com/google/uuid"
)

// PipelineUC реализует оркестрацию прогона: сбор датасета, партиционирование,
// инференс по батчам с изоляцией сбоев, агрегацию результата и его выгрузку.
type PipelineUC struct {
	datasetInfra  DatasetInfra
	artifactInfra ArtifactInfra
	inference     InferenceInfra
	reporter      StatusReporter
	cfg           *cfg.PipelineCfg
	logger        logger.Logger
	now           func() time.Time
}

func NewPipelineUC(
	datasetInfra DatasetInfra,
	artifactInfra ArtifactInfra,
	inference InferenceInfra,
	reporter StatusReporter,
	cfg *cfg.PipelineCfg,
	logger logger.Logger,
) *PipelineUC {
	return &PipelineUC{
		datasetInfra:  datasetInfra,
		artifactInfra: artifactInfra,
		inference:     inference,
		reporter:      reporter,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// batchResult — результат обработки одного батча: записи и порядок их колонок.
type batchResult struct {
	columns []string
	records []map[string]string
}

// Execute запускает полный прогон пайплайна.
// Сбой отдельного батча не прерывает прогон: его строки попадают в результат
// с колонкой ErrorStatus. Фатальны только сбой получения датасета и сбой выгрузки;
// в этих случаях возвращается конверт FAILURE вместе с ошибкой.
func (p *PipelineUC) Execute(ctx context.Context) (*domain.StatusEnvelope, error) {
	const op = "PipelineUC.Execute"

	runID := uuid.NewString()

	ds, err := p.datasetInfra.GetFiles(ctx)
	if err != nil {
		env := domain.FailureFromError(err)
		p.reporter.ReportRunStatus(ctx, runID, env)
		return env, e.Wrap(op, err)
	}

	batches := Partition(ds.Rows, p.cfg.BatchSize)
	p.logger.Infof("run %s: %d rows in %d batches", runID, ds.Len(), len(batches))

	combined := domain.NewOutputTable()
	for _, res := range p.processBatches(ctx, runID, ds.Columns, batches) {
		combined.AppendAll(res.columns, res.records)
	}

	path, err := p.writeArtifact(combined)
	if err != nil {
		env := domain.FailureFromError(err)
		p.reporter.ReportRunStatus(ctx, runID, env)
		return env, e.Wrap(op, err)
	}
	p.logger.Infof("run %s: %d combined rows written to %s", runID, combined.Len(), path)

	env, err := p.artifactInfra.Upload(ctx, path)
	if err != nil {
		env = domain.FailureFromError(err)
		p.reporter.ReportRunStatus(ctx, runID, env)
		return env, e.Wrap(op, err)
	}

	p.reporter.ReportRunStatus(ctx, runID, env)
	return env, nil
}

// processBatches обрабатывает батчи через ограниченный пул воркеров.
// Результат собирается в порядке эмиссии батчей независимо от порядка завершения.
func (p *PipelineUC) processBatches(ctx context.Context, runID string, columns []string, batches []domain.Batch) []batchResult {
	results := make([]batchResult, len(batches))
	sem := make(chan struct{}, p.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	for i, batch := range batches {
		i, batch := i, batch
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = p.processBatch(ctx, runID, columns, batch)
		}()
	}
	wg.Wait()

	return results
}

// processBatch прогоняет один батч через цепочку инференса и решейпер.
// Любая ошибка поглощается: строки батча возвращаются с причиной сбоя.
func (p *PipelineUC) processBatch(ctx context.Context, runID string, columns []string, batch domain.Batch) batchResult {
	res, err := p.inference.Invoke(ctx, batch)
	if err == nil {
		records, shapeErr := Shape(batch, res, p.cfg.ShapeMode)
		if shapeErr == nil {
			return batchResult{columns: SuccessColumns, records: records}
		}
		err = shapeErr
	}

	p.logger.Warnf("batch %s (%d rows) failed: %v", batch.Key(), batch.Len(), err)
	p.reporter.ReportBatchFailure(ctx, runID, batch.Key(), domain.FailureFromError(err))

	return p.errorRows(columns, batch, err)
}

// errorRows помечает исходные строки батча причиной сбоя.
func (p *PipelineUC) errorRows(columns []string, batch domain.Batch, cause error) batchResult {
	cols := append(append([]string(nil), columns...), domain.ColErrorStatus)

	records := make([]map[string]string, 0, batch.Len())
	for _, row := range batch.Rows {
		record := row.Record(columns)
		record[domain.ColErrorStatus] = cause.Error()
		records = append(records, record)
	}

	return batchResult{columns: cols, records: records}
}

// writeArtifact сохраняет объединённый результат в датированный локальный файл.
func (p *PipelineUC) writeArtifact(table *domain.OutputTable) (string, error) {
	const op = "PipelineUC.writeArtifact"

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", e.Wrap(op, err)
	}

	name := fmt.Sprintf("output-%s.csv", p.now().Format("02-01-2006"))
	path := filepath.Join(p.cfg.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	defer f.Close()

	if err := table.WriteCSV(f); err != nil {
		return "", e.Wrap(op, err)
	}

	return path, nil
}
