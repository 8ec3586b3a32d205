package usecase_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/internal/usecase"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

type testLogger struct{}

func (testLogger) Debugf(string, ...any)        {}
func (testLogger) Infof(string, ...any)         {}
func (testLogger) Warnf(string, ...any)         {}
func (testLogger) Errorf(error, string, ...any) {}

type fakeDatasetInfra struct {
	ds  *domain.Dataset
	err error
}

func (f *fakeDatasetInfra) GetFiles(context.Context) (*domain.Dataset, error) {
	return f.ds, f.err
}

type fakeArtifactInfra struct {
	uploadedPath string
	err          error
}

func (f *fakeArtifactInfra) Upload(_ context.Context, localPath string) (*domain.StatusEnvelope, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.uploadedPath = localPath
	return domain.NewSuccess("File uploaded successfully to test-bucket/" + localPath), nil
}

type fakeInference struct {
	invoke func(batch domain.Batch) (*usecase.NeighborRes, error)
}

func (f *fakeInference) Invoke(_ context.Context, batch domain.Batch) (*usecase.NeighborRes, error) {
	return f.invoke(batch)
}

type recordingReporter struct {
	mu            sync.Mutex
	batchFailures []string
	runStatuses   []string
}

func (r *recordingReporter) ReportBatchFailure(_ context.Context, _ string, batchKey string, _ *domain.StatusEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchFailures = append(r.batchFailures, batchKey)
}

func (r *recordingReporter) ReportRunStatus(_ context.Context, _ string, env *domain.StatusEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runStatuses = append(r.runStatuses, env.EventMessage)
}

// threeGroupDataset — по 2 строки на каждую из трёх групп (pt, mp): три батча.
func threeGroupDataset() *domain.Dataset {
	ds := domain.NewDataset()
	ds.Columns = []string{domain.ColItemID, domain.ColMarketplaceID, domain.ColImgID, domain.ColProductType}
	for g, key := range []struct{ pt, mp string }{
		{"FLAT_SHEET", "000000"},
		{"FLAT_SHEET", "111111"},
		{"PILLOW", "000000"},
	} {
		for i := 0; i < 2; i++ {
			ds.Rows = append(ds.Rows, domain.Row{
				ItemID:        fmt.Sprintf("g%d-i%d", g, i),
				MarketplaceID: key.mp,
				ImgID:         fmt.Sprintf("g%d-img%d", g, i),
				ProductType:   key.pt,
			})
		}
	}
	return ds
}

func singleNeighborPerRow(batch domain.Batch) (*usecase.NeighborRes, error) {
	ids := make([][]string, 0, batch.Len())
	dists := make([][]float64, 0, batch.Len())
	for _, row := range batch.Rows {
		ids = append(ids, []string{"neighbor-of-" + row.ItemID})
		dists = append(dists, []float64{0.5})
	}
	return usecase.NewNeighborRes(ids, dists), nil
}

func newTestUC(t *testing.T, ds *domain.Dataset, inference usecase.InferenceInfra, reporter usecase.StatusReporter) (*usecase.PipelineUC, *fakeArtifactInfra) {
	t.Helper()

	artifact := &fakeArtifactInfra{}
	uc := usecase.NewPipelineUC(
		&fakeDatasetInfra{ds: ds},
		artifact,
		inference,
		reporter,
		&cfg.PipelineCfg{
			BatchSize:     32,
			MaxConcurrent: 4,
			OutputDir:     t.TempDir(),
			ShapeMode:     cfg.ShapeModeOneToOne,
		},
		testLogger{},
	)
	return uc, artifact
}

func TestExecute_BatchFailureIsIsolated(t *testing.T) {
	// Второй батч падает на аутентификации; первый и третий успешны.
	inference := &fakeInference{invoke: func(batch domain.Batch) (*usecase.NeighborRes, error) {
		if batch.MarketplaceID() == "111111" {
			return nil, e.ErrNoCredentials
		}
		return singleNeighborPerRow(batch)
	}}
	reporter := &recordingReporter{}

	uc, artifact := newTestUC(t, threeGroupDataset(), inference, reporter)

	env, err := uc.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, env.IsSuccess())

	records := readArtifact(t, artifact.uploadedPath)
	header, rows := records[0], records[1:]

	// 2 успешных батча × 2 строки × 1 сосед + 2 ошибочные строки.
	require.Len(t, rows, 6)

	col := indexOf(t, header)
	assert.Equal(t, "neighbor-of-g0-i0", rows[0][col[domain.ColNeighborItemIDs]])
	assert.Equal(t, "neighbor-of-g0-i1", rows[1][col[domain.ColNeighborItemIDs]])

	// Строки упавшего батча сохраняют исходные колонки и несут причину сбоя.
	assert.Equal(t, "g1-i0", rows[2][col[domain.ColItemID]])
	assert.Equal(t, e.ErrNoCredentials.Error(), rows[2][col[domain.ColErrorStatus]])
	assert.Equal(t, e.ErrNoCredentials.Error(), rows[3][col[domain.ColErrorStatus]])
	assert.Empty(t, rows[2][col[domain.ColNeighborItemIDs]])

	assert.Equal(t, "neighbor-of-g2-i0", rows[4][col[domain.ColNeighborItemIDs]])
	assert.Equal(t, "neighbor-of-g2-i1", rows[5][col[domain.ColNeighborItemIDs]])

	// О сбое сообщено ровно один раз, финальный статус — SUCCESS.
	assert.Equal(t, []string{"FLAT_SHEET/111111"}, reporter.batchFailures)
	assert.Equal(t, []string{domain.EventSuccess}, reporter.runStatuses)
}

func TestExecute_DatasetFailureIsFatal(t *testing.T) {
	uc := usecase.NewPipelineUC(
		&fakeDatasetInfra{err: e.Wrap("Storage.GetFiles", e.ErrNoInputFiles)},
		&fakeArtifactInfra{},
		&fakeInference{invoke: singleNeighborPerRow},
		usecase.NopStatusReporter{},
		&cfg.PipelineCfg{BatchSize: 32, MaxConcurrent: 1, OutputDir: t.TempDir(), ShapeMode: cfg.ShapeModeOneToOne},
		testLogger{},
	)

	env, err := uc.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrNoInputFiles)
	require.NotNil(t, env)
	assert.Equal(t, domain.EventFailure, env.EventMessage)
	assert.Contains(t, env.Reason, "no input files")
}

func TestExecute_UploadFailureIsFatal(t *testing.T) {
	artifact := &fakeArtifactInfra{err: fmt.Errorf("bucket unavailable")}
	uc := usecase.NewPipelineUC(
		&fakeDatasetInfra{ds: threeGroupDataset()},
		artifact,
		&fakeInference{invoke: singleNeighborPerRow},
		usecase.NopStatusReporter{},
		&cfg.PipelineCfg{BatchSize: 32, MaxConcurrent: 1, OutputDir: t.TempDir(), ShapeMode: cfg.ShapeModeOneToOne},
		testLogger{},
	)

	env, err := uc.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.EventFailure, env.EventMessage)
	assert.Contains(t, env.Reason, "bucket unavailable")
}

func TestExecute_ArtifactRoundTrip(t *testing.T) {
	uc, artifact := newTestUC(t, threeGroupDataset(), &fakeInference{invoke: singleNeighborPerRow}, usecase.NopStatusReporter{})

	_, err := uc.Execute(context.Background())
	require.NoError(t, err)

	records := readArtifact(t, artifact.uploadedPath)
	require.Len(t, records, 7) // заголовок + 6 строк

	assert.Equal(t, usecase.SuccessColumns, records[0])
	col := indexOf(t, records[0])
	for i, row := range records[1:] {
		itemID := fmt.Sprintf("g%d-i%d", i/2, i%2)
		assert.Equal(t, itemID, row[col[domain.ColItemID]])
		assert.Equal(t, "neighbor-of-"+itemID, row[col[domain.ColNeighborItemIDs]])
		assert.Equal(t, "0.5", row[col[domain.ColNeighborsDist]])
	}
}

func readArtifact(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	return records
}

func indexOf(t *testing.T, header []string) map[string]int {
	t.Helper()

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	return idx
}
