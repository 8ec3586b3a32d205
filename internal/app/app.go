package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	kafkaInfra "github.com/DRSN-tech/inference-pipeline/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/inference-pipeline/internal/infrastructure/minio"
	"github.com/DRSN-tech/inference-pipeline/internal/infrastructure/sagemaker"
	s3Repo "github.com/DRSN-tech/inference-pipeline/internal/repository/minio"
	"github.com/DRSN-tech/inference-pipeline/internal/usecase"
	"github.com/DRSN-tech/inference-pipeline/pkg/clients"
	"github.com/DRSN-tech/inference-pipeline/pkg/closer"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/DRSN-tech/inference-pipeline/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jimlawless/whereami"
)

// App собирает зависимости пайплайна и владеет их жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	uc     *usecase.PipelineUC
	closer *closer.Closer
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	cl := closer.NewCloser(0)

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer bucketCancel()
	for _, bucket := range []string{cfg.Minio.BackupBucket, cfg.Minio.UploadBucket} {
		if err := clients.EnsureBucket(bucketCtx, minioClient, bucket); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	objectRepo := s3Repo.NewObjectRepo(minioClient)
	storage := minioInfra.NewStorage(objectRepo, cfg.Minio, log)

	stsCtx, stsCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stsCancel()
	stsClient, err := clients.NewSTSClient(stsCtx, cfg.Aws.Region)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	runtimeFactory := func(creds aws.Credentials, region string) sagemaker.RuntimeAPI {
		return clients.NewSageMakerRuntime(creds, region)
	}

	registry := domain.NewMarketplaceRegistry(cfg.Pipeline.Marketplaces)
	invoker := sagemaker.NewInvoker(stsClient, runtimeFactory, registry, cfg.Aws, cfg.Pipeline.BatchSize, log)

	var reporter usecase.StatusReporter = usecase.NopStatusReporter{}
	if cfg.Kafka != nil {
		kafkaReporter := kafkaInfra.NewStatusReporter(log, cfg.Kafka)
		if err := kafkaReporter.EnsureTopic(10 * time.Second); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		cl.Add(func(ctx context.Context) error {
			return kafkaReporter.Close()
		})
		reporter = kafkaReporter
	}

	uc := usecase.NewPipelineUC(storage, storage, invoker, reporter, cfg.Pipeline, log)

	return &App{
		cfg:    cfg,
		logger: log,
		uc:     uc,
		closer: cl,
	}, nil
}

// Run выполняет один прогон пайплайна и печатает итоговый конверт статуса в stdout.
// Возвращает ошибку только при фатальном сбое прогона: поглощённые сбои
// отдельных батчей на код завершения не влияют.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, runErr := a.uc.Execute(ctx)
	if runErr != nil {
		a.logger.Errorf(runErr, "pipeline run failed")
	}

	if env != nil {
		out, err := json.Marshal(env)
		if err != nil {
			a.logger.Errorf(err, "failed to marshal status envelope")
		} else {
			fmt.Fprintln(os.Stdout, string(out))
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.closer.Close(closeCtx); err != nil {
		a.logger.Warnf("shutdown error: %v", err)
	}

	return runErr
}
