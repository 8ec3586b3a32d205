package sagemaker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/internal/usecase"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/DRSN-tech/inference-pipeline/pkg/jitter"
	"github.com/DRSN-tech/inference-pipeline/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
)

// RuntimeAPI — используемое подмножество клиента SageMaker Runtime.
type RuntimeAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// AssumeRoleAPI — используемое подмножество STS-клиента.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// RuntimeFactory строит клиент SageMaker Runtime из временных учётных данных.
type RuntimeFactory func(creds aws.Credentials, region string) RuntimeAPI

// Invoker реализует двухстадийную цепочку инференса для одного батча:
// аутентификация через AssumeRole, получение эмбеддингов, поиск соседей.
type Invoker struct {
	sts         AssumeRoleAPI
	newRuntime  RuntimeFactory
	registry    *domain.MarketplaceRegistry
	cfg         *cfg.AWSCfg
	batchSize   int
	logger      logger.Logger
	backoffBase time.Duration
	backoffMax  time.Duration
}

func NewInvoker(
	stsClient AssumeRoleAPI,
	newRuntime RuntimeFactory,
	registry *domain.MarketplaceRegistry,
	awsCfg *cfg.AWSCfg,
	batchSize int,
	logger logger.Logger,
) *Invoker {
	return &Invoker{
		sts:         stsClient,
		newRuntime:  newRuntime,
		registry:    registry,
		cfg:         awsCfg,
		batchSize:   batchSize,
		logger:      logger,
		backoffBase: 1 * time.Second,
		backoffMax:  30 * time.Second,
	}
}

// Invoke прогоняет батч через обе стадии и возвращает списки соседей с расстояниями.
// Частичный результат не возвращается: любая ошибка относится ко всему батчу.
func (inv *Invoker) Invoke(ctx context.Context, batch domain.Batch) (*usecase.NeighborRes, error) {
	const op = "Invoker.Invoke"

	if batch.Len() == 0 {
		return nil, e.Wrap(op, e.ErrEmptyBatch)
	}
	// Страховка на границе компонента: партиционер обязан соблюдать лимит сам.
	if batch.Len() > inv.batchSize {
		return nil, e.Wrap(op, fmt.Errorf("%w: the batch_size should be %d", e.ErrBatchSizeExceeded, inv.batchSize))
	}

	region, err := inv.registry.RegionFor(batch.MarketplaceID())
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	creds, err := inv.assumeRole(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	runtime := inv.newRuntime(creds, inv.cfg.Region)

	start := time.Now()

	embeddings, err := inv.fetchEmbeddings(ctx, runtime, batch)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	inv.logger.Debugf("batch %s: embeddings scored in %s", batch.Key(), time.Since(start))

	ids, distances, err := inv.fetchNeighbors(ctx, runtime, embeddings, batch.ProductType(), region)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	inv.logger.Debugf("batch %s: neighbors found in %s", batch.Key(), time.Since(start))

	return usecase.NewNeighborRes(ids, distances), nil
}

// assumeRole получает временные учётные данные для вызова эндпоинтов.
// Недоступность учётных данных — отдельный именованный вид сбоя.
func (inv *Invoker) assumeRole(ctx context.Context) (aws.Credentials, error) {
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(inv.cfg.RoleARN),
		RoleSessionName: aws.String("inference-pipeline-" + uuid.NewString()),
	}
	if inv.cfg.ExternalAccountID != "" {
		input.ExternalId = aws.String(inv.cfg.ExternalAccountID)
	}

	out, err := inv.sts.AssumeRole(ctx, input)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("%w: %v", e.ErrNoCredentials, err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, e.ErrNoCredentials
	}

	return aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}, nil
}

// fetchEmbeddings — первая стадия: текстовое CSV-тело, JSON-ответ с полем embeddings.
func (inv *Invoker) fetchEmbeddings(ctx context.Context, runtime RuntimeAPI, batch domain.Batch) ([][]float64, error) {
	body, err := json.Marshal(stage1Prompt{
		PhysicalID: batch.ImgIDs(),
		PT:         batch.ProductType(),
	})
	if err != nil {
		return nil, err
	}

	raw, err := inv.invokeEndpoint(ctx, runtime, inv.cfg.EmbeddingEndpoint, "text/csv", body)
	if err != nil {
		return nil, err
	}

	return decodeEmbeddings(raw)
}

// fetchNeighbors — вторая стадия: JSON-тело с эмбеддингами, типом продукта и регионом.
func (inv *Invoker) fetchNeighbors(ctx context.Context, runtime RuntimeAPI, embeddings [][]float64, productType, region string) ([][]string, [][]float64, error) {
	body, err := json.Marshal(stage2Prompt{
		Embedding:   embeddings,
		PT:          productType,
		Marketplace: region,
	})
	if err != nil {
		return nil, nil, err
	}

	raw, err := inv.invokeEndpoint(ctx, runtime, inv.cfg.NeighborEndpoint, "application/json", body)
	if err != nil {
		return nil, nil, err
	}

	return decodeNeighbors(raw)
}

// invokeEndpoint выполняет один вызов эндпоинта с опциональными таймаутом и повторами.
// По умолчанию MaxAttempts равен 1: повторов нет.
func (inv *Invoker) invokeEndpoint(ctx context.Context, runtime RuntimeAPI, endpoint, contentType string, body []byte) ([]byte, error) {
	attempts := inv.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		raw, err := inv.call(ctx, runtime, endpoint, contentType, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(inv.backoffBase, inv.backoffMax, attempt, jitter.DefaultJitter)
		inv.logger.Warnf("endpoint %s failed, retrying in %v (attempt %d): %v", endpoint, sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (inv *Invoker) call(ctx context.Context, runtime RuntimeAPI, endpoint, contentType string, body []byte) ([]byte, error) {
	if inv.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.cfg.InvokeTimeout)
		defer cancel()
	}

	out, err := runtime.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpoint),
		Body:         body,
		ContentType:  aws.String(contentType),
		Accept:       aws.String("application/json"),
	})
	if err != nil {
		return nil, err
	}

	return out.Body, nil
}
