package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/DRSN-tech/inference-pipeline/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Minio    *MinIOCfg
	Aws      *AWSCfg
	Pipeline *PipelineCfg
	Kafka    *KafkaCfg
}

type MinIOCfg struct {
	Endpoint     string // Адрес конечной точки Minio
	RootUser     string // Имя пользователя для доступа к Minio
	RootPassword string // Пароль для доступа к Minio
	UseSSL       bool
	IngestBucket string // Бакет с входными CSV-файлами
	IngestPrefix string // Префикс входной папки
	BackupBucket string // Бакет для резервных копий обработанных файлов
	BackupPrefix string
	UploadBucket string // Бакет для выгрузки результата
	UploadPrefix string
	LocalInputDir string // Локальная папка для скачанных входных файлов
}

type AWSCfg struct {
	Region            string        // Регион SageMaker-эндпоинтов
	RoleARN           string        // IAM-роль для AssumeRole
	ExternalAccountID string        // Внешний идентификатор аккаунта для AssumeRole
	EmbeddingEndpoint string        // Эндпоинт первой стадии (эмбеддинги)
	NeighborEndpoint  string        // Эндпоинт второй стадии (поиск соседей)
	InvokeTimeout     time.Duration // Таймаут одного вызова эндпоинта; 0 — без таймаута
	MaxAttempts       int           // Попыток на вызов эндпоинта; 1 — без повторов
}

type PipelineCfg struct {
	BatchSize     int    // Максимальный размер батча
	MaxConcurrent int    // Число параллельно обрабатываемых батчей
	OutputDir     string // Локальная папка для итогового артефакта
	ShapeMode     string // Режим Result Shaper: one-to-one или cross-product
	Marketplaces  map[string]string // Единая таблица marketplace_id -> код региона
}

type KafkaCfg struct {
	Brokers           []string
	Topic             string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// Режимы Result Shaper.
const (
	ShapeModeOneToOne     = "one-to-one"
	ShapeModeCrossProduct = "cross-product"
)

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	aws, err := loadAWSCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	pipeline, err := loadPipelineCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Minio:    minio,
		Aws:      aws,
		Pipeline: pipeline,
		Kafka:    kafka,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL       = false
		defaultEndpoint     = "minio:9000"
		defaultIngestPrefix = "input/ingest/"
		defaultBackupPrefix = "backup_input/"
		defaultUploadPrefix = "output/"
		defaultLocalInput   = "datasets/input"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	ingestBucket := getEnv("INGEST_BUCKET")
	if ingestBucket == "" {
		err := fmt.Errorf("INGEST_BUCKET is required")
		log.Errorf(err, "missing INGEST_BUCKET")
		return nil, err
	}

	return &MinIOCfg{
		Endpoint:      getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		RootUser:      getEnv("MINIO_ROOT_USER"),
		RootPassword:  getEnv("MINIO_ROOT_PASSWORD"),
		UseSSL:        useSSL,
		IngestBucket:  ingestBucket,
		IngestPrefix:  getEnvOrDefault("INGEST_PREFIX", defaultIngestPrefix),
		BackupBucket:  getEnvOrDefault("BACKUP_BUCKET", ingestBucket),
		BackupPrefix:  getEnvOrDefault("BACKUP_PREFIX", defaultBackupPrefix),
		UploadBucket:  getEnvOrDefault("UPLOAD_BUCKET", ingestBucket),
		UploadPrefix:  getEnvOrDefault("UPLOAD_PREFIX", defaultUploadPrefix),
		LocalInputDir: getEnvOrDefault("LOCAL_INPUT_DIR", defaultLocalInput),
	}, nil
}

func loadAWSCfg(log logger.Logger) (*AWSCfg, error) {
	const (
		defaultRegion      = "us-east-2"
		defaultMaxAttempts = 1
	)

	roleARN := getEnv("AWS_ROLE_ARN")
	if roleARN == "" {
		err := fmt.Errorf("AWS_ROLE_ARN is required")
		log.Errorf(err, "missing AWS_ROLE_ARN")
		return nil, err
	}

	embeddingEndpoint := getEnv("EMBEDDING_ENDPOINT")
	if embeddingEndpoint == "" {
		err := fmt.Errorf("EMBEDDING_ENDPOINT is required")
		log.Errorf(err, "missing EMBEDDING_ENDPOINT")
		return nil, err
	}

	neighborEndpoint := getEnv("NEIGHBOR_ENDPOINT")
	if neighborEndpoint == "" {
		err := fmt.Errorf("NEIGHBOR_ENDPOINT is required")
		log.Errorf(err, "missing NEIGHBOR_ENDPOINT")
		return nil, err
	}

	invokeTimeout, err := parseDurationEnv("INVOKE_TIMEOUT", 0)
	if err != nil {
		log.Errorf(err, "invalid INVOKE_TIMEOUT")
		return nil, err
	}

	maxAttempts, err := parseIntEnv("INVOKE_MAX_ATTEMPTS", defaultMaxAttempts)
	if err != nil {
		log.Errorf(err, "invalid INVOKE_MAX_ATTEMPTS")
		return nil, err
	}

	return &AWSCfg{
		Region:            getEnvOrDefault("AWS_REGION", defaultRegion),
		RoleARN:           roleARN,
		ExternalAccountID: getEnv("AWS_EXTERNAL_ACCOUNT_ID"),
		EmbeddingEndpoint: embeddingEndpoint,
		NeighborEndpoint:  neighborEndpoint,
		InvokeTimeout:     invokeTimeout,
		MaxAttempts:       maxAttempts,
	}, nil
}

func loadPipelineCfg(log logger.Logger) (*PipelineCfg, error) {
	const (
		defaultBatchSize     = 32
		defaultMaxConcurrent = 1
		defaultOutputDir     = "datasets/output"
	)

	batchSize, err := parseIntEnv("BATCH_SIZE", defaultBatchSize)
	if err != nil {
		log.Errorf(err, "invalid BATCH_SIZE")
		return nil, err
	}
	if batchSize <= 0 {
		err := fmt.Errorf("BATCH_SIZE must be positive")
		log.Errorf(err, "invalid BATCH_SIZE")
		return nil, err
	}

	maxConcurrent, err := parseIntEnv("PIPELINE_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		log.Errorf(err, "invalid PIPELINE_MAX_CONCURRENT")
		return nil, err
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	shapeMode := getEnvOrDefault("SHAPE_MODE", ShapeModeOneToOne)
	if shapeMode != ShapeModeOneToOne && shapeMode != ShapeModeCrossProduct {
		err := fmt.Errorf("SHAPE_MODE must be %q or %q", ShapeModeOneToOne, ShapeModeCrossProduct)
		log.Errorf(err, "invalid SHAPE_MODE")
		return nil, err
	}

	marketplaces, err := parseMarketplaceMapping(getEnv("MARKETPLACE_MAPPING"))
	if err != nil {
		log.Errorf(err, "invalid MARKETPLACE_MAPPING")
		return nil, err
	}

	return &PipelineCfg{
		BatchSize:     batchSize,
		MaxConcurrent: maxConcurrent,
		OutputDir:     getEnvOrDefault("OUTPUT_DIR", defaultOutputDir),
		ShapeMode:     shapeMode,
		Marketplaces:  marketplaces,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	// Kafka опциональна: без брокеров события статуса не публикуются.
	brokerStr := getEnv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, nil
	}
	brokers := strings.Split(brokerStr, ",")

	topic := getEnv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
	}, nil
}

// parseMarketplaceMapping разбирает строку вида "000000=US,111111=UK".
// Пустая строка означает таблицу по умолчанию.
func parseMarketplaceMapping(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{
			"000000": "US",
			"111111": "UK",
			"222222": "ES",
		}, nil
	}

	mapping := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed marketplace mapping entry: %q", pair)
		}
		mapping[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return mapping, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
