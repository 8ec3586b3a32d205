package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
	"github.com/DRSN-tech/inference-pipeline/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

// statusEvent — событие статуса прогона, публикуемое в Kafka.
// Формат конверта совпадает с выводом пайплайна.
type statusEvent struct {
	EventID        string `json:"event_id"`
	EventTimestamp int64  `json:"event_timestamp"`
	RunID          string `json:"run_id"`
	BatchKey       string `json:"batch_key,omitempty"`
	EventMessage   string `json:"event_message"`
	Reason         string `json:"reason"`
}

// StatusReporter публикует события статуса прогона и сбоев батчей.
// Публикация — побочный канал наблюдаемости: её ошибки логируются и не
// влияют на результат прогона.
type StatusReporter struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewStatusReporter(logger logger.Logger, cfg *cfg.KafkaCfg) *StatusReporter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka status reporter error: %s", err.Error())
			}
		},
	}

	return &StatusReporter{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

// ReportBatchFailure публикует событие о поглощённом сбое одного батча.
func (r *StatusReporter) ReportBatchFailure(ctx context.Context, runID, batchKey string, env *domain.StatusEnvelope) {
	r.publish(ctx, batchKey, statusEvent{
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UnixNano(),
		RunID:          runID,
		BatchKey:       batchKey,
		EventMessage:   env.EventMessage,
		Reason:         env.Reason,
	})
}

// ReportRunStatus публикует финальный (или фатальный) статус прогона.
func (r *StatusReporter) ReportRunStatus(ctx context.Context, runID string, env *domain.StatusEnvelope) {
	r.publish(ctx, runID, statusEvent{
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UnixNano(),
		RunID:          runID,
		EventMessage:   env.EventMessage,
		Reason:         env.Reason,
	})
}

func (r *StatusReporter) publish(ctx context.Context, key string, event statusEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		r.logger.Warnf("failed to marshal status event: %v", err)
		return
	}

	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		r.logger.Warnf("failed to publish status event: %v", err)
	}
}

// EnsureTopic создаёт топик событий, если он ещё не существует.
func (r *StatusReporter) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(r.cfg.NetworkMode, r.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(r.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             r.cfg.Topic,
			NumPartitions:     r.cfg.Partitions,
			ReplicationFactor: r.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", r.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, r.cfg.Topic))
	}
}

func (r *StatusReporter) Close() error {
	return r.writer.Close()
}
