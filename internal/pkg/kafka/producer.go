package kafka

import (
	"Clubline/internal/api/config"
	"Clubline/internal/api/dto"
	"context"
	"fmt"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// NotifyProducer 把消息事件投递给外部推送通知服务
// 核心不关心推送形态，只负责把事件和各接收方的免打扰标记送上总线
type NotifyProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewNotifyProducer(kafkaCfg config.KafkaConfig, topic string) (*NotifyProducer, error) {
	c := newSaramaConfig(kafkaCfg)

	producer, err := sarama.NewSyncProducer(kafkaCfg.Brokers, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("Kafka notify producer established successfully.", "topic", topic)
	return &NotifyProducer{producer: producer, topic: topic}, nil
}

// MessageSent 投递一条消息事件
// 用会话 ID 做分区键，保证同一会话的通知有序
func (s *NotifyProducer) MessageSent(ctx context.Context, event *dto.NotifyEventDTO) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notify event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", event.Message.ConversationID)),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send notify event: %w", err)
	}

	log.DebugContext(ctx, "notify event sent",
		"conversation_id", event.Message.ConversationID,
		"partition", partition,
		"offset", offset)
	return nil
}

func (s *NotifyProducer) Close() error {
	return s.producer.Close()
}
