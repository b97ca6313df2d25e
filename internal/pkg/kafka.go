package pkg

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	log    *logrus.Logger
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NewKafkaProducer 同一个 key（群组 id）的事件落在同一分区，保证组内顺序。
// 异步写入，请求路径不等 broker 确认，失败只记日志
func NewKafkaProducer(cfg KafkaConfig, log *logrus.Logger) *KafkaProducer {
	p := &KafkaProducer{topic: cfg.Topic, log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Completion:   p.completion,
	}
	return p
}

func (p *KafkaProducer) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	keys := make([]string, 0, len(messages))
	for _, m := range messages {
		keys = append(keys, string(m.Key))
	}
	p.log.WithError(err).WithFields(logrus.Fields{
		"topic":    p.topic,
		"count":    len(messages),
		"group_id": keys,
	}).Error("kafka async write failed")
}

// Close 会先把缓冲中的消息刷出去
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaProducer) Send(ctx context.Context, key string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	return p.writer.WriteMessages(ctx, msg)
}
