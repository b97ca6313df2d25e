package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"groupchat/internal/pkg"
)

type EventType string

const (
	EventGroupCreated  EventType = "group.created"
	EventMemberInvited EventType = "group.member_invited"
	EventMessageSent   EventType = "group.message_sent"
)

// Event 群组活动事件，以群组 id 作为分区 key
type Event struct {
	Type    EventType `json:"type"`
	GroupID string    `json:"group_id"`
	Actor   string    `json:"actor"`
	Subject string    `json:"subject,omitempty"` // 被邀请的用户或消息键
	At      time.Time `json:"at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type KafkaPublisher struct {
	producer *pkg.KafkaProducer
}

func NewKafkaPublisher(producer *pkg.KafkaProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Send(ctx, event.GroupID, value)
}

// NopPublisher 未配置 kafka 时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NatsPublisher 发布到 {prefix}.{type}，例如 groupchat.group.created
type NatsPublisher struct {
	client *pkg.NatsClient
	prefix string
}

func NewNatsPublisher(client *pkg.NatsClient, prefix string) *NatsPublisher {
	return &NatsPublisher{client: client, prefix: prefix}
}

func (p *NatsPublisher) Publish(_ context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(EventSubject(p.prefix, event.Type), value)
}

func EventSubject(prefix string, t EventType) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// MultiPublisher 依次发布到每个目标，返回遇到的所有错误
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
