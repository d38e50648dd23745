package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "subscription_events"

// 生命周期事件类型
const (
	TypeCreated  = "subscription.created"
	TypeUpdated  = "subscription.updated"
	TypeCanceled = "subscription.canceled"
	TypeExpired  = "subscription.expired"
	TypeDeleted  = "subscription.deleted"
)

// Event 订阅生命周期事件
type Event struct {
	Type           string     `json:"type"`
	SubscriptionID int64      `json:"subscription_id"`
	UserID         int64      `json:"user_id"`
	Status         string     `json:"status,omitempty"`
	Provider       string     `json:"provider,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher 创建发布者，channel 为空时使用默认频道
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Publish 发布事件
func (p *Publisher) Publish(ctx context.Context, evt *Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞接收事件直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*Event)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// 等待订阅确认，避免丢失紧随其后的消息
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", s.channel, err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // 忽略解析错误
			}

			handler(&evt)
		}
	}
}
