package worker

import (
	"context"
	"fmt"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/pkg/events"
	"github.com/qs3c/subscription_server/internal/pkg/logger"
)

// EventLogStore 事件记录存储
type EventLogStore interface {
	Create(ctx context.Context, entry *model.SubscriptionEventLog) error
}

// EventSource 事件来源，阻塞直到 ctx 结束
type EventSource interface {
	Subscribe(ctx context.Context, handler func(*events.Event)) error
}

// Processor 生命周期事件处理器：把事件落库为审计记录
type Processor struct {
	store EventLogStore
	log   *logger.Logger
}

// NewProcessor 创建事件处理器
func NewProcessor(store EventLogStore, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		store: store,
		log:   log.With("component", "event_worker"),
	}
}

// Process 处理单个事件
func (p *Processor) Process(ctx context.Context, evt *events.Event) error {
	if evt == nil || evt.Type == "" || evt.SubscriptionID == 0 {
		return fmt.Errorf("malformed event: %+v", evt)
	}

	entry := &model.SubscriptionEventLog{
		Type:           evt.Type,
		SubscriptionID: evt.SubscriptionID,
		UserID:         evt.UserID,
		Status:         evt.Status,
		Provider:       evt.Provider,
		ExpirationDate: evt.ExpirationDate,
		OccurredAt:     evt.OccurredAt,
	}
	if err := p.store.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	p.log.Debug("event recorded", "type", evt.Type, "subscription_id", evt.SubscriptionID)
	return nil
}

// Run 持续消费事件直到 ctx 结束，单个事件失败只记录日志
func (p *Processor) Run(ctx context.Context, source EventSource) error {
	p.log.Info("event worker started")
	err := source.Subscribe(ctx, func(evt *events.Event) {
		if err := p.Process(ctx, evt); err != nil {
			p.log.Warn("failed to process event", "error", err)
		}
	})
	if ctx.Err() != nil {
		p.log.Info("event worker stopped")
		return nil
	}
	return err
}
