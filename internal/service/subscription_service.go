package service

import (
	"context"
	"errors"
	"time"

	"github.com/qs3c/subscription_server/internal/mapper"
	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/clock"
	"github.com/qs3c/subscription_server/internal/pkg/events"
	"github.com/qs3c/subscription_server/internal/pkg/logger"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/validator"
)

// 单次过期扫描处理的最大条数
const sweepBatchSize = 500

// SubscriptionStore 订阅持久化
type SubscriptionStore interface {
	FindByID(ctx context.Context, id int64) (*model.Subscription, error)
	FindByUserID(ctx context.Context, userID int64) ([]*model.Subscription, error)
	FindAll(ctx context.Context) ([]*model.Subscription, error)
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	Insert(ctx context.Context, sub *model.Subscription) error
	Update(ctx context.Context, sub *model.Subscription) error
	Upsert(ctx context.Context, sub *model.Subscription) error
	UpdateStatus(ctx context.Context, sub *model.Subscription, expected model.Status) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// EventPublisher 生命周期事件发布
type EventPublisher interface {
	Publish(ctx context.Context, evt *events.Event) error
}

type SubscriptionService struct {
	repo      SubscriptionStore
	validator *validator.CreateSubscriptionValidator
	mapper    *mapper.CreateSubscriptionMapper
	clock     clock.Clock
	publisher EventPublisher
	log       *logger.Logger
	batchSize int
}

// NewSubscriptionService publisher 可为 nil（不发布事件），log 为 nil 时不输出日志
func NewSubscriptionService(
	repo SubscriptionStore,
	createValidator *validator.CreateSubscriptionValidator,
	createMapper *mapper.CreateSubscriptionMapper,
	clk clock.Clock,
	publisher EventPublisher,
	log *logger.Logger,
) *SubscriptionService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SubscriptionService{
		repo:      repo,
		validator: createValidator,
		mapper:    createMapper,
		clock:     clk,
		publisher: publisher,
		log:       log.With("component", "subscription_service"),
		batchSize: sweepBatchSize,
	}
}

// Upsert 校验请求后，用户已有订阅则原地更新第一条，否则新建
func (s *SubscriptionService) Upsert(ctx context.Context, req *dto.CreateSubscriptionRequest) (*model.Subscription, error) {
	result := s.validator.Validate(req)
	if result.HasErrors() {
		s.log.Warn("subscription upsert rejected", "codes", result.Codes())
		return nil, &ValidationError{Result: result}
	}

	existing, err := s.repo.FindByUserID(ctx, *req.UserID)
	if err != nil {
		return nil, err
	}

	var sub *model.Subscription
	eventType := events.TypeCreated
	if len(existing) > 0 {
		// 内容更新不是状态迁移，保持原状态
		sub = existing[0]
		sub.Name = req.Name
		sub.Provider = model.MustParseProvider(*req.Provider)
		sub.ExpirationDate = *req.ExpirationDate
		eventType = events.TypeUpdated
	} else {
		sub = s.mapper.Map(req)
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	if eventType == events.TypeUpdated {
		// 状态可能在读取后被并发修改，以库中为准
		stored, err := s.repo.FindByID(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			sub = stored
		}
	}

	s.log.Info("subscription upserted", "subscription_id", sub.ID, "user_id", sub.UserID, "event", eventType)
	s.publish(ctx, eventType, sub)

	return sub, nil
}

// Cancel ACTIVE -> CANCELED
func (s *SubscriptionService) Cancel(ctx context.Context, id int64) error {
	sub, err := s.transition(ctx, id, model.StatusCanceled, "cancel")
	if err != nil {
		return err
	}

	s.log.Info("subscription canceled", "subscription_id", sub.ID, "user_id", sub.UserID)
	s.publish(ctx, events.TypeCanceled, sub)
	return nil
}

// Expire ACTIVE -> EXPIRED，到期时间改为当前时刻
func (s *SubscriptionService) Expire(ctx context.Context, id int64) error {
	sub, err := s.transition(ctx, id, model.StatusExpired, "expire")
	if err != nil {
		return err
	}

	s.log.Info("subscription expired", "subscription_id", sub.ID, "user_id", sub.UserID)
	s.publish(ctx, events.TypeExpired, sub)
	return nil
}

// transition 查找订阅并执行状态迁移；失败路径不写库也不修改实体
func (s *SubscriptionService) transition(ctx context.Context, id int64, to model.Status, op string) (*model.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	from := sub.Status
	if err := model.Transition(from, to); err != nil {
		s.log.Warn("subscription transition rejected", "subscription_id", id, "status", from, "op", op)
		return nil, &SubscriptionError{ID: id, Status: from, Op: op, Err: err}
	}

	prevExpiration := sub.ExpirationDate
	sub.Status = to
	if to == model.StatusExpired {
		sub.ExpirationDate = s.clock.Now()
	}

	if err := s.repo.UpdateStatus(ctx, sub, from); err != nil {
		sub.Status = from
		sub.ExpirationDate = prevExpiration
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.conflict(ctx, id, op, err)
		}
		return nil, err
	}

	return sub, nil
}

// conflict 条件更新落空时重新读取当前状态构造 SubscriptionError
func (s *SubscriptionService) conflict(ctx context.Context, id int64, op string, cause error) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrSubscriptionNotFound
	}
	s.log.Warn("subscription changed concurrently", "subscription_id", id, "status", current.Status, "op", op)
	return &SubscriptionError{ID: id, Status: current.Status, Op: op, Err: cause}
}

// Get 按 ID 获取订阅
func (s *SubscriptionService) Get(ctx context.Context, id int64) (*model.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// ListByUser 获取用户的全部订阅
func (s *SubscriptionService) ListByUser(ctx context.Context, userID int64) ([]*model.Subscription, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// List 获取全部订阅
func (s *SubscriptionService) List(ctx context.Context) ([]*model.Subscription, error) {
	return s.repo.FindAll(ctx)
}

// Delete 物理删除，不经过生命周期状态机
func (s *SubscriptionService) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("subscription deleted", "subscription_id", id)
		s.publish(ctx, events.TypeDeleted, &model.Subscription{ID: id})
	}
	return deleted, nil
}

// ExpireOverdue 处理一批（最多 batchSize 条）已到期的 ACTIVE 订阅，返回过期条数
func (s *SubscriptionService) ExpireOverdue(ctx context.Context) (int, error) {
	_, expired, err := s.expireBatch(ctx, s.clock.Now())
	if expired > 0 {
		s.log.Info("overdue subscriptions expired", "count", expired)
	}
	return expired, err
}

// ExpireAllOverdue 分批处理直到没有已到期的 ACTIVE 订阅
func (s *SubscriptionService) ExpireAllOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		fetched, expired, err := s.expireBatch(ctx, now)
		total += expired
		if err != nil {
			return total, err
		}
		if fetched < s.batchSize {
			break
		}
	}

	if total > 0 {
		s.log.Info("overdue subscriptions expired", "count", total)
	}
	return total, nil
}

// expireBatch 返回本批查到的条数和实际过期的条数
func (s *SubscriptionService) expireBatch(ctx context.Context, now time.Time) (int, int, error) {
	overdue, err := s.repo.FindOverdue(ctx, now, s.batchSize)
	if err != nil {
		return 0, 0, err
	}

	expired := 0
	for _, sub := range overdue {
		if err := ctx.Err(); err != nil {
			return len(overdue), expired, err
		}

		err := s.Expire(ctx, sub.ID)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSubscriptionNotFound):
			// 扫描与执行之间已被其他请求处理
			continue
		default:
			return len(overdue), expired, err
		}
	}
	return len(overdue), expired, nil
}

// CountOverdue 统计当前已到期的 ACTIVE 订阅数（不修改数据）
func (s *SubscriptionService) CountOverdue(ctx context.Context) (int64, error) {
	return s.repo.CountOverdue(ctx, s.clock.Now())
}

func (s *SubscriptionService) publish(ctx context.Context, eventType string, sub *model.Subscription) {
	if s.publisher == nil {
		return
	}

	evt := &events.Event{
		Type:           eventType,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Status:         string(sub.Status),
		Provider:       string(sub.Provider),
		OccurredAt:     s.clock.Now(),
	}
	if !sub.ExpirationDate.IsZero() {
		expiration := sub.ExpirationDate
		evt.ExpirationDate = &expiration
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		// 事件发布失败不影响已完成的写入
		s.log.Error("failed to publish subscription event", "type", eventType, "subscription_id", sub.ID, "error", err)
	}
}
