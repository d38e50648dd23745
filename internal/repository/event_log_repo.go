package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
)

type EventLogRepository struct {
	db *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// Create 写入一条事件记录
func (r *EventLogRepository) Create(ctx context.Context, entry *model.SubscriptionEventLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListBySubscriptionID 按发生时间顺序返回某订阅的事件
func (r *EventLogRepository) ListBySubscriptionID(ctx context.Context, subscriptionID int64) ([]*model.SubscriptionEventLog, error) {
	var entries []*model.SubscriptionEventLog
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("occurred_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// CountByType 按事件类型统计
func (r *EventLogRepository) CountByType(ctx context.Context, eventType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SubscriptionEventLog{}).
		Where("type = ?", eventType).
		Count(&count).Error
	return count, err
}
