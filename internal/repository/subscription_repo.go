package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
)

var (
	// ErrStatusConflict 条件更新未命中：记录的状态已不是预期值
	ErrStatusConflict = errors.New("subscription status changed concurrently")
	ErrNotPersisted   = errors.New("subscription has no id")
	ErrAlreadyExists  = errors.New("subscription already has an id")
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByID 按 ID 查询，不存在时返回 nil, nil
func (r *SubscriptionRepository) FindByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindByUserID 查询用户的全部订阅，按 ID 升序
func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID int64) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) FindAll(ctx context.Context) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).Order("id ASC").Find(&subs).Error
	return subs, err
}

// FindOverdue 查询已到期但仍为 ACTIVE 的订阅
func (r *SubscriptionRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.overdue(ctx, now).
		Order("expiration_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// CountOverdue 统计已到期但仍为 ACTIVE 的订阅数
func (r *SubscriptionRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.overdue(ctx, now).Model(&model.Subscription{}).Count(&count).Error
	return count, err
}

// 时间一律按 UTC 存取，SQLite 以文本比较时间
func (r *SubscriptionRepository) overdue(ctx context.Context, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("status = ? AND expiration_date <= ?", model.StatusActive, now.UTC())
}

// Insert 新建记录，成功后 sub.ID 被回填
func (r *SubscriptionRepository) Insert(ctx context.Context, sub *model.Subscription) error {
	if sub.IsPersisted() {
		return ErrAlreadyExists
	}
	sub.ExpirationDate = sub.ExpirationDate.UTC()
	return r.db.WithContext(ctx).Create(sub).Error
}

// Update 只写内容字段，状态只能经 UpdateStatus 修改
func (r *SubscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	if !sub.IsPersisted() {
		return ErrNotPersisted
	}
	sub.ExpirationDate = sub.ExpirationDate.UTC()
	return r.db.WithContext(ctx).Model(sub).
		Select("name", "provider", "expiration_date", "updated_at").
		Updates(sub).Error
}

// Upsert 无 ID 时插入，否则更新
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	if sub.IsPersisted() {
		return r.Update(ctx, sub)
	}
	return r.Insert(ctx, sub)
}

// UpdateStatus 仅当记录当前状态为 expected 时写入 sub 的状态和到期时间
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, sub *model.Subscription, expected model.Status) error {
	if !sub.IsPersisted() {
		return ErrNotPersisted
	}

	sub.ExpirationDate = sub.ExpirationDate.UTC()
	result := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status = ?", sub.ID, expected).
		Updates(map[string]interface{}{
			"status":          sub.Status,
			"expiration_date": sub.ExpirationDate,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Delete 删除记录，返回是否确实删除了数据
func (r *SubscriptionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Subscription{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
