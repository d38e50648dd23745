package dto

import (
	"time"

	"github.com/qs3c/subscription_server/internal/model"
)

// CreateSubscriptionRequest 创建/更新订阅请求，字段均可缺省，由 validator 统一校验
type CreateSubscriptionRequest struct {
	UserID         *int64     `json:"user_id"`
	Name           string     `json:"name"`
	Provider       *string    `json:"provider"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

// SubscriptionItem 订阅信息（返回给前端）
type SubscriptionItem struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	Provider       string `json:"provider"`
	Status         string `json:"status"`
	ExpirationDate string `json:"expiration_date"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// NewSubscriptionItem 由实体构造返回对象
func NewSubscriptionItem(s *model.Subscription) *SubscriptionItem {
	item := &SubscriptionItem{
		ID:             s.ID,
		UserID:         s.UserID,
		Name:           s.Name,
		Provider:       string(s.Provider),
		Status:         string(s.Status),
		ExpirationDate: s.ExpirationDate.UTC().Format(time.RFC3339),
	}
	if !s.CreatedAt.IsZero() {
		item.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !s.UpdatedAt.IsZero() {
		item.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return item
}

// NewSubscriptionItems 批量构造
func NewSubscriptionItems(subs []*model.Subscription) []*SubscriptionItem {
	items := make([]*SubscriptionItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, NewSubscriptionItem(s))
	}
	return items
}

// SweepResult 过期扫描结果
type SweepResult struct {
	Expired int `json:"expired"`
}
