package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
)

// Now 测试中统一使用的固定时刻
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestSubscription 创建测试订阅（默认 ACTIVE，1000 秒后到期）
func TestSubscription(t *testing.T, db *gorm.DB, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := NewSubscription(opts...)

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// NewSubscription 构造未持久化的测试订阅
func NewSubscription(opts ...func(*model.Subscription)) *model.Subscription {
	sub := &model.Subscription{
		UserID:         100,
		Name:           fmt.Sprintf("test_%d", time.Now().UnixNano()%10000),
		Provider:       model.ProviderApple,
		Status:         model.StatusActive,
		ExpirationDate: Now.Add(1000 * time.Second),
	}

	for _, opt := range opts {
		opt(sub)
	}

	return sub
}

// WithID 设置 ID（模拟已持久化）
func WithID(id int64) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.ID = id
	}
}

// WithUserID 设置所属用户
func WithUserID(userID int64) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.UserID = userID
	}
}

// WithName 设置名称
func WithName(name string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Name = name
	}
}

// WithProvider 设置提供方
func WithProvider(p model.Provider) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Provider = p
	}
}

// WithStatus 设置状态
func WithStatus(status model.Status) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// WithExpirationDate 设置到期时间
func WithExpirationDate(t time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.ExpirationDate = t
	}
}

// CreateRequest 构造合法的创建请求
func CreateRequest(opts ...func(*dto.CreateSubscriptionRequest)) *dto.CreateSubscriptionRequest {
	userID := int64(100)
	provider := string(model.ProviderApple)
	expiration := Now.Add(1000 * time.Second)

	req := &dto.CreateSubscriptionRequest{
		UserID:         &userID,
		Name:           "test",
		Provider:       &provider,
		ExpirationDate: &expiration,
	}

	for _, opt := range opts {
		opt(req)
	}

	return req
}

// WithRequestUserID 设置请求的用户 ID，nil 表示缺省
func WithRequestUserID(userID *int64) func(*dto.CreateSubscriptionRequest) {
	return func(r *dto.CreateSubscriptionRequest) {
		r.UserID = userID
	}
}

// WithRequestName 设置请求名称
func WithRequestName(name string) func(*dto.CreateSubscriptionRequest) {
	return func(r *dto.CreateSubscriptionRequest) {
		r.Name = name
	}
}

// WithRequestProvider 设置请求提供方，nil 表示缺省
func WithRequestProvider(provider *string) func(*dto.CreateSubscriptionRequest) {
	return func(r *dto.CreateSubscriptionRequest) {
		r.Provider = provider
	}
}

// WithRequestExpiration 设置请求到期时间
func WithRequestExpiration(t time.Time) func(*dto.CreateSubscriptionRequest) {
	return func(r *dto.CreateSubscriptionRequest) {
		r.ExpirationDate = &t
	}
}
