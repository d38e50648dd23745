package model

import (
	"time"
)

// SubscriptionEventLog 生命周期事件审计记录，由 worker 消费事件后写入
type SubscriptionEventLog struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	Type           string     `gorm:"size:32;not null;index" json:"type"`
	SubscriptionID int64      `gorm:"not null;index" json:"subscription_id"`
	UserID         int64      `gorm:"index" json:"user_id"`
	Status         string     `gorm:"size:20" json:"status"`
	Provider       string     `gorm:"size:20" json:"provider"`
	ExpirationDate *time.Time `json:"expiration_date"`
	OccurredAt     time.Time  `gorm:"not null" json:"occurred_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (SubscriptionEventLog) TableName() string {
	return "subscription_event_logs"
}
