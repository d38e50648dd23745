package model

import (
	"time"
)

type Subscription struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"not null;index" json:"user_id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Provider       Provider  `gorm:"size:20;not null" json:"provider"`
	Status         Status    `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`
	ExpirationDate time.Time `gorm:"not null;index" json:"expiration_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// IsPersisted 是否已持久化（存储层分配了 ID）
func (s *Subscription) IsPersisted() bool {
	return s.ID != 0
}
