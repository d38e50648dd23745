package mapper

import (
	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
)

// CreateSubscriptionMapper 将已校验的请求转换为新的订阅实体
type CreateSubscriptionMapper struct{}

func NewCreateSubscriptionMapper() *CreateSubscriptionMapper {
	return &CreateSubscriptionMapper{}
}

// Map 不再重复校验，调用方须保证 req 已通过 validator
func (m *CreateSubscriptionMapper) Map(req *dto.CreateSubscriptionRequest) *model.Subscription {
	return &model.Subscription{
		UserID:         *req.UserID,
		Name:           req.Name,
		Provider:       model.MustParseProvider(*req.Provider),
		Status:         model.StatusActive,
		ExpirationDate: *req.ExpirationDate,
	}
}
