package validator

import (
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/clock"
)

// CreateSubscriptionValidator 校验创建订阅请求，所有规则都会执行，错误累积返回
type CreateSubscriptionValidator struct {
	clock       clock.Clock
	validate    *playground.Validate
	providerTag string
}

func NewCreateSubscriptionValidator(c clock.Clock) *CreateSubscriptionValidator {
	names := make([]string, 0, len(model.Providers))
	for _, p := range model.Providers {
		names = append(names, string(p))
	}

	return &CreateSubscriptionValidator{
		clock:       c,
		validate:    playground.New(),
		providerTag: "required,oneof=" + strings.Join(names, " "),
	}
}

// Validate 校验请求，从不返回 nil
func (v *CreateSubscriptionValidator) Validate(req *dto.CreateSubscriptionRequest) *ValidationResult {
	if req == nil {
		req = &dto.CreateSubscriptionRequest{}
	}

	result := NewValidationResult()

	if req.UserID == nil {
		result.Add(CodeInvalidUserID, "invalid userId")
	}
	if v.validate.Var(strings.TrimSpace(req.Name), "required") != nil {
		result.Add(CodeInvalidName, "name is invalid")
	}
	if req.Provider == nil || v.validate.Var(*req.Provider, v.providerTag) != nil {
		result.Add(CodeInvalidProvider, "provider is invalid")
	}
	if req.ExpirationDate == nil || !req.ExpirationDate.After(v.clock.Now()) {
		result.Add(CodeInvalidExpirationDate, "expirationDate is invalid")
	}

	return result
}
