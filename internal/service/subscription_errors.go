package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/validator"
)

var (
	// ErrSubscriptionNotFound 目标 ID 不存在，属于调用方参数错误
	ErrSubscriptionNotFound = errors.New("subscription does not exist")
	// ErrInvalidTransition 订阅已处于终态，无法再取消/过期
	ErrInvalidTransition = errors.New("subscription is not active")
)

// ValidationError 创建请求未通过校验，携带全部错误
type ValidationError struct {
	Result *validator.ValidationResult
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors()))
	for _, v := range e.Result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%d: %s", v.Code, v.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Errors 返回全部校验错误
func (e *ValidationError) Errors() []validator.Error {
	return e.Result.Errors()
}

// SubscriptionError 订阅存在但当前状态不允许该操作
type SubscriptionError struct {
	ID     int64
	Status model.Status
	Op     string
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %d is already %s, cannot %s", e.ID, strings.ToLower(string(e.Status)), e.Op)
}

// Is 使 errors.Is(err, ErrInvalidTransition) 成立
func (e *SubscriptionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
