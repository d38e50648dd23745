package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/internal/api/middleware"
	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/response"
	"github.com/qs3c/subscription_server/internal/service"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// Upsert 创建或更新订阅
// POST /api/v1/subscriptions
func (h *SubscriptionHandler) Upsert(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	// 普通用户只能操作自己的订阅，缺省时取当前用户
	if !middleware.IsAdmin(c) {
		if req.UserID == nil {
			req.UserID = &userID
		} else if *req.UserID != userID {
			response.PermissionError(c, "无权操作其他用户的订阅")
			return
		}
	}

	sub, err := h.subscriptionService.Upsert(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, dto.NewSubscriptionItem(sub))
}

// List 订阅列表
// GET /api/v1/subscriptions?user_id=
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var (
		subs []*model.Subscription
		err  error
	)

	query := c.Query("user_id")
	switch {
	case query != "":
		target, parseErr := strconv.ParseInt(query, 10, 64)
		if parseErr != nil {
			response.ParamError(c, "无效的用户ID")
			return
		}
		if target != userID && !middleware.IsAdmin(c) {
			response.PermissionError(c, "无权查看其他用户的订阅")
			return
		}
		subs, err = h.subscriptionService.ListByUser(c.Request.Context(), target)
	case middleware.IsAdmin(c):
		subs, err = h.subscriptionService.List(c.Request.Context())
	default:
		subs, err = h.subscriptionService.ListByUser(c.Request.Context(), userID)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessList(c, len(subs), dto.NewSubscriptionItems(subs))
}

// Get 订阅详情
// GET /api/v1/subscriptions/:id
func (h *SubscriptionHandler) Get(c *gin.Context) {
	sub, ok := h.loadOwned(c)
	if !ok {
		return
	}

	response.Success(c, dto.NewSubscriptionItem(sub))
}

// Cancel 取消订阅
// POST /api/v1/subscriptions/:id/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	sub, ok := h.loadOwned(c)
	if !ok {
		return
	}

	if err := h.subscriptionService.Cancel(c.Request.Context(), sub.ID); err != nil {
		h.handleError(c, err)
		return
	}

	h.respondCurrent(c, sub.ID, "取消成功")
}

// Expire 使订阅立即过期（管理员）
// POST /api/v1/subscriptions/:id/expire
func (h *SubscriptionHandler) Expire(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.subscriptionService.Expire(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	h.respondCurrent(c, id, "已过期")
}

// Delete 删除订阅（管理员）
// DELETE /api/v1/subscriptions/:id
func (h *SubscriptionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := h.subscriptionService.Delete(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !deleted {
		response.NotFoundError(c, service.ErrSubscriptionNotFound.Error())
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// Sweep 立即过期全部已到期订阅（管理员）
// POST /api/v1/subscriptions/sweep
func (h *SubscriptionHandler) Sweep(c *gin.Context) {
	expired, err := h.subscriptionService.ExpireAllOverdue(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, dto.SweepResult{Expired: expired})
}

// loadOwned 读取路径中的订阅并校验归属，失败时已写出响应
func (h *SubscriptionHandler) loadOwned(c *gin.Context) (*model.Subscription, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return nil, false
	}

	id, ok := parseID(c)
	if !ok {
		return nil, false
	}

	sub, err := h.subscriptionService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}

	if sub.UserID != userID && !middleware.IsAdmin(c) {
		response.PermissionError(c, "无权访问此订阅")
		return nil, false
	}

	return sub, true
}

func (h *SubscriptionHandler) respondCurrent(c *gin.Context, id int64, message string) {
	sub, err := h.subscriptionService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, message, dto.NewSubscriptionItem(sub))
}

func (h *SubscriptionHandler) handleError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var subscriptionErr *service.SubscriptionError

	switch {
	case errors.As(err, &validationErr):
		response.ValidationError(c, validationErr.Errors())
	case errors.Is(err, service.ErrSubscriptionNotFound):
		response.NotFoundError(c, err.Error())
	case errors.As(err, &subscriptionErr):
		response.StateConflictError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的订阅ID")
		return 0, false
	}
	return id, true
}
