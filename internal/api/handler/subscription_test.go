package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/internal/api/middleware"
	"github.com/qs3c/subscription_server/internal/mapper"
	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/pkg/clock"
	"github.com/qs3c/subscription_server/internal/pkg/jwt"
	"github.com/qs3c/subscription_server/internal/pkg/response"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/service"
	"github.com/qs3c/subscription_server/internal/testutil"
	"github.com/qs3c/subscription_server/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext 本地测试上下文
type testContext struct {
	DB   *gorm.DB
	Repo *repository.SubscriptionRepository
}

func setupSubscriptionHandler(t *testing.T) (*SubscriptionHandler, *testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	repo := repository.NewSubscriptionRepository(db)
	c := clock.Fixed(testutil.Now)

	subscriptionService := service.NewSubscriptionService(
		repo,
		validator.NewCreateSubscriptionValidator(c),
		mapper.NewCreateSubscriptionMapper(),
		c,
		nil,
		nil,
	)
	handler := NewSubscriptionHandler(subscriptionService)

	ctx := &testContext{
		DB:   db,
		Repo: repo,
	}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return handler, ctx, cleanup
}

// mockAuth 模拟认证中间件
func mockAuth(userID int64, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func newRouter(h *SubscriptionHandler, userID int64, role string) *gin.Engine {
	router := gin.New()
	router.Use(mockAuth(userID, role))
	router.POST("/subscriptions", h.Upsert)
	router.GET("/subscriptions", h.List)
	router.POST("/subscriptions/sweep", h.Sweep)
	router.GET("/subscriptions/:id", h.Get)
	router.POST("/subscriptions/:id/cancel", h.Cancel)
	router.POST("/subscriptions/:id/expire", h.Expire)
	router.DELETE("/subscriptions/:id", h.Delete)
	return router
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func upsertBody(userID *int64, name, provider string, expiration time.Time) map[string]interface{} {
	body := map[string]interface{}{
		"name":            name,
		"provider":        provider,
		"expiration_date": expiration.UTC().Format(time.RFC3339),
	}
	if userID != nil {
		body["user_id"] = *userID
	}
	return body
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestSubscriptionHandler_Upsert_Create(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	userID := int64(100)
	router := newRouter(handler, userID, jwt.RoleUser)

	w := doRequest(router, "POST", "/subscriptions",
		upsertBody(&userID, "Premium", "APPLE", testutil.Now.Add(24*time.Hour)))

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "Premium", data["name"])
	assert.Equal(t, "APPLE", data["provider"])
	assert.Equal(t, "ACTIVE", data["status"])
	assert.Equal(t, float64(100), data["user_id"])

	subs, err := ctx.Repo.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscriptionHandler_Upsert_DefaultsToCaller(t *testing.T) {
	handler, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := newRouter(handler, 42, jwt.RoleUser)

	w := doRequest(router, "POST", "/subscriptions",
		upsertBody(nil, "Premium", "GOOGLE", testutil.Now.Add(time.Hour)))

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(42), dataMap(t, resp)["user_id"])
}

func TestSubscriptionHandler_Upsert_UpdatesExisting(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	existing := testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(100))
	userID := int64(100)
	router := newRouter(handler, userID, jwt.RoleUser)

	w := doRequest(router, "POST", "/subscriptions",
		upsertBody(&userID, "Renamed", "GOOGLE", testutil.Now.Add(48*time.Hour)))

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, float64(existing.ID), data["id"])
	assert.Equal(t, "Renamed", data["name"])
	assert.Equal(t, "GOOGLE", data["provider"])
}

func TestSubscriptionHandler_Upsert_ValidationErrors(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	userID := int64(100)
	router := newRouter(handler, userID, jwt.RoleUser)

	w := doRequest(router, "POST", "/subscriptions",
		upsertBody(&userID, "  ", "AMAZON", testutil.Now.Add(-time.Hour)))

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)

	items, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, items, 3)

	codes := make([]float64, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.(map[string]interface{})["code"].(float64))
	}
	assert.Equal(t, []float64{101, 102, 103}, codes)

	var count int64
	ctx.DB.Model(&model.Subscription{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubscriptionHandler_Upsert_MalformedBody(t *testing.T) {
	handler, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := newRouter(handler, 100, jwt.RoleUser)

	req := httptest.NewRequest("POST", "/subscriptions", bytes.NewBufferString(`{"expiration_date":"tomorrow"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestSubscriptionHandler_Upsert_OtherUserForbidden(t *testing.T) {
	handler, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	other := int64(200)
	router := newRouter(handler, 100, jwt.RoleUser)

	w := doRequest(router, "POST", "/subscriptions",
		upsertBody(&other, "Premium", "APPLE", testutil.Now.Add(time.Hour)))

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodePermissionDenied, resp.Code)
}

func TestSubscriptionHandler_Upsert_AdminForOtherUser(t *testing.T) {
	handler, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	other := int64(200)
	router := newRouter(handler, 1, jwt.RoleAdmin)

	w := doRequest(router, "POST", "/subscriptions",
		upsertBody(&other, "Premium", "APPLE", testutil.Now.Add(time.Hour)))

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(200), dataMap(t, resp)["user_id"])
}

func TestSubscriptionHandler_List(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(100))
	testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(100), testutil.WithName("Second"))
	testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(200))

	t.Run("user sees own", func(t *testing.T) {
		router := newRouter(handler, 100, jwt.RoleUser)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions", nil))

		require.Equal(t, response.CodeSuccess, resp.Code)
		assert.Equal(t, float64(2), dataMap(t, resp)["total"])
	})

	t.Run("user cannot list others", func(t *testing.T) {
		router := newRouter(handler, 100, jwt.RoleUser)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions?user_id=200", nil))

		assert.Equal(t, response.CodePermissionDenied, resp.Code)
	})

	t.Run("admin sees all", func(t *testing.T) {
		router := newRouter(handler, 1, jwt.RoleAdmin)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions", nil))

		require.Equal(t, response.CodeSuccess, resp.Code)
		assert.Equal(t, float64(3), dataMap(t, resp)["total"])
	})

	t.Run("admin filters by user", func(t *testing.T) {
		router := newRouter(handler, 1, jwt.RoleAdmin)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions?user_id=200", nil))

		require.Equal(t, response.CodeSuccess, resp.Code)
		assert.Equal(t, float64(1), dataMap(t, resp)["total"])
	})

	t.Run("invalid user id", func(t *testing.T) {
		router := newRouter(handler, 1, jwt.RoleAdmin)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions?user_id=abc", nil))

		assert.Equal(t, response.CodeParamError, resp.Code)
	})
}

func TestSubscriptionHandler_Get(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	sub := testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(100))

	t.Run("owner", func(t *testing.T) {
		router := newRouter(handler, 100, jwt.RoleUser)
		resp := parseResponse(t, doRequest(router, "GET", fmt.Sprintf("/subscriptions/%d", sub.ID), nil))

		require.Equal(t, response.CodeSuccess, resp.Code)
		assert.Equal(t, float64(sub.ID), dataMap(t, resp)["id"])
	})

	t.Run("not owner", func(t *testing.T) {
		router := newRouter(handler, 999, jwt.RoleUser)
		resp := parseResponse(t, doRequest(router, "GET", fmt.Sprintf("/subscriptions/%d", sub.ID), nil))

		assert.Equal(t, response.CodePermissionDenied, resp.Code)
	})

	t.Run("not found", func(t *testing.T) {
		router := newRouter(handler, 100, jwt.RoleUser)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions/99999", nil))

		assert.Equal(t, response.CodeResourceNotFound, resp.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		router := newRouter(handler, 100, jwt.RoleUser)
		resp := parseResponse(t, doRequest(router, "GET", "/subscriptions/abc", nil))

		assert.Equal(t, response.CodeParamError, resp.Code)
	})
}

func TestSubscriptionHandler_Cancel(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	sub := testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(100))
	router := newRouter(handler, 100, jwt.RoleUser)
	path := fmt.Sprintf("/subscriptions/%d/cancel", sub.ID)

	resp := parseResponse(t, doRequest(router, "POST", path, nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "CANCELED", dataMap(t, resp)["status"])

	// 再次取消返回状态冲突
	resp = parseResponse(t, doRequest(router, "POST", path, nil))
	assert.Equal(t, response.CodeStateConflict, resp.Code)
	assert.Contains(t, resp.Message, "already canceled")

	stored, err := ctx.Repo.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, stored.Status)
}

func TestSubscriptionHandler_Cancel_NotOwner(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	sub := testutil.TestSubscription(t, ctx.DB, testutil.WithUserID(100))
	router := newRouter(handler, 200, jwt.RoleUser)

	resp := parseResponse(t, doRequest(router, "POST", fmt.Sprintf("/subscriptions/%d/cancel", sub.ID), nil))
	assert.Equal(t, response.CodePermissionDenied, resp.Code)

	stored, err := ctx.Repo.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)
}

func TestSubscriptionHandler_Expire(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	sub := testutil.TestSubscription(t, ctx.DB)
	router := newRouter(handler, 1, jwt.RoleAdmin)

	resp := parseResponse(t, doRequest(router, "POST", fmt.Sprintf("/subscriptions/%d/expire", sub.ID), nil))
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "EXPIRED", data["status"])
	assert.Equal(t, testutil.Now.UTC().Format(time.RFC3339), data["expiration_date"])

	resp = parseResponse(t, doRequest(router, "POST", "/subscriptions/99999/expire", nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestSubscriptionHandler_Delete(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	sub := testutil.TestSubscription(t, ctx.DB)
	router := newRouter(handler, 1, jwt.RoleAdmin)
	path := fmt.Sprintf("/subscriptions/%d", sub.ID)

	resp := parseResponse(t, doRequest(router, "DELETE", path, nil))
	assert.Equal(t, response.CodeSuccess, resp.Code)

	resp = parseResponse(t, doRequest(router, "DELETE", path, nil))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestSubscriptionHandler_Sweep(t *testing.T) {
	handler, ctx, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	testutil.TestSubscription(t, ctx.DB, testutil.WithExpirationDate(testutil.Now.Add(-time.Hour)))
	testutil.TestSubscription(t, ctx.DB, testutil.WithExpirationDate(testutil.Now.Add(-time.Minute)))
	testutil.TestSubscription(t, ctx.DB, testutil.WithExpirationDate(testutil.Now.Add(time.Hour)))

	router := newRouter(handler, 1, jwt.RoleAdmin)

	resp := parseResponse(t, doRequest(router, "POST", "/subscriptions/sweep", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, float64(2), dataMap(t, resp)["expired"])
}

func TestSubscriptionHandler_MissingAuth(t *testing.T) {
	handler, _, cleanup := setupSubscriptionHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/subscriptions", handler.List)

	resp := parseResponse(t, doRequest(router, "GET", "/subscriptions", nil))
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
