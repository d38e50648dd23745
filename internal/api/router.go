package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/api/handler"
	"github.com/qs3c/subscription_server/internal/api/middleware"
)

type Router struct {
	subscriptionHandler *handler.SubscriptionHandler
	cfg                 *config.Config
}

func NewRouter(subscriptionHandler *handler.SubscriptionHandler, cfg *config.Config) *Router {
	return &Router{
		subscriptionHandler: subscriptionHandler,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := engine.Group("/api/v1")
	{
		subscriptions := api.Group("/subscriptions")
		subscriptions.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			subscriptions.POST("", r.subscriptionHandler.Upsert)
			subscriptions.GET("", r.subscriptionHandler.List)
			subscriptions.GET("/:id", r.subscriptionHandler.Get)
			subscriptions.POST("/:id/cancel", r.subscriptionHandler.Cancel)

			// 管理员接口
			admin := subscriptions.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/sweep", r.subscriptionHandler.Sweep)
				admin.POST("/:id/expire", r.subscriptionHandler.Expire)
				admin.DELETE("/:id", r.subscriptionHandler.Delete)
			}
		}
	}

	return engine
}
