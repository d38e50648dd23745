package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/api"
	"github.com/qs3c/subscription_server/internal/api/handler"
	"github.com/qs3c/subscription_server/internal/database"
	"github.com/qs3c/subscription_server/internal/mapper"
	"github.com/qs3c/subscription_server/internal/pkg/clock"
	"github.com/qs3c/subscription_server/internal/pkg/cron"
	"github.com/qs3c/subscription_server/internal/pkg/events"
	"github.com/qs3c/subscription_server/internal/pkg/logger"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/service"
	"github.com/qs3c/subscription_server/internal/validator"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", "driver", cfg.Database.Driver, "error", err)
	}
	log.Info("database connected", "driver", cfg.Database.Driver)

	// 初始化 Redis（可选，用于发布生命周期事件）
	var publisher service.EventPublisher
	if cfg.Redis.Host != "" {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, lifecycle events disabled", "error", err)
		} else {
			defer rdb.Close()
			publisher = events.NewPublisher(rdb, cfg.Subscription.EventsChannel)
			log.Info("redis connected", "channel", cfg.Subscription.EventsChannel)
		}
	}

	// 初始化 Service
	clk := clock.System()
	subscriptionService := service.NewSubscriptionService(
		repository.NewSubscriptionRepository(db),
		validator.NewCreateSubscriptionValidator(clk),
		mapper.NewCreateSubscriptionMapper(),
		clk,
		publisher,
		log,
	)

	// 定时过期扫描
	cronService := cron.NewService(subscriptionService, cfg.Subscription.SweepInterval(), log)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(handler.NewSubscriptionHandler(subscriptionService), cfg)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
