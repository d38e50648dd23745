package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/database"
	"github.com/qs3c/subscription_server/internal/pkg/events"
	"github.com/qs3c/subscription_server/internal/pkg/logger"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/worker"
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
		log.Fatal("failed to connect database", "error", err)
	}

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect redis", "error", err)
	}
	defer rdb.Close()

	processor := worker.NewProcessor(repository.NewEventLogRepository(db), log)
	subscriber := events.NewSubscriber(rdb, cfg.Subscription.EventsChannel)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		cancel()
	}()

	if err := processor.Run(ctx, subscriber); err != nil {
		log.Fatal("event worker failed", "error", err)
	}
	log.Info("worker shutdown complete")
}
