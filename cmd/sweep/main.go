package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/database"
	"github.com/qs3c/subscription_server/internal/mapper"
	"github.com/qs3c/subscription_server/internal/pkg/clock"
	"github.com/qs3c/subscription_server/internal/pkg/events"
	"github.com/qs3c/subscription_server/internal/pkg/logger"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/service"
	"github.com/qs3c/subscription_server/internal/validator"
)

var (
	dryRun  = flag.Bool("dry-run", false, "Only count overdue subscriptions, don't expire them")
	timeout = flag.Duration("timeout", 5*time.Minute, "Maximum duration of the sweep")
)

func main() {
	flag.Parse()

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

	log.Info("starting overdue sweep", "dry_run", *dryRun)

	// 连接数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", "error", err)
	}

	var publisher service.EventPublisher
	if cfg.Redis.Host != "" && !*dryRun {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, lifecycle events disabled", "error", err)
		} else {
			defer rdb.Close()
			publisher = events.NewPublisher(rdb, cfg.Subscription.EventsChannel)
		}
	}

	clk := clock.System()
	subscriptionService := service.NewSubscriptionService(
		repository.NewSubscriptionRepository(db),
		validator.NewCreateSubscriptionValidator(clk),
		mapper.NewCreateSubscriptionMapper(),
		clk,
		publisher,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *dryRun {
		count, err := subscriptionService.CountOverdue(ctx)
		if err != nil {
			log.Fatal("failed to count overdue subscriptions", "error", err)
		}
		log.Info("dry run complete", "would_expire", count)
		return
	}

	// 一次性运行，分批处理直到清空
	expired, err := subscriptionService.ExpireAllOverdue(ctx)
	if err != nil {
		log.Fatal("overdue sweep failed", "expired", expired, "error", err)
	}
	log.Info("overdue sweep complete", "expired", expired)
}
