package cron

import (
	"context"
	"sync"
	"time"

	"github.com/qs3c/subscription_server/internal/pkg/logger"
)

// Sweeper 过期扫描任务
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type Service struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(sweeper Sweeper, interval time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		sweeper:  sweeper,
		interval: interval,
		timeout:  time.Minute,
		log:      log.With("component", "cron"),
		stopChan: make(chan struct{}),
	}
}

// Start 启动定时任务，interval <= 0 时不启动
func (s *Service) Start() {
	if s.interval <= 0 {
		s.log.Info("cron service disabled")
		return
	}

	s.wg.Add(1)
	go s.runSweep()
	s.log.Info("cron service started", "interval", s.interval.String())
}

// Stop 停止定时任务并等待当前一轮结束，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.log.Info("cron service stopped")
}

// runSweep 按间隔执行过期扫描
func (s *Service) runSweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Stop 时中断正在进行的扫描
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	expired, err := s.sweeper.ExpireOverdue(ctx)
	if err != nil {
		s.log.Error("overdue sweep failed", "expired", expired, "error", err)
		return
	}
	if expired > 0 {
		s.log.Info("overdue sweep completed", "expired", expired)
	}
}

// RunNow 立即执行一次扫描（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) (int, error) {
	s.log.Info("manual overdue sweep triggered")
	return s.sweeper.ExpireOverdue(ctx)
}
