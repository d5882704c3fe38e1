package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/marketplace"
	"marketplace-core/pkg/logger"
	"marketplace-core/pkg/monitor"
	"marketplace-core/pkg/utils/lock"
)

const sweepLockKey = "cron:lock:rental_sweep"

// ExpiredReclaimer 扫描并回收到期租赁
type ExpiredReclaimer interface {
	ExpiredRentals(ctx context.Context, limit int) ([]escrow.Agreement, error)
	ReclaimExpired(ctx context.Context, trigger string, a escrow.Agreement) (*marketplace.Receipt, error)
}

// CronService 定时清扫到期未回收的租赁，作为 asynq 定时任务的兜底
type CronService struct {
	cron      *cron.Cron
	spec      string
	lock      lock.DistributedLock
	lockTTL   time.Duration
	batchSize int
	reclaimer ExpiredReclaimer
}

func NewCronService(spec string, distLock lock.DistributedLock, lockTTL time.Duration, batchSize int, reclaimer ExpiredReclaimer) *CronService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CronService{
		cron:      cron.New(),
		spec:      spec,
		lock:      distLock,
		lockTTL:   lockTTL,
		batchSize: batchSize,
		reclaimer: reclaimer,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.SweepExpiredRentals(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Cron Service started", zap.String("sweep", s.spec))
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// SweepExpiredRentals 逐个回收，单个失败不影响其他租赁。返回成功回收的数量。
func (s *CronService) SweepExpiredRentals(ctx context.Context) int {
	// 防止多实例同时执行
	locked, err := s.lock.Acquire(ctx, sweepLockKey, s.lockTTL)
	if err != nil || !locked {
		logger.Debug("SweepExpiredRentals: 获取锁失败或已有实例在运行", zap.Error(err))
		return 0
	}
	defer s.lock.Release(ctx, sweepLockKey)

	start := time.Now()
	defer func() { monitor.ObserveSweep(time.Since(start)) }()

	expired, err := s.reclaimer.ExpiredRentals(ctx, s.batchSize)
	if err != nil {
		logger.Error("查询到期租赁失败", zap.Error(err))
		return 0
	}

	reclaimed := 0
	for _, a := range expired {
		if _, err := s.reclaimer.ReclaimExpired(ctx, marketplace.TriggerSweeper, a); err != nil {
			logger.Warn("清扫回收失败", zap.String("rental", a.Key().String()), zap.Error(err))
			continue
		}
		reclaimed++
	}
	if len(expired) > 0 {
		logger.Info("到期租赁清扫完成", zap.Int("found", len(expired)), zap.Int("reclaimed", reclaimed))
	}
	return reclaimed
}
