package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"marketplace-core/internal/worker/tasks"
	"marketplace-core/pkg/logger"
)

// Server 执行到期回收任务的 asynq worker
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(addr string, password string, db int, concurrency int, reclaimer tasks.Reclaimer) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueSettlement: 6,
				"default":             1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler:   asynq.ErrorHandlerFunc(logTaskError),
			Logger:         logger.NewAsynqLogger(),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeRentalReclaim, tasks.NewReclaimHandler(reclaimer))

	return &Server{
		server: srv,
		mux:    mux,
	}
}

// retryDelay 回收失败多为锁冲突或时钟偏差，短间隔线性退避，上限 5 分钟
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Duration(n+1) * 10 * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

func logTaskError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger.Warn("[Worker] 任务失败",
		zap.String("type", task.Type()),
		zap.Int("retried", retried),
		zap.Int("max_retry", maxRetry),
		zap.Error(err))
}

// Start 非阻塞
func (s *Server) Start() {
	go func() {
		if err := s.server.Run(s.mux); err != nil {
			logger.Fatal("Worker Server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Stop() {
	s.server.Stop()
	s.server.Shutdown()
}
