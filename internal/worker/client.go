package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/worker/tasks"
)

// Client 封装 Asynq Client
type Client struct {
	client *asynq.Client
}

// NewClient 初始化 Client
// addr: "localhost:6379"
func NewClient(addr string, password string, db int) *Client {
	c := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{client: c}
}

// EnqueueReclaim 安排租赁到期时回收。同一租赁重复调用只保留一个任务。
func (c *Client) EnqueueReclaim(ctx context.Context, a escrow.Agreement) error {
	task, err := tasks.NewReclaimTask(tasks.PayloadFromAgreement(a))
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.client.Close()
}
