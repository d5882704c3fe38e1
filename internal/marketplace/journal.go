package marketplace

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketplace-core/pkg/logger"
)

type undoStep struct {
	name string
	undo func(ctx context.Context) error
}

// journal 记录一次操作内已经生效的变更，失败时逆序补偿。
// 同时统计协作方调用次数，作为回执里的执行成本。
type journal struct {
	op    string
	steps []undoStep
	calls int
	start time.Time
}

func newJournal(op string) *journal {
	return &journal{op: op, start: time.Now()}
}

// call 统计一次协作方调用
func (j *journal) call() {
	j.calls++
}

func (j *journal) push(name string, undo func(ctx context.Context) error) {
	j.steps = append(j.steps, undoStep{name: name, undo: undo})
}

// rollback 不受调用方 ctx 取消影响
func (j *journal) rollback(ctx context.Context) {
	rctx := context.WithoutCancel(ctx)
	for i := len(j.steps) - 1; i >= 0; i-- {
		s := j.steps[i]
		if err := s.undo(rctx); err != nil {
			logger.Error("补偿失败",
				zap.String("op", j.op),
				zap.String("step", s.name),
				zap.Error(err))
		}
	}
	j.steps = nil
}

func (j *journal) cost() Cost {
	return Cost{Calls: j.calls, Elapsed: time.Since(j.start)}
}
