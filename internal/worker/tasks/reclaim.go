package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/marketplace"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"
)

const (
	TypeRentalReclaim = "rental:reclaim"

	// QueueSettlement 回收任务单独一个队列，不与其它后台任务争抢
	QueueSettlement = "settlement"
)

// ReclaimPayload 到期回收任务参数
type ReclaimPayload struct {
	Collection     string `json:"collection"`
	TokenID        string `json:"token_id"`
	Amount         uint32 `json:"amount"`
	Lender         string `json:"lender"`
	Renter         string `json:"renter"`
	ExpirationDate int64  `json:"expiration_date"`
}

func PayloadFromAgreement(a escrow.Agreement) ReclaimPayload {
	return ReclaimPayload{
		Collection:     a.Collection.Hex(),
		TokenID:        a.TokenID.String(),
		Amount:         a.Amount,
		Lender:         a.Lender.Hex(),
		Renter:         a.Renter.Hex(),
		ExpirationDate: a.ExpirationDate,
	}
}

func (p ReclaimPayload) agreement() (escrow.Agreement, error) {
	id, ok := new(big.Int).SetString(p.TokenID, 10)
	if !ok {
		return escrow.Agreement{}, fmt.Errorf("invalid token id %q", p.TokenID)
	}
	for _, addr := range []string{p.Collection, p.Lender, p.Renter} {
		if !common.IsHexAddress(addr) {
			return escrow.Agreement{}, fmt.Errorf("invalid address %q", addr)
		}
	}
	return escrow.Agreement{
		Collection:     common.HexToAddress(p.Collection),
		TokenID:        id,
		Amount:         p.Amount,
		Lender:         common.HexToAddress(p.Lender),
		Renter:         common.HexToAddress(p.Renter),
		ExpirationDate: p.ExpirationDate,
	}, nil
}

// ReclaimTaskID 同一租赁只排一个任务
func ReclaimTaskID(p ReclaimPayload) string {
	return fmt.Sprintf("reclaim:%s:%s:%s:%d", p.Collection, p.TokenID, p.Renter, p.ExpirationDate)
}

// ---------------------------------------------------------------------
// 1. Producer (Client) Code
// ---------------------------------------------------------------------

// NewReclaimTask 在到期时刻执行，最多重试 10 次
func NewReclaimTask(p ReclaimPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRentalReclaim, payload,
		asynq.Queue(QueueSettlement),
		asynq.MaxRetry(10),
		asynq.Timeout(time.Minute),
		asynq.TaskID(ReclaimTaskID(p)),
		asynq.ProcessAt(time.Unix(p.ExpirationDate, 0)),
	), nil
}

// ---------------------------------------------------------------------
// 2. Consumer (Server) Code
// ---------------------------------------------------------------------

// Reclaimer 执行单个租赁的回收
type Reclaimer interface {
	ReclaimExpired(ctx context.Context, trigger string, a escrow.Agreement) (*marketplace.Receipt, error)
}

// ReclaimHandler 处理到期回收任务
type ReclaimHandler struct {
	reclaimer Reclaimer
}

func NewReclaimHandler(r Reclaimer) *ReclaimHandler {
	return &ReclaimHandler{reclaimer: r}
}

func (h *ReclaimHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReclaimPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	a, err := p.agreement()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	_, err = h.reclaimer.ReclaimExpired(ctx, marketplace.TriggerWorker, a)
	switch {
	case err == nil:
		logger.Info("到期租赁已回收", zap.String("task", ReclaimTaskID(p)))
		return nil
	case errors.Is(err, errno.ErrAlreadySettled), errors.Is(err, errno.ErrNoSuchRental):
		// 已被 API 或清扫任务回收
		logger.Debug("租赁已结算，跳过", zap.String("task", ReclaimTaskID(p)))
		return nil
	case errors.Is(err, errno.ErrRentalNotExpired), errors.Is(err, errno.ErrLockBusy):
		return err
	}

	switch errno.CategoryOf(err) {
	case errno.CategoryValidation, errno.CategoryAuthorization, errno.CategoryStateConflict:
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}
