package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"marketplace-core/pkg/errno"
)

type balanceKey struct {
	collection common.Address
	id         string
	holder     common.Address
}

type tokenKey struct {
	collection common.Address
	id         string
}

// MemoryTokenLedger 进程内代币账本
type MemoryTokenLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	uris     map[tokenKey]string
}

func NewMemoryTokenLedger() *MemoryTokenLedger {
	return &MemoryTokenLedger{
		balances: make(map[balanceKey]uint64),
		uris:     make(map[tokenKey]string),
	}
}

func bkey(collection, holder common.Address, id *big.Int) balanceKey {
	return balanceKey{collection: collection, id: id.String(), holder: holder}
}

func (l *MemoryTokenLedger) Mint(_ context.Context, collection, to common.Address, id *big.Int, amount uint64, uri string) error {
	if amount == 0 {
		return errno.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[bkey(collection, to, id)] += amount
	tk := tokenKey{collection: collection, id: id.String()}
	if _, ok := l.uris[tk]; !ok && uri != "" {
		l.uris[tk] = uri
	}
	return nil
}

func (l *MemoryTokenLedger) Transfer(_ context.Context, collection, from, to common.Address, id *big.Int, amount uint64) error {
	if amount == 0 {
		return errno.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fk := bkey(collection, from, id)
	if l.balances[fk] < amount {
		return errno.ErrInsufficientBalance.WithMessage(fmt.Sprintf("%s holds %d of token %s, needs %d", from.Hex(), l.balances[fk], id, amount))
	}
	l.balances[fk] -= amount
	l.balances[bkey(collection, to, id)] += amount
	return nil
}

func (l *MemoryTokenLedger) Burn(_ context.Context, collection, from common.Address, id *big.Int, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fk := bkey(collection, from, id)
	if l.balances[fk] < amount {
		return errno.ErrInsufficientBalance.WithMessage(fmt.Sprintf("cannot burn %d of token %s", amount, id))
	}
	l.balances[fk] -= amount
	return nil
}

func (l *MemoryTokenLedger) BalanceOf(_ context.Context, collection, holder common.Address, id *big.Int) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[bkey(collection, holder, id)], nil
}

// URI 首次铸造时记录的元数据地址
func (l *MemoryTokenLedger) URI(collection common.Address, id *big.Int) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.uris[tokenKey{collection: collection, id: id.String()}]
}

// MemoryPaymentAsset 进程内 ERC-20 风格账本
type MemoryPaymentAsset struct {
	mu         sync.RWMutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func NewMemoryPaymentAsset() *MemoryPaymentAsset {
	return &MemoryPaymentAsset{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Credit 凭空增加余额 (测试和开发环境注资)
func (a *MemoryPaymentAsset) Credit(holder common.Address, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[holder] = new(big.Int).Add(a.balanceLocked(holder), amount)
}

func (a *MemoryPaymentAsset) Approve(owner, spender common.Address, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allowances[owner] == nil {
		a.allowances[owner] = make(map[common.Address]*big.Int)
	}
	a.allowances[owner][spender] = new(big.Int).Set(amount)
}

func (a *MemoryPaymentAsset) balanceLocked(holder common.Address) *big.Int {
	if b, ok := a.balances[holder]; ok {
		return b
	}
	return new(big.Int)
}

func (a *MemoryPaymentAsset) allowanceLocked(owner, spender common.Address) *big.Int {
	if m, ok := a.allowances[owner]; ok {
		if v, ok := m[spender]; ok {
			return v
		}
	}
	return new(big.Int)
}

func (a *MemoryPaymentAsset) TransferFrom(_ context.Context, spender, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errno.ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	allowance := a.allowanceLocked(from, spender)
	if allowance.Cmp(amount) < 0 {
		return errno.ErrInsufficientPayment.WithMessage(fmt.Sprintf("allowance %s < %s", allowance, amount))
	}
	if err := a.moveLocked(from, to, amount); err != nil {
		return err
	}
	if a.allowances[from] == nil {
		a.allowances[from] = make(map[common.Address]*big.Int)
	}
	a.allowances[from][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

func (a *MemoryPaymentAsset) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errno.ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moveLocked(from, to, amount)
}

func (a *MemoryPaymentAsset) moveLocked(from, to common.Address, amount *big.Int) error {
	balance := a.balanceLocked(from)
	if balance.Cmp(amount) < 0 {
		return errno.ErrInsufficientPayment.WithMessage(fmt.Sprintf("balance %s < %s", balance, amount))
	}
	a.balances[from] = new(big.Int).Sub(balance, amount)
	a.balances[to] = new(big.Int).Add(a.balanceLocked(to), amount)
	return nil
}

func (a *MemoryPaymentAsset) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.allowanceLocked(owner, spender)), nil
}

func (a *MemoryPaymentAsset) BalanceOf(_ context.Context, holder common.Address) (*big.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.balanceLocked(holder)), nil
}

// MemoryPaymentRegistry 地址 -> 支付资产
type MemoryPaymentRegistry struct {
	mu     sync.RWMutex
	assets map[common.Address]PaymentAsset
}

func NewMemoryPaymentRegistry() *MemoryPaymentRegistry {
	return &MemoryPaymentRegistry{assets: make(map[common.Address]PaymentAsset)}
}

func (r *MemoryPaymentRegistry) Register(address common.Address, asset PaymentAsset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[address] = asset
}

func (r *MemoryPaymentRegistry) Asset(address common.Address) (PaymentAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[address]
	if !ok {
		return nil, errno.ErrUnknownPaymentAsset.WithMessage(address.Hex())
	}
	return asset, nil
}

// MemoryStaking 进程内质押余额
type MemoryStaking struct {
	mu     sync.RWMutex
	stakes map[common.Address]*big.Int
}

func NewMemoryStaking() *MemoryStaking {
	return &MemoryStaking{stakes: make(map[common.Address]*big.Int)}
}

func (s *MemoryStaking) Set(account common.Address, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stakes[account] = new(big.Int).Set(amount)
}

func (s *MemoryStaking) StakedBalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.stakes[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// MemoryMinterRegistry 每个集合的铸造者白名单
type MemoryMinterRegistry struct {
	mu      sync.RWMutex
	minters map[common.Address]map[common.Address]struct{}
}

func NewMemoryMinterRegistry() *MemoryMinterRegistry {
	return &MemoryMinterRegistry{minters: make(map[common.Address]map[common.Address]struct{})}
}

func (r *MemoryMinterRegistry) Grant(collection, account common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.minters[collection] == nil {
		r.minters[collection] = make(map[common.Address]struct{})
	}
	r.minters[collection][account] = struct{}{}
}

func (r *MemoryMinterRegistry) Revoke(collection, account common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.minters[collection], account)
}

func (r *MemoryMinterRegistry) CanMint(_ context.Context, collection, account common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.minters[collection][account]
	return ok, nil
}
