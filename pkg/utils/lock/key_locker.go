package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-core/pkg/errno"
)

// KeyLocker 按 key 加锁。多个 key 按字典序获取，避免交叉死锁。
type KeyLocker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

func normalize(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i == 0 || k != out[n-1] {
			out[n] = k
			n++
		}
	}
	return out[:n]
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

// MemoryKeyLocker 进程内 key 锁，阻塞等待直到获取或 ctx 结束
type MemoryKeyLocker struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{entries: make(map[string]*keyEntry)}
}

func (l *MemoryKeyLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))

	for _, k := range keys {
		l.mu.Lock()
		e, ok := l.entries[k]
		if !ok {
			e = &keyEntry{ch: make(chan struct{}, 1)}
			l.entries[k] = e
		}
		e.refs++
		l.mu.Unlock()

		select {
		case e.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.drop(k, false)
			l.release(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *MemoryKeyLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.drop(keys[i], true)
	}
}

func (l *MemoryKeyLocker) drop(key string, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	if held {
		<-e.ch
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// DistributedKeyLocker 基于 DistributedLock 的 key 锁，在 wait 时间内轮询获取
type DistributedKeyLocker struct {
	lock DistributedLock
	ttl  time.Duration
	wait time.Duration
	poll time.Duration
}

func NewDistributedKeyLocker(lock DistributedLock, ttl, wait time.Duration) *DistributedKeyLocker {
	return &DistributedKeyLocker{lock: lock, ttl: ttl, wait: wait, poll: 20 * time.Millisecond}
}

func (l *DistributedKeyLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))

	unlock := func() {
		// 释放不应受调用方 ctx 取消影响
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			_ = l.lock.Release(releaseCtx, held[i])
		}
	}

	deadline := time.Now().Add(l.wait)
	for _, k := range keys {
		for {
			ok, err := l.lock.Acquire(ctx, k, l.ttl)
			if err != nil {
				unlock()
				return nil, err
			}
			if ok {
				held = append(held, k)
				break
			}
			if time.Now().After(deadline) {
				unlock()
				return nil, errno.ErrLockBusy.WithMessage(k)
			}
			select {
			case <-time.After(l.poll):
			case <-ctx.Done():
				unlock()
				return nil, ctx.Err()
			}
		}
	}

	var once sync.Once
	return func() { once.Do(unlock) }, nil
}
