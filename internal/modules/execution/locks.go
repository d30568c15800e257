package execution

import (
	"context"
	"fmt"
	"sync"
)

// walletLocks serializes sessions per wallet: at most one live session per
// wallet, and a second session waits for the in-flight one to release.
// Independent wallets proceed in parallel.
type walletLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newWalletLocks() *walletLocks {
	return &walletLocks{slots: make(map[string]chan struct{})}
}

// acquire blocks until the wallet's lock is free or the context ends,
// returning a release func on success.
func (w *walletLocks) acquire(ctx context.Context, wallet string) (release func(), err error) {
	w.mu.Lock()
	slot, ok := w.slots[wallet]
	if !ok {
		slot = make(chan struct{}, 1)
		w.slots[wallet] = slot
	}
	w.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for wallet %s session lock: %w", wallet, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
