package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WalletReader returns the authoritative wallet from the server.
type WalletReader interface {
	ReadWallet(ctx context.Context) (*WalletSnapshot, error)
}

// WalletObserver receives every published snapshot.
type WalletObserver interface {
	OnWalletSnapshot(WalletSnapshot)
}

// ObserverFunc adapts a function to WalletObserver.
type ObserverFunc func(WalletSnapshot)

func (f ObserverFunc) OnWalletSnapshot(s WalletSnapshot) { f(s) }

// WalletSyncer is notified once per confirmed session.
type WalletSyncer interface {
	OnConfirmed(ctx context.Context, intent *Intent, hint *WalletSnapshot)
}

const DefaultRecentTransactions = 10

// WalletCache holds the last known snapshot. Readers see either the old or
// the new snapshot, never a mix.
type WalletCache struct {
	v     atomic.Pointer[WalletSnapshot]
	limit int
}

func NewWalletCache(limit int) *WalletCache {
	if limit <= 0 {
		limit = DefaultRecentTransactions
	}
	return &WalletCache{limit: limit}
}

// Load returns the cached snapshot and whether one was ever stored.
func (c *WalletCache) Load() (WalletSnapshot, bool) {
	p := c.v.Load()
	if p == nil {
		return WalletSnapshot{}, false
	}
	return *p, true
}

// Replace swaps in a bounded copy of s and returns what was stored.
func (c *WalletCache) Replace(s WalletSnapshot) WalletSnapshot {
	n := len(s.RecentTransactions)
	if n > c.limit {
		n = c.limit
	}
	txs := make([]WalletTransaction, n)
	copy(txs, s.RecentTransactions[:n])
	s.RecentTransactions = txs
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now()
	}
	c.v.Store(&s)
	return s
}

// WalletSync refreshes the cache after a confirmed payment and fans the
// snapshot out to subscribers.
type WalletSync struct {
	reader WalletReader
	cache  *WalletCache
	log    *slog.Logger

	mu        sync.RWMutex
	nextID    uint64
	observers map[uint64]WalletObserver
}

func NewWalletSync(reader WalletReader, cache *WalletCache, log *slog.Logger) *WalletSync {
	if cache == nil {
		cache = NewWalletCache(DefaultRecentTransactions)
	}
	if log == nil {
		log = slog.Default()
	}
	return &WalletSync{
		reader:    reader,
		cache:     cache,
		log:       log,
		observers: make(map[uint64]WalletObserver),
	}
}

func (w *WalletSync) Cache() *WalletCache { return w.cache }

// Subscribe registers o and returns a function that removes it again.
func (w *WalletSync) Subscribe(o WalletObserver) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.observers[id] = o
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.observers, id)
		w.mu.Unlock()
	}
}

// OnConfirmed reads the wallet from the server and publishes it. The
// status-response hint is only used when the fresh read fails.
func (w *WalletSync) OnConfirmed(ctx context.Context, intent *Intent, hint *WalletSnapshot) {
	snap, err := w.reader.ReadWallet(ctx)
	source := "server"
	if err != nil {
		if hint == nil {
			walletSyncTotal.WithLabelValues("failed").Inc()
			w.log.ErrorContext(ctx, "wallet refresh failed, keeping cached balance", "intent_id", intent.ID, "error", err)
			return
		}
		w.log.WarnContext(ctx, "wallet refresh failed, using status hint", "intent_id", intent.ID, "error", err)
		snap, source = hint, "hint"
	}
	walletSyncTotal.WithLabelValues(source).Inc()

	stored := w.cache.Replace(*snap)
	w.log.InfoContext(ctx, "wallet synced", "intent_id", intent.ID, "balance", stored.Balance, "source", source)
	w.publish(stored)
}

func (w *WalletSync) publish(s WalletSnapshot) {
	w.mu.RLock()
	observers := make([]WalletObserver, 0, len(w.observers))
	for _, o := range w.observers {
		observers = append(observers, o)
	}
	w.mu.RUnlock()

	for _, o := range observers {
		o.OnWalletSnapshot(s)
	}
}
