package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/qrtopup/internal/reconcile"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	mu    sync.Mutex
	reads int
	snap  *reconcile.WalletSnapshot
	err   error
}

func (r *stubReader) ReadWallet(context.Context) (*reconcile.WalletSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	s := *r.snap
	return &s, nil
}

func TestWalletCacheReplace(t *testing.T) {
	c := reconcile.NewWalletCache(2)

	_, ok := c.Load()
	require.False(t, ok)

	txs := []reconcile.WalletTransaction{{ID: "3"}, {ID: "2"}, {ID: "1"}}
	stored := c.Replace(reconcile.WalletSnapshot{Balance: 900, RecentTransactions: txs})
	require.Len(t, stored.RecentTransactions, 2)
	require.Equal(t, "3", stored.RecentTransactions[0].ID)
	require.False(t, stored.FetchedAt.IsZero())

	// the cache keeps its own copy.
	txs[0].ID = "mutated"
	got, ok := c.Load()
	require.True(t, ok)
	require.Equal(t, int64(900), got.Balance)
	require.Equal(t, "3", got.RecentTransactions[0].ID)
}

func TestWalletSyncOnConfirmed(t *testing.T) {
	intent := testIntent(50000)

	t.Run("ok, fresh read is published to every observer", func(t *testing.T) {
		r := &stubReader{snap: &reconcile.WalletSnapshot{Balance: 150000, RecentTransactions: []reconcile.WalletTransaction{{ID: "e1", Amount: 50000}}}}
		ws := reconcile.NewWalletSync(r, nil, nil)

		var got1, got2 []reconcile.WalletSnapshot
		ws.Subscribe(reconcile.ObserverFunc(func(s reconcile.WalletSnapshot) { got1 = append(got1, s) }))
		ws.Subscribe(reconcile.ObserverFunc(func(s reconcile.WalletSnapshot) { got2 = append(got2, s) }))

		ws.OnConfirmed(t.Context(), &intent, &reconcile.WalletSnapshot{Balance: 1})

		require.Equal(t, 1, r.reads)
		require.Len(t, got1, 1)
		require.Len(t, got2, 1)
		require.Equal(t, int64(150000), got1[0].Balance)

		cached, ok := ws.Cache().Load()
		require.True(t, ok)
		require.Equal(t, int64(150000), cached.Balance)
	})

	t.Run("ok, hint used when read fails", func(t *testing.T) {
		r := &stubReader{err: errors.New("timeout")}
		ws := reconcile.NewWalletSync(r, nil, nil)

		var got []reconcile.WalletSnapshot
		ws.Subscribe(reconcile.ObserverFunc(func(s reconcile.WalletSnapshot) { got = append(got, s) }))

		ws.OnConfirmed(t.Context(), &intent, &reconcile.WalletSnapshot{Balance: 70000, FetchedAt: time.Unix(10, 0)})
		require.Len(t, got, 1)
		require.Equal(t, int64(70000), got[0].Balance)
	})

	t.Run("ok, cache untouched without read or hint", func(t *testing.T) {
		r := &stubReader{err: errors.New("timeout")}
		cache := reconcile.NewWalletCache(5)
		cache.Replace(reconcile.WalletSnapshot{Balance: 10})
		ws := reconcile.NewWalletSync(r, cache, nil)

		published := 0
		ws.Subscribe(reconcile.ObserverFunc(func(reconcile.WalletSnapshot) { published++ }))

		ws.OnConfirmed(t.Context(), &intent, nil)
		require.Zero(t, published)
		got, _ := cache.Load()
		require.Equal(t, int64(10), got.Balance)
	})

	t.Run("ok, unsubscribed observer gets nothing", func(t *testing.T) {
		r := &stubReader{snap: &reconcile.WalletSnapshot{Balance: 5}}
		ws := reconcile.NewWalletSync(r, nil, nil)

		published := 0
		unsubscribe := ws.Subscribe(reconcile.ObserverFunc(func(reconcile.WalletSnapshot) { published++ }))
		unsubscribe()

		ws.OnConfirmed(t.Context(), &intent, nil)
		require.Zero(t, published)
	})
}

func TestWalletSyncOnlyAfterConfirmed(t *testing.T) {
	for _, tc := range []struct {
		name   string
		script []reply
		expire bool
		reads  int
	}{
		{name: "confirmed", script: []reply{{status: reconcile.StatusSuccess}}, reads: 1},
		{name: "declined", script: []reply{{status: reconcile.StatusFailed}}, reads: 0},
		{name: "timed out", expire: true, reads: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := &stubReader{snap: &reconcile.WalletSnapshot{Balance: 1}}
			ws := reconcile.NewWalletSync(r, nil, nil)
			sched := &manualScheduler{}
			s := newTestSession(newFakeGateway(tc.script...), sched, ws, nil, 1000)

			s.Start(t.Context())
			requireSettled(t, s, 1)
			if tc.expire {
				sched.Expire()
			}
			requireDone(t, s)
			require.Equal(t, tc.reads, r.reads)
		})
	}
}
