package reconcile_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/punchamoorthee/qrtopup/internal/reconcile"
	"github.com/stretchr/testify/require"
)

func TestTimerSchedulerEvery(t *testing.T) {
	s := reconcile.NewTimerScheduler()

	var fired atomic.Int32
	h := s.Every(2*time.Millisecond, func() { fired.Add(1) })
	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, time.Millisecond)

	h.Cancel()
	h.Cancel()
	// a callback may already be running when Cancel returns, give it a moment.
	time.Sleep(5 * time.Millisecond)
	n := fired.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, n, fired.Load())
}

func TestTimerSchedulerAfter(t *testing.T) {
	t.Run("ok, fires once", func(t *testing.T) {
		s := reconcile.NewTimerScheduler()
		done := make(chan struct{})
		s.After(2*time.Millisecond, func() { close(done) })

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("deadline timer did not fire")
		}
	})

	t.Run("ok, cancelled timer never fires", func(t *testing.T) {
		s := reconcile.NewTimerScheduler()
		var fired atomic.Bool
		h := s.After(10*time.Millisecond, func() { fired.Store(true) })
		h.Cancel()

		time.Sleep(30 * time.Millisecond)
		require.False(t, fired.Load())
	})
}
