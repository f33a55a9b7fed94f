package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/punchamoorthee/qrtopup/internal/reconcile"
	"github.com/stretchr/testify/require"
)

// manualScheduler fires timers only when the test says so.
type manualScheduler struct {
	mu      sync.Mutex
	repeats []*manualHandle
	afters  []*manualHandle
}

type manualHandle struct {
	fn        func()
	cancelled atomic.Bool
}

func (h *manualHandle) Cancel() { h.cancelled.Store(true) }

func (s *manualScheduler) Every(_ time.Duration, fn func()) reconcile.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &manualHandle{fn: fn}
	s.repeats = append(s.repeats, h)
	return h
}

func (s *manualScheduler) After(_ time.Duration, fn func()) reconcile.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &manualHandle{fn: fn}
	s.afters = append(s.afters, h)
	return h
}

// Tick fires every armed repeat timer once and reports how many fired.
func (s *manualScheduler) Tick() int {
	return fire(s.snapshot(&s.repeats))
}

// Expire fires every armed deadline timer.
func (s *manualScheduler) Expire() int {
	return fire(s.snapshot(&s.afters))
}

func (s *manualScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range append(append([]*manualHandle{}, s.repeats...), s.afters...) {
		if !h.cancelled.Load() {
			n++
		}
	}
	return n
}

func (s *manualScheduler) snapshot(hs *[]*manualHandle) []*manualHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualHandle{}, (*hs)...)
}

func fire(hs []*manualHandle) int {
	n := 0
	for _, h := range hs {
		if h.cancelled.Load() {
			continue
		}
		h.fn()
		n++
	}
	return n
}

type reply struct {
	status reconcile.Status
	amount int64
	err    error
	wallet *reconcile.WalletSnapshot
}

// fakeGateway answers status checks from a script; once the script runs out
// it keeps answering pending. When gate is set every check blocks until the
// test sends on it.
type fakeGateway struct {
	mu        sync.Mutex
	script    []reply
	checks    int
	creates   int
	createErr error
	instErr   error
	nextID    int
	gate      chan struct{}
	issued    chan struct{}
}

func newFakeGateway(script ...reply) *fakeGateway {
	return &fakeGateway{script: script, issued: make(chan struct{}, 128)}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req reconcile.IntentRequest) (*reconcile.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.nextID++
	ref := req.ReferenceCode
	if ref == "" {
		ref = fmt.Sprintf("TOPUP%04d", g.nextID)
	}
	return &reconcile.Intent{
		ID:            fmt.Sprintf("intent-%d", g.nextID),
		ReferenceCode: ref,
		Amount:        req.Amount,
		Method:        req.Method,
		Bank:          req.Bank,
		Status:        reconcile.StatusPending,
		CreatedAt:     time.Now(),
	}, nil
}

func (g *fakeGateway) ResolveInstrument(_ context.Context, intentID string) (*reconcile.Instrument, error) {
	if g.instErr != nil {
		return nil, g.instErr
	}
	return &reconcile.Instrument{QRPayload: "QR|" + intentID, Bank: "mb"}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, intentID string) (*reconcile.StatusReport, error) {
	g.mu.Lock()
	g.checks++
	var r reply
	if len(g.script) > 0 {
		r, g.script = g.script[0], g.script[1:]
	} else {
		r = reply{status: reconcile.StatusPending}
	}
	gate := g.gate
	g.mu.Unlock()

	select {
	case g.issued <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &reconcile.StatusReport{IntentID: intentID, Status: r.status, Amount: r.amount, Wallet: r.wallet}, nil
}

func (g *fakeGateway) Checks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}

func (g *fakeGateway) Creates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []reconcile.Result
}

func (n *recordingNotifier) Notify(r reconcile.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
}

func (n *recordingNotifier) Results() []reconcile.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]reconcile.Result{}, n.results...)
}

type recordingWallet struct {
	mu    sync.Mutex
	calls []string
	hints []*reconcile.WalletSnapshot
}

func (w *recordingWallet) OnConfirmed(_ context.Context, intent *reconcile.Intent, hint *reconcile.WalletSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, intent.ID)
	w.hints = append(w.hints, hint)
}

func (w *recordingWallet) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

var errTransport = errors.New("connection reset by peer")

// requireSettled waits until the session has processed every response it
// is waiting for and issued the given number of checks.
func requireSettled(t *testing.T, s *reconcile.Session, checks int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return !snap.InFlight && snap.Checks == checks
	}, time.Second, time.Millisecond)
}

func requireDone(t *testing.T, s *reconcile.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("session %s did not finish, state %s", s.ID(), s.State())
	}
}

func testIntent(amount int64) reconcile.Intent {
	return reconcile.Intent{
		ID:            "intent-1",
		ReferenceCode: "TOPUP1A2B3C4D",
		Amount:        amount,
		Method:        "bank_transfer",
		Bank:          "mb",
		Status:        reconcile.StatusPending,
	}
}
