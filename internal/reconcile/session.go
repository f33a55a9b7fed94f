package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultInterval = 1500 * time.Millisecond
	DefaultTimeout  = 5 * time.Minute
)

// StatusChecker is the check-status endpoint of the transaction service.
type StatusChecker interface {
	CheckStatus(ctx context.Context, intentID string) (*StatusReport, error)
}

// SessionConfig wires a session to its collaborators.
type SessionConfig struct {
	Checker   StatusChecker
	Scheduler Scheduler
	Wallet    WalletSyncer    // optional
	Notifier  OutcomeNotifier // optional
	Interval  time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
}

// SessionSnapshot is a point-in-time copy of a session's bookkeeping.
type SessionSnapshot struct {
	ID        string
	IntentID  string
	State     State
	Sequence  uint64
	Active    bool
	InFlight  bool
	Checks    int
	StartedAt time.Time
	Deadline  time.Time
}

// Session tracks the confirmation of one intent. It polls the status
// endpoint until a terminal status is observed, the deadline passes or the
// host cancels it.
//
// All state is guarded by mu and every timer callback and check response
// re-checks active and the sequence number under it, so a session behaves
// like a single event loop even though its callbacks run on timer
// goroutines.
type Session struct {
	id     string
	intent Intent
	cfg    SessionConfig
	log    *slog.Logger

	// InstrumentErr is set when the intent exists but its QR could not be
	// resolved. Polling still runs.
	Instrument    *Instrument
	InstrumentErr error

	mu        sync.Mutex
	state     State
	seq       uint64
	active    bool
	inFlight  bool
	checks    int
	startedAt time.Time
	deadline  time.Time
	repeat    Handle
	expiry    Handle
	parent    context.Context
	cancelCtx context.CancelFunc
	checkCtx  context.Context
	stopWatch func() bool
	result    *Result

	doneOnce sync.Once
	done     chan struct{}
}

// NewSession returns a session in StateCreated for intent.
func NewSession(intent Intent, cfg SessionConfig) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		intent: intent,
		cfg:    cfg,
		log: cfg.Logger.With(
			"session_id", id,
			"intent_id", intent.ID,
			"reference_code", intent.ReferenceCode,
		),
		state: StateCreated,
		done:  make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Intent() Intent { return s.intent }

// Done is closed once the session reached a terminal state and its
// notifications were delivered.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the delivered outcome, nil while polling or when the
// session was cancelled.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		ID:        s.id,
		IntentID:  s.intent.ID,
		State:     s.state,
		Sequence:  s.seq,
		Active:    s.active,
		InFlight:  s.inFlight,
		Checks:    s.checks,
		StartedAt: s.startedAt,
		Deadline:  s.deadline,
	}
}

// Start issues the first status check immediately and arms the repeat and
// deadline timers. Starting an active or finished session is a no-op.
// Cancelling ctx cancels the session.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active || s.state != StateCreated {
		return
	}

	s.active = true
	s.state = StatePolling
	s.startedAt = time.Now()
	s.deadline = s.startedAt.Add(s.cfg.Timeout)
	s.parent = ctx
	s.checkCtx, s.cancelCtx = context.WithCancel(ctx)
	s.expiry = s.cfg.Scheduler.After(s.cfg.Timeout, s.expire)
	s.repeat = s.cfg.Scheduler.Every(s.cfg.Interval, s.tick)
	s.stopWatch = context.AfterFunc(ctx, s.Cancel)
	activeSessions.Inc()

	s.log.Info("polling started", "interval", s.cfg.Interval, "deadline", s.deadline)
	s.issueLocked()
}

// Cancel tears the session down. Both timers are disarmed before Cancel
// returns; a response still in flight is discarded when it arrives.
// No outcome is delivered for a cancelled session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.active:
		s.active = false
		s.state = StateCancelled
		s.seq++
		s.disarmLocked()
		s.log.Info("polling cancelled", "checks", s.checks)
		s.closeDone()
	case s.state == StateCreated:
		s.state = StateCancelled
		s.closeDone()
	}
}

func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	if s.inFlight {
		skippedTicksTotal.Inc()
		s.log.Debug("status check still outstanding, skipping tick", "sequence", s.seq)
		return
	}
	s.issueLocked()
}

func (s *Session) issueLocked() {
	s.seq++
	s.checks++
	s.inFlight = true
	go s.check(s.checkCtx, s.seq)
}

func (s *Session) check(ctx context.Context, seq uint64) {
	start := time.Now()
	report, err := s.cfg.Checker.CheckStatus(ctx, s.intent.ID)
	statusCheckDuration.Observe(time.Since(start).Seconds())
	s.apply(seq, report, err)
}

func (s *Session) apply(seq uint64, report *StatusReport, err error) {
	s.mu.Lock()

	if !s.active || seq != s.seq {
		s.mu.Unlock()
		staleResponsesTotal.Inc()
		s.log.Debug("discarding stale status response", "sequence", seq)
		return
	}
	s.inFlight = false

	if err != nil {
		s.mu.Unlock()
		statusChecksTotal.WithLabelValues("error").Inc()
		s.log.Warn("status check failed, retrying on next tick", "sequence", seq, "error", err)
		return
	}
	if report == nil {
		s.mu.Unlock()
		statusChecksTotal.WithLabelValues("error").Inc()
		s.log.Warn("status check returned no transaction", "sequence", seq)
		return
	}

	next, known := classify(report.Status)
	if !known {
		s.log.Warn("unknown payment status, still polling", "status", report.Status)
	}
	if next == StatePolling {
		s.mu.Unlock()
		statusChecksTotal.WithLabelValues("pending").Inc()
		return
	}
	statusChecksTotal.WithLabelValues(next.String()).Inc()

	amount := report.Amount
	if amount == 0 {
		amount = s.intent.Amount
	}
	res := s.finishLocked(next, amount, nil)
	ctx := context.WithoutCancel(s.parent)
	s.mu.Unlock()

	s.deliver(ctx, res, report.Wallet)
}

func (s *Session) expire() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	res := s.finishLocked(StateTimedOut, s.intent.Amount, &TimeoutError{IntentID: s.intent.ID, Window: s.cfg.Timeout})
	ctx := context.WithoutCancel(s.parent)
	s.mu.Unlock()

	s.deliver(ctx, res, nil)
}

// finishLocked moves an active session into a terminal state and disarms
// it. The caller delivers the returned result after releasing mu.
func (s *Session) finishLocked(state State, amount int64, err error) Result {
	s.active = false
	s.inFlight = false
	s.state = state
	s.disarmLocked()

	res := Result{
		SessionID:     s.id,
		IntentID:      s.intent.ID,
		ReferenceCode: s.intent.ReferenceCode,
		State:         state,
		Amount:        amount,
		Checks:        s.checks,
		At:            time.Now(),
		Err:           err,
	}
	s.result = &res
	return res
}

func (s *Session) disarmLocked() {
	if s.repeat != nil {
		s.repeat.Cancel()
	}
	if s.expiry != nil {
		s.expiry.Cancel()
	}
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	activeSessions.Dec()
}

func (s *Session) deliver(ctx context.Context, res Result, hint *WalletSnapshot) {
	defer s.closeDone()

	outcomesTotal.WithLabelValues(res.State.String()).Inc()
	s.log.Info("polling finished", "state", res.State, "amount", res.Amount, "checks", res.Checks)

	if res.State == StateConfirmed && s.cfg.Wallet != nil {
		intent := s.intent
		s.cfg.Wallet.OnConfirmed(ctx, &intent, hint)
	}
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(res)
	}
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
