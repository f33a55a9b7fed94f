package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Gateway is everything the engine needs from the transaction service.
type Gateway interface {
	IntentCreator
	InstrumentFetcher
	StatusChecker
}

// EngineConfig carries the engine's collaborators. Nothing is looked up
// from package state.
type EngineConfig struct {
	Gateway   Gateway
	Wallet    WalletSyncer    // optional
	Notifier  OutcomeNotifier // optional
	Scheduler Scheduler       // defaults to a TimerScheduler
	Interval  time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Engine runs the create → resolve → poll flow and keeps at most one
// session active. Hosts call Dispose when the payment view goes away.
type Engine struct {
	cfg      EngineConfig
	factory  *IntentFactory
	resolver *InstrumentResolver
	log      *slog.Logger

	mu       sync.Mutex
	gen      uint64
	current  *Session
	disposed bool
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("engine requires a gateway")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Interval >= cfg.Timeout {
		return nil, errors.New("poll interval must be shorter than the timeout")
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		cfg:      cfg,
		factory:  NewIntentFactory(cfg.Gateway, cfg.Logger),
		resolver: NewInstrumentResolver(cfg.Gateway),
		log:      cfg.Logger,
	}, nil
}

// Start cancels any active session, creates a new intent, resolves its
// instrument and begins polling. Creation errors are returned as is and no
// session exists afterwards. A failed instrument lookup does not stop
// polling; it is recorded on the session instead.
//
// If Cancel, Dispose or another Start happens while the intent is being
// created, the new session is cancelled and ErrSuperseded is returned.
func (e *Engine) Start(ctx context.Context, req IntentRequest) (*Session, error) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, ErrDisposed
	}
	e.cancelCurrentLocked()
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	intent, err := e.factory.CreateIntent(ctx, req)
	if err != nil {
		return nil, err
	}

	inst, instErr := e.resolver.Resolve(ctx, intent)
	if instErr != nil {
		e.log.WarnContext(ctx, "instrument unavailable, polling anyway", "intent_id", intent.ID, "error", instErr)
	}

	s := NewSession(*intent, SessionConfig{
		Checker:   e.cfg.Gateway,
		Scheduler: e.cfg.Scheduler,
		Wallet:    e.cfg.Wallet,
		Notifier:  e.cfg.Notifier,
		Interval:  e.cfg.Interval,
		Timeout:   e.cfg.Timeout,
		Logger:    e.log,
	})
	s.Instrument = inst
	s.InstrumentErr = instErr

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || gen != e.gen {
		s.Cancel()
		return nil, ErrSuperseded
	}
	e.current = s
	s.Start(ctx)
	return s, nil
}

// Current returns the most recently started session, if any.
func (e *Engine) Current() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Cancel tears down the active session, e.g. when the user leaves the
// payment view.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.cancelCurrentLocked()
}

// Dispose cancels the active session and refuses further starts.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposed = true
	e.gen++
	e.cancelCurrentLocked()
}

func (e *Engine) cancelCurrentLocked() {
	if e.current == nil {
		return
	}
	e.current.Cancel()
	e.current = nil
}
