package reconcile

import (
	"context"
	"fmt"
	"log/slog"
)

// IntentCreator is the create-intent endpoint of the transaction service.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// InstrumentFetcher returns the payment instrument of an existing intent.
type InstrumentFetcher interface {
	ResolveInstrument(ctx context.Context, intentID string) (*Instrument, error)
}

// IntentFactory creates pending intents. It validates locally, never
// retries and never starts polling.
type IntentFactory struct {
	creator IntentCreator
	log     *slog.Logger
}

func NewIntentFactory(creator IntentCreator, log *slog.Logger) *IntentFactory {
	if log == nil {
		log = slog.Default()
	}
	return &IntentFactory{creator: creator, log: log}
}

// CreateIntent returns a pending intent with a non-empty reference code.
func (f *IntentFactory) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	intent, err := f.creator.CreateIntent(ctx, req)
	if err != nil {
		f.log.WarnContext(ctx, "create intent failed", "amount", req.Amount, "bank", req.Bank, "error", err)
		return nil, err
	}

	switch {
	case intent == nil || intent.ID == "":
		return nil, &ServerError{Message: "create intent returned no transaction id"}
	case intent.ReferenceCode == "":
		return nil, &ServerError{Message: fmt.Sprintf("intent %s has no reference code", intent.ID)}
	case req.ReferenceCode != "" && intent.ReferenceCode != req.ReferenceCode:
		return nil, &ServerError{Message: fmt.Sprintf("intent %s echoed reference code %q, sent %q", intent.ID, intent.ReferenceCode, req.ReferenceCode)}
	}

	if intent.Status == "" {
		intent.Status = StatusPending
	}
	if intent.Status != StatusPending {
		return nil, &ServerError{Message: fmt.Sprintf("new intent %s has status %q", intent.ID, intent.Status)}
	}
	if intent.Amount == 0 {
		intent.Amount = req.Amount
	}
	if intent.Method == "" {
		intent.Method = req.Method
	}
	if intent.Bank == "" {
		intent.Bank = req.Bank
	}

	f.log.InfoContext(ctx, "payment intent created", "intent_id", intent.ID, "reference_code", intent.ReferenceCode, "amount", intent.Amount)
	return intent, nil
}

// InstrumentResolver fetches the QR instrument for an intent.
type InstrumentResolver struct {
	fetcher InstrumentFetcher
}

func NewInstrumentResolver(fetcher InstrumentFetcher) *InstrumentResolver {
	return &InstrumentResolver{fetcher: fetcher}
}

func (r *InstrumentResolver) Resolve(ctx context.Context, intent *Intent) (*Instrument, error) {
	inst, err := r.fetcher.ResolveInstrument(ctx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve instrument for %s: %w", intent.ID, err)
	}
	if inst == nil || inst.QRPayload == "" {
		return nil, &ServerError{Message: fmt.Sprintf("instrument for %s has no QR payload", intent.ID)}
	}
	if inst.TransferNote == "" {
		inst.TransferNote = intent.ReferenceCode
	}
	return inst, nil
}
