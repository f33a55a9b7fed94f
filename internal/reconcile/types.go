package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Status is the server-side status of a payment intent as reported by the
// transaction service. The client only ever observes it.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusCanceled  Status = "canceled"
)

// Intent is a server-tracked pending payment request awaiting off-band
// confirmation.
type Intent struct {
	ID            string
	ReferenceCode string
	Amount        int64
	Method        string
	Bank          string
	Status        Status
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

// IntentRequest is what a caller asks the factory to create.
type IntentRequest struct {
	Amount        int64
	Method        string
	Bank          string
	ReferenceCode string // optional, server generates one when empty
}

const maxReferenceCodeLen = 32

// Validate rejects requests the server would refuse anyway, so no network
// call is spent on them.
func (r IntentRequest) Validate() error {
	if r.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(r.Method) == "" {
		return &ValidationError{Field: "method", Reason: "is required"}
	}
	if strings.TrimSpace(r.Bank) == "" {
		return &ValidationError{Field: "bank", Reason: "is required"}
	}
	if r.ReferenceCode != "" {
		if len(r.ReferenceCode) > maxReferenceCodeLen {
			return &ValidationError{Field: "referenceCode", Reason: fmt.Sprintf("longer than %d characters", maxReferenceCodeLen)}
		}
		for _, c := range r.ReferenceCode {
			if !isAlnum(c) {
				return &ValidationError{Field: "referenceCode", Reason: "must be alphanumeric"}
			}
		}
	}
	return nil
}

func isAlnum(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Instrument is the renderable payment instrument for an intent.
type Instrument struct {
	QRPayload     string
	Bank          string
	AccountNumber string
	AccountName   string
	TransferNote  string
	Amount        int64
}

// StatusReport is one answer of the status endpoint.
type StatusReport struct {
	IntentID    string
	Status      Status
	Amount      int64
	ConfirmedAt *time.Time
	// Wallet is an optional fast-path hint sent along with the status.
	Wallet *WalletSnapshot
}

// WalletTransaction is a single movement shown in the wallet history.
type WalletTransaction struct {
	ID            string
	Amount        int64
	Kind          string
	ReferenceCode string
	CreatedAt     time.Time
}

// WalletSnapshot is the client's cached view of the wallet.
type WalletSnapshot struct {
	Balance            int64
	RecentTransactions []WalletTransaction
	FetchedAt          time.Time
}

// State is the reconciliation state of a session.
type State int

const (
	StateIdle State = iota
	StateCreated
	StatePolling
	StateConfirmed
	StateDeclined
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreated:
		return "created"
	case StatePolling:
		return "polling"
	case StateConfirmed:
		return "confirmed"
	case StateDeclined:
		return "declined"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateDeclined, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// classify maps a reported status onto the next session state.
// Unknown statuses keep the session polling.
func classify(s Status) (State, bool) {
	switch Status(strings.ToLower(string(s))) {
	case StatusPending:
		return StatePolling, true
	case StatusSuccess, StatusCompleted:
		return StateConfirmed, true
	case StatusFailed, StatusCancelled, StatusCanceled:
		return StateDeclined, true
	default:
		return StatePolling, false
	}
}

// Result is the single terminal notification a session delivers.
type Result struct {
	SessionID     string
	IntentID      string
	ReferenceCode string
	// State is one of StateConfirmed, StateDeclined or StateTimedOut.
	State  State
	Amount int64
	Checks int
	At     time.Time
	// Err is a *TimeoutError for StateTimedOut and nil otherwise.
	Err error
}
