package domain

import (
	"time"

	"github.com/google/uuid"
)

// IntentStatus is the server-side lifecycle of a payment intent.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSuccess   IntentStatus = "success"
	IntentFailed    IntentStatus = "failed"
	IntentCancelled IntentStatus = "cancelled"
)

// Terminal reports whether the intent can no longer change.
func (s IntentStatus) Terminal() bool {
	return s == IntentSuccess || s == IntentFailed || s == IntentCancelled
}

// Wallet represents a user's stored balance.
type Wallet struct {
	ID        int64     `json:"id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentIntent is a pending top-up waiting for the bank transfer that
// carries its reference code.
type PaymentIntent struct {
	ID            uuid.UUID    `json:"id"`
	WalletID      int64        `json:"wallet_id"`
	ReferenceCode string       `json:"reference_code"`
	Amount        int64        `json:"amount"`
	Method        string       `json:"method"`
	Bank          string       `json:"bank"`
	Status        IntentStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	ConfirmedAt   *time.Time   `json:"confirmed_at,omitempty"`
}

// WalletEntry is one credit or debit of a wallet.
// Balance always equals the sum of a wallet's entry deltas.
type WalletEntry struct {
	ID            int64      `json:"id"`
	WalletID      int64      `json:"wallet_id"`
	IntentID      *uuid.UUID `json:"intent_id,omitempty"`
	Delta         int64      `json:"delta"`
	Kind          string     `json:"kind"`
	ReferenceCode string     `json:"reference_code,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Channel is a method/bank pair the service accepts.
type Channel struct {
	Method      string
	Bank        string
	DisplayName string
}

// PayeeAccount is the account bank transfers are sent to.
type PayeeAccount struct {
	AccountNumber string
	AccountName   string
}
