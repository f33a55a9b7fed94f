package models

import (
	"encoding/json"
	"time"
)

// WalletHeader names the wallet an intent is credited to. It stands in for
// the authenticated user's session.
const WalletHeader = "X-Wallet-ID"

// SignatureHeader carries the hex HMAC-SHA256 of a bank webhook body.
const SignatureHeader = "X-Signature"

// CreateIntentRequest is the payload from the client.
type CreateIntentRequest struct {
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	Bank          string `json:"bank"`
	ReferenceCode string `json:"referenceCode,omitempty"`
}

// Transaction is the wire view of a payment intent.
type Transaction struct {
	ID            string     `json:"id"`
	ReferenceCode string     `json:"referenceCode,omitempty"`
	Amount        int64      `json:"amount"`
	Method        string     `json:"method,omitempty"`
	Bank          string     `json:"bank,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
}

// Instructions tell the payer where to send the transfer.
type Instructions struct {
	Bank          string `json:"bank"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	TransferNote  string `json:"transferNote"`
}

// CreateIntentResponse is the canonical response of intent creation.
type CreateIntentResponse struct {
	Transaction  Transaction   `json:"transaction"`
	Instructions *Instructions `json:"instructions,omitempty"`
}

// WalletTransaction is one wallet movement, most recent first in lists.
type WalletTransaction struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"`
	Kind          string    `json:"kind"`
	ReferenceCode string    `json:"referenceCode,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Wallet is the authoritative wallet read.
type Wallet struct {
	Balance            int64               `json:"balance"`
	RecentTransactions []WalletTransaction `json:"recentTransactions"`
}

// StatusResponse answers a status check. Wallet is only present once the
// intent succeeded.
type StatusResponse struct {
	Transaction Transaction `json:"transaction"`
	Wallet      *Wallet     `json:"wallet,omitempty"`
}

// Instrument is the renderable QR instrument of an intent.
type Instrument struct {
	QRPayload     string `json:"qrPayload"`
	Bank          string `json:"bank"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	TransferNote  string `json:"transferNote"`
	Amount        int64  `json:"amount"`
}

// Channel is an advertised payment channel.
type Channel struct {
	Method      string `json:"method"`
	Bank        string `json:"bank"`
	DisplayName string `json:"displayName,omitempty"`
}

// BankWebhook is the off-band confirmation sent by the bank integration.
type BankWebhook struct {
	EventID       string     `json:"eventId"`
	ReferenceCode string     `json:"referenceCode"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

// WebhookResult is what the webhook endpoint answers, and what is replayed
// for a duplicate event.
type WebhookResult struct {
	EventID  string `json:"eventId"`
	IntentID string `json:"intentId"`
	Status   string `json:"status"`
	Applied  bool   `json:"applied"`
}

// BankEventRecord holds the stored outcome of a webhook event id.
type BankEventRecord struct {
	EventID        string
	RequestHash    string
	Status         string
	ResponseBody   json.RawMessage
	ResponseStatus int
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
