package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/punchamoorthee/qrtopup/internal/models"
	"github.com/punchamoorthee/qrtopup/internal/reconcile"
)

// Client talks to the transaction service on behalf of one wallet.
type Client struct {
	http     *resty.Client
	walletID int64
}

func New(baseURL string, walletID int64, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader(models.WalletHeader, strconv.FormatInt(walletID, 10))
	return &Client{http: c, walletID: walletID}
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}, ref string) error {
	var apiErr models.ErrorResponse
	req := c.http.R().SetContext(ctx).SetResult(out).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &reconcile.NetworkError{Op: op, Err: err}
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return reconcile.ErrorForStatus(resp.StatusCode(), msg, ref)
	}
	return nil
}

// CreateIntent asks the service for a new pending intent.
func (c *Client) CreateIntent(ctx context.Context, req reconcile.IntentRequest) (*reconcile.Intent, error) {
	var out models.CreateIntentResponse
	body := models.CreateIntentRequest{
		Amount:        req.Amount,
		Method:        req.Method,
		Bank:          req.Bank,
		ReferenceCode: req.ReferenceCode,
	}
	if err := c.do(ctx, "create intent", http.MethodPost, "/api/v1/payments/intents", body, &out, req.ReferenceCode); err != nil {
		return nil, err
	}
	in := toIntent(out.Transaction)
	return &in, nil
}

func (c *Client) ResolveInstrument(ctx context.Context, intentID string) (*reconcile.Instrument, error) {
	var out models.Instrument
	if err := c.do(ctx, "resolve instrument", http.MethodGet, "/api/v1/payments/intents/"+intentID+"/instrument", nil, &out, ""); err != nil {
		return nil, err
	}
	return &reconcile.Instrument{
		QRPayload:     out.QRPayload,
		Bank:          out.Bank,
		AccountNumber: out.AccountNumber,
		AccountName:   out.AccountName,
		TransferNote:  out.TransferNote,
		Amount:        out.Amount,
	}, nil
}

// CheckStatus is one status poll.
func (c *Client) CheckStatus(ctx context.Context, intentID string) (*reconcile.StatusReport, error) {
	var out models.StatusResponse
	if err := c.do(ctx, "check status", http.MethodGet, "/api/v1/payments/intents/"+intentID+"/status", nil, &out, ""); err != nil {
		return nil, err
	}
	return toReport(out), nil
}

// StatusByReference is a status poll keyed by reference code.
func (c *Client) StatusByReference(ctx context.Context, ref string) (*reconcile.StatusReport, error) {
	var out models.StatusResponse
	err := c.do(ctx, "check status", http.MethodGet, "/api/v1/payments/status?referenceCode="+url.QueryEscape(ref), nil, &out, ref)
	if err != nil {
		return nil, err
	}
	return toReport(out), nil
}

// CancelIntent asks the service to stop accepting payment for the intent.
func (c *Client) CancelIntent(ctx context.Context, intentID string) error {
	var out models.StatusResponse
	return c.do(ctx, "cancel intent", http.MethodPost, "/api/v1/payments/intents/"+intentID+"/cancel", nil, &out, "")
}

func (c *Client) ReadWallet(ctx context.Context) (*reconcile.WalletSnapshot, error) {
	var out models.Wallet
	path := fmt.Sprintf("/api/v1/wallets/%d", c.walletID)
	if err := c.do(ctx, "read wallet", http.MethodGet, path, nil, &out, ""); err != nil {
		return nil, err
	}
	s := toSnapshot(out)
	return &s, nil
}

func (c *Client) Channels(ctx context.Context) ([]models.Channel, error) {
	var out struct {
		Channels []models.Channel `json:"channels"`
	}
	if err := c.do(ctx, "list channels", http.MethodGet, "/api/v1/payments/channels", nil, &out, ""); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

func toIntent(t models.Transaction) reconcile.Intent {
	in := reconcile.Intent{
		ID:            t.ID,
		ReferenceCode: t.ReferenceCode,
		Amount:        t.Amount,
		Method:        t.Method,
		Bank:          t.Bank,
		Status:        reconcile.Status(t.Status),
		ConfirmedAt:   t.ConfirmedAt,
	}
	if t.CreatedAt != nil {
		in.CreatedAt = *t.CreatedAt
	}
	return in
}

func toReport(r models.StatusResponse) *reconcile.StatusReport {
	rep := &reconcile.StatusReport{
		IntentID:    r.Transaction.ID,
		Status:      reconcile.Status(r.Transaction.Status),
		Amount:      r.Transaction.Amount,
		ConfirmedAt: r.Transaction.ConfirmedAt,
	}
	if r.Wallet != nil {
		s := toSnapshot(*r.Wallet)
		rep.Wallet = &s
	}
	return rep
}

func toSnapshot(w models.Wallet) reconcile.WalletSnapshot {
	s := reconcile.WalletSnapshot{
		Balance:            w.Balance,
		RecentTransactions: make([]reconcile.WalletTransaction, 0, len(w.RecentTransactions)),
	}
	for _, t := range w.RecentTransactions {
		s.RecentTransactions = append(s.RecentTransactions, reconcile.WalletTransaction{
			ID:            t.ID,
			Amount:        t.Amount,
			Kind:          t.Kind,
			ReferenceCode: t.ReferenceCode,
			CreatedAt:     t.CreatedAt,
		})
	}
	return s
}

var (
	_ reconcile.Gateway      = (*Client)(nil)
	_ reconcile.WalletReader = (*Client)(nil)
)
