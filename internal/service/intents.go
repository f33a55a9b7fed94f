package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/qrtopup/internal/domain"
	"github.com/punchamoorthee/qrtopup/internal/models"
	"github.com/punchamoorthee/qrtopup/internal/store"
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrUnsupportedChannel = errors.New("payment channel not supported")
	ErrInvalidReference   = errors.New("reference code must be 1-32 alphanumeric characters")
	ErrReferenceConflict  = errors.New("reference code already in use")
	ErrIntentNotFound     = errors.New("payment intent not found")
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrIntentNotPending   = errors.New("payment intent is no longer pending")
)

// RecentTransactions is how many wallet movements a wallet read returns.
const RecentTransactions = 10

const generatedAttempts = 3

// IntentStore is the persistence IntentService needs.
type IntentStore interface {
	CreateIntent(ctx context.Context, in *domain.PaymentIntent) error
	GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	GetIntentByReference(ctx context.Context, ref string) (*domain.PaymentIntent, error)
	CancelIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	GetWallet(ctx context.Context, id int64) (*domain.Wallet, error)
	GetWalletEntries(ctx context.Context, walletID int64, limit int) ([]domain.WalletEntry, error)
}

// IntentService creates payment intents and answers the reads the
// storefront polls.
type IntentService struct {
	store    IntentStore
	channels []domain.Channel
	payee    domain.PayeeAccount
	newRef   func() string
}

func NewIntentService(s IntentStore, channels []domain.Channel, payee domain.PayeeAccount) *IntentService {
	return &IntentService{store: s, channels: channels, payee: payee, newRef: GenerateReferenceCode}
}

// GenerateReferenceCode returns a short code a payer can type into a bank
// transfer note.
func GenerateReferenceCode() string {
	id := uuid.New()
	return fmt.Sprintf("TOPUP%X", id[:4])
}

func (s *IntentService) Channels() []models.Channel {
	out := make([]models.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, models.Channel{Method: c.Method, Bank: c.Bank, DisplayName: c.DisplayName})
	}
	return out
}

func (s *IntentService) supports(method, bank string) bool {
	for _, c := range s.channels {
		if strings.EqualFold(c.Method, method) && strings.EqualFold(c.Bank, bank) {
			return true
		}
	}
	return false
}

func validReference(ref string) bool {
	if len(ref) == 0 || len(ref) > 32 {
		return false
	}
	for _, c := range ref {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}

// Create stores a new pending intent for walletID. A caller-supplied
// reference code that is already taken yields ErrReferenceConflict;
// generated codes are retried.
func (s *IntentService) Create(ctx context.Context, walletID int64, req models.CreateIntentRequest) (*domain.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !s.supports(req.Method, req.Bank) {
		return nil, ErrUnsupportedChannel
	}
	if req.ReferenceCode != "" && !validReference(req.ReferenceCode) {
		return nil, ErrInvalidReference
	}

	in := &domain.PaymentIntent{
		WalletID: walletID,
		Amount:   req.Amount,
		Method:   strings.ToLower(req.Method),
		Bank:     strings.ToLower(req.Bank),
	}

	attempts := generatedAttempts
	if req.ReferenceCode != "" {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		in.ID = uuid.New()
		in.ReferenceCode = req.ReferenceCode
		if in.ReferenceCode == "" {
			in.ReferenceCode = s.newRef()
		}

		err := s.store.CreateIntent(ctx, in)
		switch {
		case err == nil:
			return in, nil
		case errors.Is(err, store.ErrReferenceTaken):
			continue
		case errors.Is(err, store.ErrWalletNotFound):
			return nil, ErrWalletNotFound
		default:
			return nil, err
		}
	}
	return nil, ErrReferenceConflict
}

func (s *IntentService) intent(lookup func() (*domain.PaymentIntent, error)) (*domain.PaymentIntent, error) {
	in, err := lookup()
	if errors.Is(err, store.ErrIntentNotFound) {
		return nil, ErrIntentNotFound
	}
	return in, err
}

// Status returns the intent with its id and, once it succeeded, the wallet
// it was credited to.
func (s *IntentService) Status(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error) {
	in, err := s.intent(func() (*domain.PaymentIntent, error) { return s.store.GetIntent(ctx, id) })
	if err != nil {
		return nil, err
	}
	return s.statusOf(ctx, in)
}

// StatusByReference is Status keyed by reference code.
func (s *IntentService) StatusByReference(ctx context.Context, ref string) (*models.StatusResponse, error) {
	in, err := s.intent(func() (*domain.PaymentIntent, error) { return s.store.GetIntentByReference(ctx, ref) })
	if err != nil {
		return nil, err
	}
	return s.statusOf(ctx, in)
}

func (s *IntentService) statusOf(ctx context.Context, in *domain.PaymentIntent) (*models.StatusResponse, error) {
	resp := &models.StatusResponse{Transaction: ToTransaction(in)}
	if in.Status != domain.IntentSuccess {
		return resp, nil
	}
	w, err := s.Wallet(ctx, in.WalletID)
	if err != nil {
		// the hint is optional, the status is what matters.
		return resp, nil
	}
	resp.Wallet = w
	return resp, nil
}

// Instrument builds the QR instrument for a pending intent.
func (s *IntentService) Instrument(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	in, err := s.intent(func() (*domain.PaymentIntent, error) { return s.store.GetIntent(ctx, id) })
	if err != nil {
		return nil, err
	}
	if in.Status != domain.IntentPending {
		return nil, ErrIntentNotPending
	}
	return &models.Instrument{
		QRPayload:     BuildQRPayload(in, s.payee),
		Bank:          in.Bank,
		AccountNumber: s.payee.AccountNumber,
		AccountName:   s.payee.AccountName,
		TransferNote:  in.ReferenceCode,
		Amount:        in.Amount,
	}, nil
}

// Instructions is the account data returned alongside a created intent.
func (s *IntentService) Instructions(in *domain.PaymentIntent) *models.Instructions {
	return &models.Instructions{
		Bank:          in.Bank,
		AccountNumber: s.payee.AccountNumber,
		AccountName:   s.payee.AccountName,
		TransferNote:  in.ReferenceCode,
	}
}

// BuildQRPayload encodes what a banking app needs to prefill the transfer.
func BuildQRPayload(in *domain.PaymentIntent, payee domain.PayeeAccount) string {
	return strings.Join([]string{
		"QRPAY",
		strings.ToUpper(in.Bank),
		payee.AccountNumber,
		payee.AccountName,
		fmt.Sprintf("%d", in.Amount),
		in.ReferenceCode,
	}, "|")
}

// Cancel gives up a pending intent.
func (s *IntentService) Cancel(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	in, err := s.store.CancelIntent(ctx, id)
	switch {
	case errors.Is(err, store.ErrIntentNotFound):
		return nil, ErrIntentNotFound
	case errors.Is(err, store.ErrIntentNotActive):
		return nil, ErrIntentNotPending
	}
	return in, err
}

// Wallet returns the authoritative balance and recent movements.
func (s *IntentService) Wallet(ctx context.Context, walletID int64) (*models.Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	entries, err := s.store.GetWalletEntries(ctx, walletID, RecentTransactions)
	if err != nil {
		return nil, err
	}

	out := &models.Wallet{Balance: w.Balance, RecentTransactions: make([]models.WalletTransaction, 0, len(entries))}
	for _, e := range entries {
		out.RecentTransactions = append(out.RecentTransactions, models.WalletTransaction{
			ID:            fmt.Sprintf("%d", e.ID),
			Amount:        e.Delta,
			Kind:          e.Kind,
			ReferenceCode: e.ReferenceCode,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out, nil
}

// ToTransaction is the wire view of an intent.
func ToTransaction(in *domain.PaymentIntent) models.Transaction {
	created := in.CreatedAt
	t := models.Transaction{
		ID:            in.ID.String(),
		ReferenceCode: in.ReferenceCode,
		Amount:        in.Amount,
		Method:        in.Method,
		Bank:          in.Bank,
		Status:        string(in.Status),
		ConfirmedAt:   in.ConfirmedAt,
	}
	if !created.IsZero() {
		t.CreatedAt = &created
	}
	return t
}
