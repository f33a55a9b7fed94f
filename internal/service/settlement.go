package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/qrtopup/internal/domain"
	"github.com/punchamoorthee/qrtopup/internal/models"
)

var (
	ErrUnknownEventStatus = errors.New("unknown bank event status")
	ErrEventInProgress    = errors.New("bank event in progress")
	ErrEventMismatch      = errors.New("event id reused with mismatched payload")
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

// TopupEntryKind labels wallet entries created by a settled intent.
const TopupEntryKind = "topup"

// SettlementService applies bank confirmations to intents and wallets.
type SettlementService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewSettlementService(db *pgxpool.Pool) *SettlementService {
	return &SettlementService{db: db, now: time.Now}
}

// HashPayload fingerprints a webhook body so a replayed event id can be
// told apart from a reused one.
func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Settle decides the status an intent moves to for a bank event. The
// second result is false when the event does not change the intent.
func Settle(in *domain.PaymentIntent, evt models.BankWebhook) (domain.IntentStatus, bool, error) {
	var paid bool
	switch strings.ToLower(evt.Status) {
	case "paid", "success", "succeeded":
		paid = true
	case "failed", "rejected", "declined":
	default:
		return "", false, ErrUnknownEventStatus
	}
	if in.Status.Terminal() {
		return in.Status, false, nil
	}
	if paid && evt.Amount == in.Amount {
		return domain.IntentSuccess, true, nil
	}
	return domain.IntentFailed, true, nil
}

// ProcessBankEvent settles the intent named by the event's reference code.
// Each event id is applied at most once; a replay returns the stored record.
func (s *SettlementService) ProcessBankEvent(ctx context.Context, evt models.BankWebhook, reqHash string) (*models.WebhookResult, *models.BankEventRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var storedStatus int
	var storedBody json.RawMessage
	var storedHash, state string
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(response_status, 0), response_body, request_hash, status FROM bank_events WHERE event_id = $1",
		evt.EventID,
	).Scan(&storedStatus, &storedBody, &storedHash, &state)
	switch {
	case err == nil:
		if storedHash != reqHash {
			return nil, nil, ErrEventMismatch
		}
		if state != "completed" {
			return nil, nil, ErrEventInProgress
		}
		return nil, &models.BankEventRecord{
			EventID:        evt.EventID,
			RequestHash:    storedHash,
			Status:         state,
			ResponseBody:   storedBody,
			ResponseStatus: storedStatus,
		}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, nil, fmt.Errorf("bank event query failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO bank_events (event_id, request_hash, status) VALUES ($1, $2, 'in_progress')",
		evt.EventID, reqHash,
	)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return nil, nil, ErrEventInProgress
		}
		return nil, nil, fmt.Errorf("event reservation failed: %w", err)
	}

	var in domain.PaymentIntent
	err = tx.QueryRow(ctx,
		`SELECT id, wallet_id, reference_code, amount, status FROM payment_intents
		 WHERE reference_code = $1 FOR UPDATE`,
		evt.ReferenceCode,
	).Scan(&in.ID, &in.WalletID, &in.ReferenceCode, &in.Amount, &in.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrIntentNotFound
		}
		if pgCode(err) == serializationFailure {
			return nil, nil, ErrEventInProgress
		}
		return nil, nil, fmt.Errorf("intent lock failed: %w", err)
	}

	next, applied, err := Settle(&in, evt)
	if err != nil {
		return nil, nil, err
	}

	if applied {
		confirmedAt := s.now().UTC()
		if evt.PaidAt != nil {
			confirmedAt = evt.PaidAt.UTC()
		}
		_, err = tx.Exec(ctx,
			"UPDATE payment_intents SET status = $1, confirmed_at = $2 WHERE id = $3",
			string(next), confirmedAt, in.ID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("intent update failed: %w", err)
		}

		if next == domain.IntentSuccess {
			_, err = tx.Exec(ctx,
				"INSERT INTO wallet_entries (wallet_id, intent_id, delta, kind, reference_code) VALUES ($1, $2, $3, $4, $5)",
				in.WalletID, in.ID, in.Amount, TopupEntryKind, in.ReferenceCode,
			)
			if err != nil {
				return nil, nil, fmt.Errorf("wallet entry failed: %w", err)
			}
			_, err = tx.Exec(ctx, "UPDATE wallets SET balance = balance + $1 WHERE id = $2", in.Amount, in.WalletID)
			if err != nil {
				return nil, nil, fmt.Errorf("wallet credit failed: %w", err)
			}
		}
	}

	resp := &models.WebhookResult{
		EventID:  evt.EventID,
		IntentID: in.ID.String(),
		Status:   string(next),
		Applied:  applied,
	}
	respBody, err := json.Marshal(resp)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx,
		"UPDATE bank_events SET status = 'completed', intent_id = $1, response_status = $2, response_body = $3 WHERE event_id = $4",
		in.ID, http.StatusOK, respBody, evt.EventID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("bank event update failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		if pgCode(err) == serializationFailure {
			return nil, nil, ErrEventInProgress
		}
		return nil, nil, fmt.Errorf("tx commit failed: %w", err)
	}

	return resp, nil, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
