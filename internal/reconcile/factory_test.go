package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/punchamoorthee/qrtopup/internal/reconcile"
	"github.com/stretchr/testify/require"
)

type stubCreator struct {
	calls  int
	intent *reconcile.Intent
	err    error
}

func (c *stubCreator) CreateIntent(_ context.Context, req reconcile.IntentRequest) (*reconcile.Intent, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if c.intent != nil {
		return c.intent, nil
	}
	ref := req.ReferenceCode
	if ref == "" {
		ref = "TOPUP9F8E7D6C"
	}
	return &reconcile.Intent{ID: "tx-1", ReferenceCode: ref, Amount: req.Amount, Status: reconcile.StatusPending}, nil
}

func TestIntentFactoryCreateIntent(t *testing.T) {
	t.Run("ok, server generates reference code", func(t *testing.T) {
		c := &stubCreator{}
		f := reconcile.NewIntentFactory(c, nil)

		intent, err := f.CreateIntent(t.Context(), reconcile.IntentRequest{Amount: 50000, Method: "bank_transfer", Bank: "mb"})
		require.NoError(t, err)
		require.Equal(t, reconcile.StatusPending, intent.Status)
		require.NotEmpty(t, intent.ReferenceCode)
		require.Equal(t, "mb", intent.Bank)
		require.Equal(t, 1, c.calls)
	})

	t.Run("ok, caller reference code is echoed", func(t *testing.T) {
		f := reconcile.NewIntentFactory(&stubCreator{}, nil)

		intent, err := f.CreateIntent(t.Context(), reconcile.IntentRequest{Amount: 1, Method: "bank_transfer", Bank: "mb", ReferenceCode: "ORDER42"})
		require.NoError(t, err)
		require.Equal(t, "ORDER42", intent.ReferenceCode)
	})

	t.Run("fail, invalid input makes no call", func(t *testing.T) {
		cases := map[string]reconcile.IntentRequest{
			"zero amount":      {Amount: 0, Method: "bank_transfer", Bank: "mb"},
			"negative amount":  {Amount: -500, Method: "bank_transfer", Bank: "mb"},
			"missing method":   {Amount: 100, Bank: "mb"},
			"missing bank":     {Amount: 100, Method: "bank_transfer"},
			"bad reference":    {Amount: 100, Method: "bank_transfer", Bank: "mb", ReferenceCode: "has space"},
			"long reference":   {Amount: 100, Method: "bank_transfer", Bank: "mb", ReferenceCode: "A123456789012345678901234567890123"},
			"blank whitespace": {Amount: 100, Method: "  ", Bank: "mb"},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				c := &stubCreator{}
				f := reconcile.NewIntentFactory(c, nil)

				_, err := f.CreateIntent(t.Context(), req)
				require.ErrorIs(t, err, reconcile.ErrValidation)
				var vErr *reconcile.ValidationError
				require.ErrorAs(t, err, &vErr)
				require.Zero(t, c.calls)
			})
		}
	})

	t.Run("fail, conflict is surfaced", func(t *testing.T) {
		c := &stubCreator{err: &reconcile.ConflictError{ReferenceCode: "ORDER42"}}
		f := reconcile.NewIntentFactory(c, nil)

		_, err := f.CreateIntent(t.Context(), reconcile.IntentRequest{Amount: 100, Method: "bank_transfer", Bank: "mb", ReferenceCode: "ORDER42"})
		require.ErrorIs(t, err, reconcile.ErrConflict)
		require.Equal(t, 1, c.calls)
	})

	t.Run("fail, network error is not retried", func(t *testing.T) {
		c := &stubCreator{err: &reconcile.NetworkError{Op: "create intent", Err: errors.New("dial tcp: refused")}}
		f := reconcile.NewIntentFactory(c, nil)

		_, err := f.CreateIntent(t.Context(), reconcile.IntentRequest{Amount: 100, Method: "bank_transfer", Bank: "mb"})
		require.ErrorIs(t, err, reconcile.ErrNetwork)
		require.Equal(t, 1, c.calls)
	})

	t.Run("fail, unusable server answer", func(t *testing.T) {
		cases := map[string]*reconcile.Intent{
			"no id":             {ReferenceCode: "X1", Status: reconcile.StatusPending},
			"no reference code": {ID: "tx-1", Status: reconcile.StatusPending},
			"not pending":       {ID: "tx-1", ReferenceCode: "X1", Status: reconcile.StatusSuccess},
		}
		for name, intent := range cases {
			t.Run(name, func(t *testing.T) {
				f := reconcile.NewIntentFactory(&stubCreator{intent: intent}, nil)
				_, err := f.CreateIntent(t.Context(), reconcile.IntentRequest{Amount: 100, Method: "bank_transfer", Bank: "mb"})
				require.ErrorIs(t, err, reconcile.ErrServer)
			})
		}
	})

	t.Run("fail, reference code not echoed", func(t *testing.T) {
		c := &stubCreator{intent: &reconcile.Intent{ID: "tx-1", ReferenceCode: "OTHER", Status: reconcile.StatusPending}}
		f := reconcile.NewIntentFactory(c, nil)

		_, err := f.CreateIntent(t.Context(), reconcile.IntentRequest{Amount: 100, Method: "bank_transfer", Bank: "mb", ReferenceCode: "MINE"})
		require.ErrorIs(t, err, reconcile.ErrServer)
	})
}

func TestErrorForStatus(t *testing.T) {
	require.ErrorIs(t, reconcile.ErrorForStatus(400, "bad", ""), reconcile.ErrValidation)
	require.ErrorIs(t, reconcile.ErrorForStatus(422, "bad", ""), reconcile.ErrValidation)
	require.ErrorIs(t, reconcile.ErrorForStatus(409, "dup", "REF1"), reconcile.ErrConflict)
	require.ErrorIs(t, reconcile.ErrorForStatus(500, "boom", ""), reconcile.ErrServer)
	require.ErrorIs(t, reconcile.ErrorForStatus(503, "down", ""), reconcile.ErrServer)
	require.ErrorIs(t, reconcile.ErrorForStatus(404, "gone", ""), reconcile.ErrServer)
}

func TestInstrumentResolver(t *testing.T) {
	t.Run("ok, transfer note defaults to reference code", func(t *testing.T) {
		r := reconcile.NewInstrumentResolver(newFakeGateway())
		intent := testIntent(100)

		inst, err := r.Resolve(t.Context(), &intent)
		require.NoError(t, err)
		require.Equal(t, "QR|intent-1", inst.QRPayload)
		require.Equal(t, intent.ReferenceCode, inst.TransferNote)
	})

	t.Run("fail, fetch error", func(t *testing.T) {
		g := newFakeGateway()
		g.instErr = &reconcile.ServerError{StatusCode: 500, Message: "boom"}
		r := reconcile.NewInstrumentResolver(g)
		intent := testIntent(100)

		_, err := r.Resolve(t.Context(), &intent)
		require.ErrorIs(t, err, reconcile.ErrServer)
	})
}
