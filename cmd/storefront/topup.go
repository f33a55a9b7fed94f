package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/punchamoorthee/qrtopup/internal/client"
	"github.com/punchamoorthee/qrtopup/internal/config"
	"github.com/punchamoorthee/qrtopup/internal/reconcile"
	"github.com/spf13/cobra"
)

func topupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topup",
		Short: "Create a top-up, show its QR and wait for the bank confirmation",
		RunE:  runTopup,
	}

	cmd.Flags().Int64P("amount", "a", 0, "Amount in minor units")
	cmd.Flags().StringP("bank", "b", "", "Bank code, e.g. mb")
	cmd.Flags().StringP("method", "m", "bank_transfer", "Payment method")
	cmd.Flags().String("ref", "", "Reference code (generated by the service when empty)")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("bank")

	return cmd
}

func runTopup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	amount, _ := cmd.Flags().GetInt64("amount")
	bank, _ := cmd.Flags().GetString("bank")
	method, _ := cmd.Flags().GetString("method")
	ref, _ := cmd.Flags().GetString("ref")

	out := cmd.OutOrStdout()
	logger := slog.Default()
	c := client.New(cfg.APIBaseURL, cfg.WalletID, cfg.HTTPTimeout)

	wallet := reconcile.NewWalletSync(c, reconcile.NewWalletCache(reconcile.DefaultRecentTransactions), logger)
	defer wallet.Subscribe(reconcile.ObserverFunc(func(s reconcile.WalletSnapshot) {
		printWallet(out, s)
	}))()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 2 * time.Second,
			MaxRetries:  2,
		})
		defer rdb.Close()
		channel := fmt.Sprintf("wallet:%d", cfg.WalletID)
		defer wallet.Subscribe(reconcile.NewRedisObserver(rdb, channel, logger))()
	}

	eng, err := reconcile.NewEngine(reconcile.EngineConfig{
		Gateway: c,
		Wallet:  wallet,
		Notifier: reconcile.NotifierFunc(func(r reconcile.Result) {
			logger.Info("top-up settled", "reference_code", r.ReferenceCode, "state", r.State.String(), "checks", r.Checks)
		}),
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer eng.Dispose()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := eng.Start(ctx, reconcile.IntentRequest{Amount: amount, Method: method, Bank: bank, ReferenceCode: ref})
	if err != nil {
		var conflict *reconcile.ConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("reference code %s is already in use, pick another or omit --ref", conflict.ReferenceCode)
		}
		return err
	}

	in := s.Intent()
	fmt.Fprintf(out, "Top-up %s created for %d\n", in.ReferenceCode, in.Amount)
	if s.Instrument != nil {
		printInstrument(out, s.Instrument)
	} else {
		fmt.Fprintf(out, "QR unavailable (%v), transfer with note %s\n", s.InstrumentErr, in.ReferenceCode)
	}
	fmt.Fprintf(out, "Waiting for the bank confirmation (up to %s)...\n", cfg.PollTimeout)

	<-s.Done()

	res := s.Result()
	if res == nil {
		// Interrupted. Tell the service so a late transfer is not credited silently.
		cancelCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		defer cancel()
		if err := c.CancelIntent(cancelCtx, in.ID); err != nil {
			logger.Warn("could not cancel intent", "intent_id", in.ID, "error", err)
		}
		return errors.New("top-up cancelled")
	}

	switch res.State {
	case reconcile.StateConfirmed:
		fmt.Fprintf(out, "Payment of %d confirmed after %d checks\n", res.Amount, res.Checks)
		return nil
	case reconcile.StateTimedOut:
		return fmt.Errorf("no confirmation for %s: %w", in.ReferenceCode, res.Err)
	default:
		return fmt.Errorf("payment %s was %s", in.ReferenceCode, res.State)
	}
}

func printInstrument(w io.Writer, inst *reconcile.Instrument) {
	fmt.Fprintln(w, "Scan to pay:")
	fmt.Fprintf(w, "  QR:       %s\n", inst.QRPayload)
	fmt.Fprintf(w, "  Bank:     %s\n", inst.Bank)
	fmt.Fprintf(w, "  Account:  %s (%s)\n", inst.AccountNumber, inst.AccountName)
	fmt.Fprintf(w, "  Note:     %s\n", inst.TransferNote)
	fmt.Fprintf(w, "  Amount:   %d\n", inst.Amount)
}

func printWallet(w io.Writer, s reconcile.WalletSnapshot) {
	fmt.Fprintf(w, "Balance: %d\n", s.Balance)
	for _, t := range s.RecentTransactions {
		fmt.Fprintf(w, "  %s  %-8s %+d  %s\n", t.CreatedAt.Format(time.DateTime), t.Kind, t.Amount, t.ReferenceCode)
	}
}
