package main

import (
	"fmt"

	"github.com/punchamoorthee/qrtopup/internal/client"
	"github.com/punchamoorthee/qrtopup/internal/config"
	"github.com/spf13/cobra"
)

func walletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show the wallet balance and recent movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			s, err := client.New(cfg.APIBaseURL, cfg.WalletID, cfg.HTTPTimeout).ReadWallet(cmd.Context())
			if err != nil {
				return err
			}
			printWallet(cmd.OutOrStdout(), *s)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check a top-up once by reference code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			ref, _ := cmd.Flags().GetString("ref")

			rep, err := client.New(cfg.APIBaseURL, cfg.WalletID, cfg.HTTPTimeout).StatusByReference(cmd.Context(), ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s  %d\n", ref, rep.Status, rep.Amount)
			if rep.Wallet != nil {
				printWallet(out, *rep.Wallet)
			}
			return nil
		},
	}
	cmd.Flags().String("ref", "", "Reference code")
	cmd.MarkFlagRequired("ref")
	return cmd
}

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the payment channels the service accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			chs, err := client.New(cfg.APIBaseURL, cfg.WalletID, cfg.HTTPTimeout).Channels(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range chs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", c.Method, c.Bank)
			}
			return nil
		},
	}
}
