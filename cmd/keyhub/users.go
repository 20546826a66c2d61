package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyhub-dev/keyhub/internal/bootstrap"
	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/repository/sqlstore"
	"github.com/keyhub-dev/keyhub/internal/service"
	"github.com/keyhub-dev/keyhub/internal/support/logging"
)

func init() {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var (
		registerTgID    int64
		registerRef     int64
		registerPayload string
	)
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user, recording a referral when present",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(logging.Options{Level: cfg.Log.SlogLevel(), Format: cfg.Log.Format})
			db, err := bootstrap.OpenDatabase(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			store := sqlstore.NewStore(db)

			users := service.NewUserService(store.Users(), store.Referrals(), logger)
			referrer := registerRef
			if referrer == 0 && registerPayload != "" {
				referrer = service.ParseReferralPayload(registerPayload)
			}
			if err := users.Register(ctx, registerTgID, referrer); err != nil {
				return err
			}
			fmt.Printf("registered user %d\n", registerTgID)
			return nil
		},
	}
	registerCmd.Flags().Int64Var(&registerTgID, "tg-id", 0, "Telegram id")
	registerCmd.Flags().Int64Var(&registerRef, "referrer", 0, "referrer Telegram id")
	registerCmd.Flags().StringVar(&registerPayload, "payload", "", "deep-link start payload")
	_ = registerCmd.MarkFlagRequired("tg-id")
	userCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(userCmd)

	var (
		couponCode string
		couponTgID int64
	)
	couponCmd := &cobra.Command{
		Use:   "coupon",
		Short: "Manage coupons",
	}
	activateCmd := &cobra.Command{
		Use:   "activate",
		Short: "Apply a coupon to a user's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(logging.Options{Level: cfg.Log.SlogLevel(), Format: cfg.Log.Format})
			db, err := bootstrap.OpenDatabase(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			store := sqlstore.NewStore(db)

			coupons := service.NewCouponService(store.Coupons(), store.Users(), logger)
			amount, err := coupons.Activate(ctx, couponTgID, couponCode)
			if err != nil {
				return err
			}
			fmt.Printf("credited %.2f to user %d\n", amount, couponTgID)
			return nil
		},
	}
	activateCmd.Flags().StringVar(&couponCode, "code", "", "coupon code")
	activateCmd.Flags().Int64Var(&couponTgID, "tg-id", 0, "Telegram id")
	_ = activateCmd.MarkFlagRequired("code")
	_ = activateCmd.MarkFlagRequired("tg-id")
	couponCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(couponCmd)
}
