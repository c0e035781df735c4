package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendcoin/friendcoin/internal/accounts"
	"github.com/friendcoin/friendcoin/internal/circulation"
	"github.com/friendcoin/friendcoin/internal/config"
	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/market"
	"github.com/friendcoin/friendcoin/internal/middleware"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, b *backend) error {
				m, ok := b.store.(migrator)
				if !ok {
					return errors.New("store does not support migrations")
				}
				if err := m.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func newCirculationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circulation",
		Short: "Inspect or adjust the coins in circulation",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the circulation counter and cap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, b *backend) error {
				st, err := circulation.NewService(b.engine, nil, b.logger).Status(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			})
		},
	}

	var reason string
	adjust := &cobra.Command{
		Use:   "adjust DELTA",
		Short: "Move the counter by DELTA coins (negative to shrink)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var delta int64
			if _, err := fmt.Sscan(args[0], &delta); err != nil {
				return fmt.Errorf("delta must be an integer: %w", err)
			}
			return withBackend(cmd, func(ctx context.Context, b *backend) error {
				st, err := circulation.NewService(b.engine, nil, b.logger).Adjust(ctx, delta, reason)
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			})
		},
	}
	adjust.Flags().StringVarP(&reason, "reason", "r", "", "Audit reason recorded with the change")
	_ = adjust.MarkFlagRequired("reason")

	cmd.AddCommand(status, adjust)
	return cmd
}

func newRestrictCommand() *cobra.Command {
	var (
		reason   string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "restrict ACCOUNT",
		Short: "Disable banking (loans and purchases) for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b *backend) error {
				r, err := accounts.NewService(b.store, b.logger).Restrict(ctx, accounts.RestrictInput{
					AccountID: args[0],
					Reason:    reason,
					Duration:  duration,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, r)
			})
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the account is restricted")
	cmd.Flags().DurationVarP(&duration, "for", "d", 0, "How long the restriction lasts (0 = indefinitely)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newProductCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage marketplace products",
	}

	var (
		name  string
		price string
		stock int64
	)
	upsert := &cobra.Command{
		Use:   "upsert ID",
		Short: "Create or replace a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := currency.TextInput(price).Resolve()
			if err != nil {
				return err
			}
			return withBackend(cmd, func(ctx context.Context, b *backend) error {
				p, err := market.NewService(b.engine, nil, b.logger).UpsertProduct(ctx, market.ProductInput{
					ID:    args[0],
					Name:  name,
					Price: amount,
					Stock: stock,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, p)
			})
		},
	}
	upsert.Flags().StringVar(&name, "name", "", "Display name")
	upsert.Flags().StringVar(&price, "price", "", `Unit price such as "2.50f€"`)
	upsert.Flags().Int64Var(&stock, "stock", ledger.UnlimitedStock, "Units in stock (-1 = unlimited)")
	_ = upsert.MarkFlagRequired("name")
	_ = upsert.MarkFlagRequired("price")

	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, b *backend) error {
				products, err := market.NewService(b.engine, nil, b.logger).Products(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, products)
			})
		},
	}

	cmd.AddCommand(upsert, list)
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		roles string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token ACCOUNT",
		Short: "Sign a bearer token for ACCOUNT with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			var list []string
			for _, r := range strings.Split(roles, ",") {
				if r = strings.TrimSpace(r); r != "" {
					list = append(list, r)
				}
			}
			token, err := middleware.SignToken(cfg.JWTSecret, args[0], list, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&roles, "roles", "", "Comma separated roles, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
