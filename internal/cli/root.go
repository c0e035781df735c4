// Package cli implements friendcoinctl, the operator command line.
package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/friendcoin/friendcoin/internal/config"
	"github.com/friendcoin/friendcoin/internal/infra"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/logging"
)

// backend is what the commands operate on.
type backend struct {
	cfg    config.Config
	store  ledger.Store
	engine *ledger.Engine
	logger *slog.Logger
	close  func()
}

// openBackend connects to the configured Postgres database. Tests replace it.
var openBackend = func(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := ledger.NewPostgresStore(pool, cfg.TotalBaseCoins)
	return &backend{
		cfg:    cfg,
		store:  store,
		engine: ledger.NewEngine(store, ledger.WithTaxRate(cfg.TransferTaxRate), ledger.WithLoanTerm(cfg.LoanTermMonths)),
		logger: logging.New(cfg.LogLevel),
		close:  pool.Close,
	}, nil
}

// withBackend opens the backend for the duration of one command.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(ctx, b)
}

// NewRootCommand assembles the friendcoinctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "friendcoinctl",
		Short:         "Operate a FriendCoin ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newCirculationCommand(),
		newRestrictCommand(),
		newProductCommand(),
		newTokenCommand(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
