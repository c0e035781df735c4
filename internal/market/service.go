package market

import (
	"context"
	"log/slog"
	"strings"

	"github.com/friendcoin/friendcoin/internal/apperr"
	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/metrics"
)

// Service manages the product catalogue and purchases.
type Service struct {
	engine  *ledger.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService constructs a market service.
func NewService(engine *ledger.Engine, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{engine: engine, metrics: m, logger: logger}
}

// ProductInput describes a catalogue entry to create or replace.
type ProductInput struct {
	ID    string
	Name  string
	Price currency.Amount
	Stock int64
}

// Products lists the catalogue ordered by id.
func (s *Service) Products(ctx context.Context) ([]ledger.Product, error) {
	return s.engine.Store().Products(ctx)
}

// UpsertProduct creates or replaces a product. Stock -1 means unlimited.
func (s *Service) UpsertProduct(ctx context.Context, input ProductInput) (ledger.Product, error) {
	p := ledger.Product{
		ID:    strings.TrimSpace(input.ID),
		Name:  strings.TrimSpace(input.Name),
		Price: input.Price,
		Stock: input.Stock,
	}
	if p.ID == "" || p.Name == "" {
		return ledger.Product{}, apperr.Validation("product id and name are required", nil)
	}
	if err := ledger.ValidateAmount(p.Price); err != nil {
		return ledger.Product{}, err
	}
	if p.Stock < ledger.UnlimitedStock {
		return ledger.Product{}, apperr.Validation("stock must be -1 (unlimited) or non-negative", nil)
	}
	if err := s.engine.Store().UpsertProduct(ctx, p); err != nil {
		return ledger.Product{}, err
	}
	s.logger.Info("product saved", "product_id", p.ID, "price", p.Price.String(), "stock", p.Stock)
	return p, nil
}

// Purchase buys quantity units of a product for the buyer.
func (s *Service) Purchase(ctx context.Context, buyer, productID string, quantity int64) (ledger.PurchaseResult, error) {
	res, err := s.engine.Purchase(ctx, buyer, productID, quantity)
	s.metrics.ObserveOperation(string(ledger.KindProductPurchase), err)
	if err != nil {
		return ledger.PurchaseResult{}, err
	}
	s.logger.Info("product purchased", "transaction_id", res.Purchase.TransactionID, "buyer", buyer,
		"product_id", productID, "quantity", quantity, "total", res.Purchase.Total.String())
	return res, nil
}
