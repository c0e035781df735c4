package market

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes marketplace endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a market HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseRequest struct {
	Quantity int64 `json:"quantity" validate:"required,min=1,max=10000"`
}

type productRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Stock int64  `json:"stock" validate:"min=-1"`
	currency.Input
}

// List handles GET /products.
func (h *Handler) List(c *fiber.Ctx) error {
	products, err := h.service.Products(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p))
	}
	return c.JSON(fiber.Map{"products": out})
}

// Purchase handles POST /products/:productId/purchase.
func (h *Handler) Purchase(c *fiber.Ctx) error {
	buyer, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req purchaseRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.service.Purchase(c.UserContext(), buyer, c.Params("productId"), req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"purchase_id":     res.Purchase.ID,
		"transaction_id":  res.Purchase.TransactionID,
		"product_id":      res.Purchase.ProductID,
		"quantity":        res.Purchase.Quantity,
		"total":           res.Purchase.Total.View(),
		"balance":         res.Balance.View(),
		"remaining_stock": res.Stock,
	})
}

// Upsert handles PUT /products/:productId.
func (h *Handler) Upsert(c *fiber.Ctx) error {
	var req productRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	price, err := req.Resolve()
	if err != nil {
		return err
	}
	p, err := h.service.UpsertProduct(c.UserContext(), ProductInput{
		ID:    c.Params("productId"),
		Name:  req.Name,
		Price: price,
		Stock: req.Stock,
	})
	if err != nil {
		return err
	}
	return c.JSON(productView(p))
}

func productView(p ledger.Product) fiber.Map {
	return fiber.Map{
		"id":        p.ID,
		"name":      p.Name,
		"price":     p.Price.View(),
		"stock":     p.Stock,
		"unlimited": !p.Tracked(),
	}
}
