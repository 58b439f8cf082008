package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pttech/commerce/internal/domain"
)

// CatalogHandler serves the small catalog surface the order flow needs:
// variant lookup for the storefront and the admin price change entry point.
type CatalogHandler struct {
	catalog domain.CatalogStore
}

// NewCatalogHandler creates the catalog API handler.
func NewCatalogHandler(catalog domain.CatalogStore) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Register mounts the catalog routes on the group.
func (h *CatalogHandler) Register(g *echo.Group) {
	g.GET("/variants/:variantId", h.GetByVariant)
	g.PATCH("/products/:id/price", h.ChangePrice)
}

// GetByVariant returns the product owning a variant, stock included, so the
// storefront can render availability before placing an order.
func (h *CatalogHandler) GetByVariant(c echo.Context) error {
	variantID, err := primitive.ObjectIDFromHex(c.Param("variantId"))
	if err != nil {
		return respondError(c, domain.Invalid("catalog.get", "invalid variant id"))
	}

	product, err := h.catalog.FindProductByVariant(c.Request().Context(), variantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

type changePriceRequest struct {
	NewPrice float64 `json:"newPrice" validate:"required,gt=0"`
}

// ChangePrice sets a product's current price, logging the prior price to
// its history.
func (h *CatalogHandler) ChangePrice(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return respondError(c, domain.Invalid("catalog.change_price", "invalid product id"))
	}

	var req changePriceRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.Invalid("catalog.change_price", "malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.catalog.RecordPriceChange(c.Request().Context(), id, req.NewPrice); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
