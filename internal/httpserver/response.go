package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
)

type lineResponse struct {
	ID                 string                  `json:"id"`
	ProductID          string                  `json:"productId"`
	VariantID          *string                 `json:"variantId,omitempty"`
	Quantity           int                     `json:"quantity"`
	Product            *domain.ProductSnapshot `json:"product,omitempty"`
	Variant            *domain.VariantSnapshot `json:"variant,omitempty"`
	UnitPrice          string                  `json:"unitPrice"`
	LineTotal          string                  `json:"lineTotal"`
	LineTotalFormatted string                  `json:"lineTotalFormatted"`
}

type cartResponse struct {
	Lines               []lineResponse `json:"lines"`
	TotalItems          int            `json:"totalItems"`
	TotalPrice          string         `json:"totalPrice"`
	TotalPriceFormatted string         `json:"totalPriceFormatted"`
}

// money renders amounts with the storefront currency symbol.
type money struct {
	ac *accounting.Accounting
}

func newMoney(symbol string) money {
	if symbol == "" {
		symbol = "$"
	}
	return money{ac: &accounting.Accounting{Symbol: symbol, Precision: 2, Thousand: ",", Decimal: "."}}
}

func (m money) format(d decimal.Decimal) string {
	return m.ac.FormatMoneyDecimal(d)
}

func (m money) cart(v cart.View) cartResponse {
	resp := cartResponse{
		Lines:               make([]lineResponse, 0, len(v.Lines)),
		TotalItems:          v.TotalItems,
		TotalPrice:          v.TotalPrice.StringFixed(2),
		TotalPriceFormatted: m.format(v.TotalPrice),
	}
	for _, l := range v.Lines {
		total := l.LineTotal()
		resp.Lines = append(resp.Lines, lineResponse{
			ID:                 l.ID,
			ProductID:          l.ProductID,
			VariantID:          l.VariantID,
			Quantity:           l.Quantity,
			Product:            l.Product,
			Variant:            l.Variant,
			UnitPrice:          l.UnitPrice().StringFixed(2),
			LineTotal:          total.StringFixed(2),
			LineTotalFormatted: m.format(total),
		})
	}
	return resp
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// respondError maps cart errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidProduct):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(c, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, domain.ErrForbidden):
		writeError(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrCartFull):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(err)
		writeError(c, http.StatusServiceUnavailable, "cart is busy, retry")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
