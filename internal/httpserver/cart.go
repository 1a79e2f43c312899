package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/service/cart"
	"storefront/internal/service/identity"
)

type cartHandler struct {
	deps  Deps
	money money
}

func newCartHandler(deps Deps) *cartHandler {
	return &cartHandler{deps: deps, money: newMoney(deps.Currency)}
}

// engine builds the per-request cart engine. Locks are shared so requests
// for the same cart serialize.
func (h *cartHandler) engine(c *gin.Context) *cart.Engine {
	return cart.New(
		identity.Provider{},
		h.deps.Carts,
		h.deps.LocalStore(c.Writer, c.Request),
		cart.WithLocks(h.deps.Locks),
		cart.WithLogger(logger.FromGin(c)),
	)
}

func (h *cartHandler) respond(c *gin.Context, view cart.View, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.money.cart(view))
}

func (h *cartHandler) get(c *gin.Context) {
	view, err := h.engine(c).FetchCart(c.Request.Context())
	h.respond(c, view, err)
}

func (h *cartHandler) count(c *gin.Context) {
	view, err := h.engine(c).FetchCart(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalItems": view.TotalItems})
}

type addItemRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	VariantID *string `json:"variantId"`
	Quantity  *int    `json:"quantity"`
}

func (h *cartHandler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	in := cart.NormalizeAdd(cart.AddInput{ProductID: req.ProductID, VariantID: req.VariantID, Quantity: 1})
	if req.Quantity != nil {
		in.Quantity = *req.Quantity
	}
	if in.ProductID == "" {
		writeError(c, http.StatusBadRequest, "productId is required")
		return
	}
	if in.Quantity <= 0 {
		respondError(c, domain.ErrInvalidQuantity)
		return
	}

	if h.deps.Catalog != nil {
		product, variant, err := h.deps.Catalog.Snapshot(c.Request.Context(), in.ProductID, in.VariantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(c, http.StatusNotFound, "product not found")
				return
			}
			respondError(c, err)
			return
		}
		in.Product, in.Variant = product, variant
	}

	view, err := h.engine(c).AddItem(c.Request.Context(), in)
	h.respond(c, view, err)
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *cartHandler) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "quantity is required")
		return
	}
	view, err := h.engine(c).UpdateQuantity(c.Request.Context(), c.Param("lineId"), *req.Quantity)
	h.respond(c, view, err)
}

func (h *cartHandler) removeItem(c *gin.Context) {
	view, err := h.engine(c).RemoveItem(c.Request.Context(), c.Param("lineId"))
	h.respond(c, view, err)
}

func (h *cartHandler) clear(c *gin.Context) {
	view, err := h.engine(c).ClearCart(c.Request.Context())
	h.respond(c, view, err)
}

func (h *cartHandler) merge(c *gin.Context) {
	view, err := h.engine(c).MergeAnonymous(c.Request.Context())
	h.respond(c, view, err)
}
