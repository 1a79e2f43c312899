package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/service/cart"
	"storefront/internal/service/identity"
)

// Catalog resolves display snapshots for add-to-cart requests.
type Catalog interface {
	Snapshot(ctx context.Context, productID string, variantID *string) (*domain.ProductSnapshot, *domain.VariantSnapshot, error)
}

// LocalStoreFactory returns the anonymous cart store for one request. Cookie
// stores are bound to the request, shared stores ignore both arguments.
type LocalStoreFactory func(w http.ResponseWriter, r *http.Request) cart.LocalStore

// Shared wraps a process-wide anonymous store as a factory.
func Shared(store cart.LocalStore) LocalStoreFactory {
	return func(http.ResponseWriter, *http.Request) cart.LocalStore { return store }
}

// Deps groups the collaborators the router needs.
type Deps struct {
	Carts       cart.Store
	Locks       *cart.Locks
	LocalStore  LocalStoreFactory
	Catalog     Catalog
	Tokens      *identity.Tokens
	Anonymous   *identity.Anonymous
	Ready       Pinger
	CORSOrigins []string
	Currency    string
}

func (d Deps) validate() error {
	switch {
	case d.Carts == nil:
		return errors.New("httpserver: cart store is required")
	case d.LocalStore == nil:
		return errors.New("httpserver: anonymous cart store is required")
	case d.Anonymous == nil:
		return errors.New("httpserver: anonymous identity is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(log *zap.Logger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Locks == nil {
		deps.Locks = cart.NewLocks()
	}

	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.Recovery(log))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
			ExposeHeaders:    []string{logger.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	h := newCartHandler(deps)
	carts := router.Group("/cart", sessionMiddleware(deps.Tokens, deps.Anonymous))
	carts.GET("", h.get)
	carts.GET("/count", h.count)
	carts.DELETE("", h.clear)
	carts.POST("/items", h.addItem)
	carts.PATCH("/items/:lineId", h.updateItem)
	carts.DELETE("/items/:lineId", h.removeItem)
	carts.POST("/merge", h.merge)

	return router, nil
}
