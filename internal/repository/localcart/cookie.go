package localcart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

const (
	cartSessionName = "storefront-cart"
	ownerValueKey   = "anonymous_id"
	linesValueKey   = "lines"
)

// MaxCookieLines is the largest anonymous cart the cookie store accepts. With
// uuid ids it keeps the encoded cookie under the 4096 byte browser limit.
const MaxCookieLines = 30

// CatalogLookup resolves display snapshots for lines read back from a cookie.
type CatalogLookup interface {
	Snapshot(ctx context.Context, productID string, variantID *string) (*domain.ProductSnapshot, *domain.VariantSnapshot, error)
}

// NewSessionStore builds the signed (and, with an encryption key, encrypted)
// cookie store shared by the anonymous cart and the identity middleware.
func NewSessionStore(keyPairs ...[]byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(30 * 24 * time.Hour / time.Second),
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Cookie stores the anonymous cart in a session cookie. It is bound to one
// request and must be rebuilt for every request. Only line ids and
// quantities are written; snapshots come from catalog on load, and a nil
// catalog yields lines without snapshots.
type Cookie struct {
	store   sessions.Store
	w       http.ResponseWriter
	r       *http.Request
	catalog CatalogLookup
	logger  *zap.Logger
}

func NewCookie(store sessions.Store, w http.ResponseWriter, r *http.Request, catalog CatalogLookup, logger *zap.Logger) *Cookie {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cookie{store: store, w: w, r: r, catalog: catalog, logger: logger}
}

func (c *Cookie) session() *sessions.Session {
	sess, err := c.store.Get(c.r, cartSessionName)
	if err != nil {
		// tampered or rotated-key cookies decode to a fresh session
		c.logger.Debug("localcart: discard unreadable cart cookie", zap.Error(err))
	}
	return sess
}

func (c *Cookie) Load(ctx context.Context, anonymousID string) ([]domain.CartLine, error) {
	sess := c.session()
	if owner, _ := sess.Values[ownerValueKey].(string); owner != anonymousID {
		return []domain.CartLine{}, nil
	}
	raw, _ := sess.Values[linesValueKey].([]byte)
	if len(raw) == 0 {
		return []domain.CartLine{}, nil
	}
	lines, err := decodeCompact(raw)
	if err != nil {
		c.logger.Warn("localcart: discard corrupt cart cookie", zap.Error(err))
		return []domain.CartLine{}, nil
	}
	if err := c.attachSnapshots(ctx, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Save rejects carts above MaxCookieLines with domain.ErrCartFull.
func (c *Cookie) Save(_ context.Context, anonymousID string, lines []domain.CartLine) error {
	if len(lines) > MaxCookieLines {
		return fmt.Errorf("%w: at most %d lines in a guest cart", domain.ErrCartFull, MaxCookieLines)
	}
	sess := c.session()
	sess.Values[ownerValueKey] = anonymousID
	sess.Values[linesValueKey] = encodeCompact(lines)
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("save cart cookie: %w", err)
	}
	return nil
}

func (c *Cookie) attachSnapshots(ctx context.Context, lines []domain.CartLine) error {
	if c.catalog == nil {
		return nil
	}
	for i := range lines {
		p, v, err := c.catalog.Snapshot(ctx, lines[i].ProductID, lines[i].VariantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.logger.Debug("localcart: line refers to unknown product", zap.String("product_id", lines[i].ProductID))
				continue
			}
			return fmt.Errorf("resolve cart line snapshot: %w", err)
		}
		lines[i].Product, lines[i].Variant = p, v
	}
	return nil
}

func (c *Cookie) Clear(_ context.Context, anonymousID string) error {
	sess := c.session()
	if owner, _ := sess.Values[ownerValueKey].(string); owner != anonymousID {
		return nil
	}
	delete(sess.Values, ownerValueKey)
	delete(sess.Values, linesValueKey)
	sess.Options.MaxAge = -1
	return sess.Save(c.r, c.w)
}
