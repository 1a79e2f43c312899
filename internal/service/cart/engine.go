package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

// Identity reports who is driving the cart for the current call.
type Identity interface {
	CurrentSession(ctx context.Context) (domain.Session, error)
}

// Store persists authenticated cart lines. Every method is scoped by the
// user id; implementations must never touch rows owned by another user and
// return domain.ErrNotFound when a scoped write matches no row.
type Store interface {
	FindLine(ctx context.Context, userID, productID string, variantID *string) (*domain.CartLine, error)
	InsertLine(ctx context.Context, userID, productID string, variantID *string, quantity int) (*domain.CartLine, error)
	// AddQuantity inserts the line or increments an existing one atomically.
	AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error
	UpdateLineQuantity(ctx context.Context, lineID, userID string, quantity int) error
	DeleteLine(ctx context.Context, lineID, userID string) error
	DeleteAllLines(ctx context.Context, userID string) error
	// ListLines returns the user's lines joined with display data, newest first.
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
}

// LocalStore keeps anonymous carts, keyed by anonymous session id.
type LocalStore interface {
	Load(ctx context.Context, anonymousID string) ([]domain.CartLine, error)
	Save(ctx context.Context, anonymousID string, lines []domain.CartLine) error
	Clear(ctx context.Context, anonymousID string) error
}

// AddInput describes one add-to-cart request. Product and Variant are
// optional display snapshots; anonymous lines keep whatever the caller sends.
type AddInput struct {
	ProductID string `validate:"required"`
	VariantID *string
	Quantity  int `validate:"min=1"`
	Product   *domain.ProductSnapshot
	Variant   *domain.VariantSnapshot
}

// View is a point-in-time copy of the cart.
type View struct {
	Lines      []domain.CartLine `json:"lines"`
	TotalItems int               `json:"totalItems"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
}

// Engine owns the cart of one session. It is cheap to build and is meant to
// be constructed per request with the shared Locks.
type Engine struct {
	identity Identity
	store    Store
	local    LocalStore
	locks    *Locks
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	mu     sync.RWMutex
	key    string
	loaded bool
	lines  []domain.CartLine
	totals domain.Totals

	loading atomic.Bool
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithLocks(locks *Locks) Option {
	return func(e *Engine) {
		if locks != nil {
			e.locks = locks
		}
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(e *Engine) {
		if v != nil {
			e.validate = v
		}
	}
}

func New(identity Identity, store Store, local LocalStore, opts ...Option) *Engine {
	e := &Engine{
		identity: identity,
		store:    store,
		local:    local,
		locks:    NewLocks(),
		logger:   zap.NewNop(),
		validate: validator.New(),
		now:      time.Now,
		totals:   domain.ComputeTotals(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddItem adds quantity of a product/variant, merging into an existing line
// with the same key.
func (e *Engine) AddItem(ctx context.Context, in AddInput) (View, error) {
	in = NormalizeAdd(in)
	if err := e.validateAdd(in); err != nil {
		return e.View(), err
	}
	sess, unlock, err := e.begin(ctx, false)
	if err != nil {
		return e.View(), err
	}
	defer unlock()

	if !sess.Authenticated {
		err = e.mutateAnonymous(ctx, sess, func(lines []domain.CartLine) []domain.CartLine {
			return e.mergeLine(lines, in)
		})
		return e.finish("add item", sess, err)
	}

	e.loading.Store(true)
	defer e.loading.Store(false)

	if err := e.store.AddQuantity(ctx, sess.UserID, in.ProductID, in.VariantID, in.Quantity); err != nil {
		return e.finish("add item", sess, err)
	}
	return e.finish("add item", sess, e.refetch(ctx, sess))
}

// RemoveItem deletes one line. Unknown ids are a no-op.
func (e *Engine) RemoveItem(ctx context.Context, lineID string) (View, error) {
	sess, unlock, err := e.begin(ctx, true)
	if err != nil {
		return e.View(), err
	}
	defer unlock()
	return e.finish("remove item", sess, e.remove(ctx, sess, lineID))
}

// UpdateQuantity sets a line's quantity. Quantities of zero or less remove
// the line.
func (e *Engine) UpdateQuantity(ctx context.Context, lineID string, quantity int) (View, error) {
	sess, unlock, err := e.begin(ctx, true)
	if err != nil {
		return e.View(), err
	}
	defer unlock()

	if quantity <= 0 {
		return e.finish("update quantity", sess, e.remove(ctx, sess, lineID))
	}

	setQty := func(lines []domain.CartLine) []domain.CartLine {
		out := make([]domain.CartLine, len(lines))
		for i, l := range lines {
			if l.ID == lineID {
				l.Quantity = quantity
			}
			out[i] = l
		}
		return out
	}

	if !sess.Authenticated {
		return e.finish("update quantity", sess, e.mutateAnonymous(ctx, sess, setQty))
	}

	e.loading.Store(true)
	defer e.loading.Store(false)

	if err := e.store.UpdateLineQuantity(ctx, lineID, sess.UserID, quantity); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Debug("cart engine: update quantity on unknown line", zap.String("line_id", lineID))
			return e.View(), nil
		}
		return e.finish("update quantity", sess, err)
	}
	e.replace(setQty(e.snapshotLines()))
	return e.View(), nil
}

// ClearCart removes every line. Lines and totals are reset together.
func (e *Engine) ClearCart(ctx context.Context) (View, error) {
	sess, unlock, err := e.begin(ctx, false)
	if err != nil {
		return e.View(), err
	}
	defer unlock()

	if !sess.Authenticated {
		if err := e.local.Clear(ctx, sess.AnonymousID); err != nil {
			return e.finish("clear cart", sess, err)
		}
		e.replace(nil)
		return e.View(), nil
	}

	e.loading.Store(true)
	defer e.loading.Store(false)

	if err := e.store.DeleteAllLines(ctx, sess.UserID); err != nil {
		return e.finish("clear cart", sess, err)
	}
	e.replace(nil)
	e.markLoaded()
	return e.View(), nil
}

// FetchCart reloads lines from the session's backing store.
func (e *Engine) FetchCart(ctx context.Context) (View, error) {
	sess, unlock, err := e.begin(ctx, false)
	if err != nil {
		return e.View(), err
	}
	defer unlock()

	if sess.Authenticated {
		e.loading.Store(true)
		defer e.loading.Store(false)
	}
	return e.finish("fetch cart", sess, e.refetch(ctx, sess))
}

// MergeAnonymous moves the anonymous cart of a freshly authenticated session
// into the user's persisted cart. Each anonymous line is replayed through the
// deduplicating add path and dropped from the anonymous store once applied.
func (e *Engine) MergeAnonymous(ctx context.Context) (View, error) {
	sess, err := e.session(ctx)
	if err != nil {
		return e.View(), err
	}
	if !sess.Authenticated {
		return e.View(), domain.ErrUnauthenticated
	}
	if sess.AnonymousID != "" {
		anonKey := domain.Session{AnonymousID: sess.AnonymousID}.CartKey()
		unlockAnon, err := e.locks.Lock(ctx, anonKey)
		if err != nil {
			return e.View(), err
		}
		defer unlockAnon()
	}
	unlock, err := e.locks.Lock(ctx, sess.CartKey())
	if err != nil {
		return e.View(), err
	}
	defer unlock()
	e.bind(sess)

	e.loading.Store(true)
	defer e.loading.Store(false)

	if sess.AnonymousID != "" {
		if err := e.replayAnonymous(ctx, sess); err != nil {
			return e.finish("merge anonymous cart", sess, err)
		}
	}
	return e.finish("merge anonymous cart", sess, e.refetch(ctx, sess))
}

// Lines returns a copy of the current lines.
func (e *Engine) Lines() []domain.CartLine {
	return e.snapshotLines()
}

func (e *Engine) Totals() domain.Totals {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totals
}

// Loading reports whether an authenticated round trip is in flight.
func (e *Engine) Loading() bool {
	return e.loading.Load()
}

func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return View{
		Lines:      cloneLines(e.lines),
		TotalItems: e.totals.TotalItems,
		TotalPrice: e.totals.TotalPrice,
	}
}

func (e *Engine) replayAnonymous(ctx context.Context, sess domain.Session) error {
	pending, err := e.local.Load(ctx, sess.AnonymousID)
	if err != nil {
		return err
	}
	for len(pending) > 0 {
		l := pending[0]
		if err := e.store.AddQuantity(ctx, sess.UserID, l.ProductID, l.VariantID, l.Quantity); err != nil {
			if saveErr := e.local.Save(ctx, sess.AnonymousID, pending); saveErr != nil {
				e.logger.Warn("cart engine: persist remaining anonymous lines", zap.Error(saveErr))
			}
			return err
		}
		pending = pending[1:]
	}
	return e.local.Clear(ctx, sess.AnonymousID)
}

func (e *Engine) remove(ctx context.Context, sess domain.Session, lineID string) error {
	without := func(lines []domain.CartLine) []domain.CartLine {
		out := make([]domain.CartLine, 0, len(lines))
		for _, l := range lines {
			if l.ID != lineID {
				out = append(out, l)
			}
		}
		return out
	}

	if !sess.Authenticated {
		return e.mutateAnonymous(ctx, sess, without)
	}

	e.loading.Store(true)
	defer e.loading.Store(false)

	if err := e.store.DeleteLine(ctx, lineID, sess.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Debug("cart engine: remove unknown line", zap.String("line_id", lineID))
			return nil
		}
		return err
	}
	e.replace(without(e.snapshotLines()))
	return nil
}

// mutateAnonymous applies fn to the durable anonymous cart and adopts the
// result only after it has been saved.
func (e *Engine) mutateAnonymous(ctx context.Context, sess domain.Session, fn func([]domain.CartLine) []domain.CartLine) error {
	current, err := e.local.Load(ctx, sess.AnonymousID)
	if err != nil {
		return err
	}
	next := fn(cloneLines(current))
	if err := e.local.Save(ctx, sess.AnonymousID, next); err != nil {
		return err
	}
	e.replace(next)
	return nil
}

func (e *Engine) mergeLine(lines []domain.CartLine, in AddInput) []domain.CartLine {
	key := domain.KeyOf(in.ProductID, in.VariantID)
	for i := range lines {
		if lines[i].Key() != key {
			continue
		}
		lines[i].Quantity += in.Quantity
		if lines[i].Product == nil {
			lines[i].Product = in.Product
		}
		if lines[i].Variant == nil {
			lines[i].Variant = in.Variant
		}
		return lines
	}
	return append(lines, domain.CartLine{
		ID:        uuid.NewString(),
		ProductID: in.ProductID,
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		Product:   in.Product,
		Variant:   in.Variant,
		CreatedAt: e.now().UTC(),
	})
}

func (e *Engine) refetch(ctx context.Context, sess domain.Session) error {
	var (
		lines []domain.CartLine
		err   error
	)
	if sess.Authenticated {
		lines, err = e.store.ListLines(ctx, sess.UserID)
	} else {
		lines, err = e.local.Load(ctx, sess.AnonymousID)
	}
	if err != nil {
		return err
	}
	e.replace(lines)
	if sess.Authenticated {
		e.markLoaded()
	}
	return nil
}

// begin resolves the session and takes the cart lock. With preload set, an
// authenticated cart that has not been read yet is loaded first so that a
// scoped write can be mirrored onto the current lines.
func (e *Engine) begin(ctx context.Context, preload bool) (domain.Session, func(), error) {
	sess, err := e.session(ctx)
	if err != nil {
		return domain.Session{}, nil, err
	}
	unlock, err := e.locks.Lock(ctx, sess.CartKey())
	if err != nil {
		return domain.Session{}, nil, err
	}
	if e.bind(sess) && preload && sess.Authenticated {
		if err := e.refetch(ctx, sess); err != nil {
			unlock()
			e.logger.Error("cart engine: load cart", zap.String("cart", sess.CartKey()), zap.Error(err))
			return domain.Session{}, nil, fmt.Errorf("load cart: %w", err)
		}
	}
	return sess, unlock, nil
}

func (e *Engine) markLoaded() {
	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
}

// bind points the engine at the session's cart and reports whether the
// authenticated lines still need loading.
func (e *Engine) bind(sess domain.Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := sess.CartKey()
	if e.key != key {
		e.key = key
		e.loaded = false
		e.lines = nil
		e.totals = domain.ComputeTotals(nil)
	}
	return !e.loaded
}

func (e *Engine) session(ctx context.Context) (domain.Session, error) {
	if e.identity == nil {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	sess, err := e.identity.CurrentSession(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resolve session: %w", err)
	}
	if sess.Authenticated && sess.UserID == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if !sess.Authenticated && sess.AnonymousID == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

func (e *Engine) finish(op string, sess domain.Session, err error) (View, error) {
	if err != nil {
		e.logger.Error("cart engine: "+op+" failed",
			zap.String("cart", sess.CartKey()),
			zap.Bool("authenticated", sess.Authenticated),
			zap.Error(err),
		)
		return e.View(), fmt.Errorf("%s: %w", op, err)
	}
	return e.View(), nil
}

func (e *Engine) replace(lines []domain.CartLine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = cloneLines(lines)
	e.totals = domain.ComputeTotals(e.lines)
}

func (e *Engine) snapshotLines() []domain.CartLine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneLines(e.lines)
}

func (e *Engine) validateAdd(in AddInput) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Field() == "Quantity" {
			return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, in.Quantity)
		}
	}
	return domain.ErrInvalidProduct
}

// NormalizeAdd trims the product and variant ids. A blank variant id means
// no variant.
func NormalizeAdd(in AddInput) AddInput {
	in.ProductID = strings.TrimSpace(in.ProductID)
	if in.VariantID != nil {
		in.VariantID = domain.StringPtr(strings.TrimSpace(*in.VariantID))
	}
	return in
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return []domain.CartLine{}
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
