package cart

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type stubIdentity struct {
	sess domain.Session
	err  error
}

func (s stubIdentity) CurrentSession(context.Context) (domain.Session, error) {
	return s.sess, s.err
}

type stubLocal struct {
	mu       sync.Mutex
	carts    map[string][]domain.CartLine
	loadErr  error
	saveErr  error
	saves    int
	cleared  int
	lastSave []domain.CartLine
}

func newStubLocal() *stubLocal {
	return &stubLocal{carts: make(map[string][]domain.CartLine)}
}

func (s *stubLocal) Load(_ context.Context, id string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]domain.CartLine(nil), s.carts[id]...), nil
}

func (s *stubLocal) Save(_ context.Context, id string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.lastSave = append([]domain.CartLine(nil), lines...)
	s.carts[id] = s.lastSave
	return nil
}

func (s *stubLocal) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	delete(s.carts, id)
	return nil
}

// failingStore wraps a Store and fails AddQuantity after okAdds successful calls.
type failingStore struct {
	Store
	okAdds int
	adds   int
	err    error
}

func (s *failingStore) AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error {
	s.adds++
	if s.adds > s.okAdds {
		return s.err
	}
	return s.Store.AddQuantity(ctx, userID, productID, variantID, quantity)
}

// racyStore implements AddQuantity as an unguarded read-then-write.
type racyStore struct {
	Store
}

func (s racyStore) AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error {
	existing, err := s.FindLine(ctx, userID, productID, variantID)
	if err != nil {
		return err
	}
	runtime.Gosched()
	if existing != nil {
		return s.UpdateLineQuantity(ctx, existing.ID, userID, existing.Quantity+quantity)
	}
	_, err = s.InsertLine(ctx, userID, productID, variantID, quantity)
	return err
}

func anon(id string) stubIdentity {
	return stubIdentity{sess: domain.Session{AnonymousID: id}}
}

func user(id string) stubIdentity {
	return stubIdentity{sess: domain.Session{Authenticated: true, UserID: id}}
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func strPtr(v string) *string { return &v }

func findLine(lines []domain.CartLine, productID string, variantID *string) (domain.CartLine, bool) {
	key := domain.KeyOf(productID, variantID)
	for _, l := range lines {
		if l.Key() == key {
			return l, true
		}
	}
	return domain.CartLine{}, false
}

func assertConsistent(t *testing.T, v View) {
	t.Helper()
	want := domain.ComputeTotals(v.Lines)
	if v.TotalItems != want.TotalItems || !v.TotalPrice.Equal(want.TotalPrice) {
		t.Fatalf("totals out of sync: got %d/%s want %d/%s", v.TotalItems, v.TotalPrice, want.TotalItems, want.TotalPrice)
	}
}

func TestAddItem_AnonymousDeduplicates(t *testing.T) {
	ctx := context.Background()
	local := newStubLocal()
	e := New(anon("a1"), nil, local)

	tee := &domain.ProductSnapshot{Name: "Tee", Price: price("10")}
	jeans := &domain.ProductSnapshot{Name: "Jeans", Price: price("20")}
	jeans32 := &domain.VariantSnapshot{Size: "32", Price: price("7.50")}

	if _, err := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 2, Product: tee}); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if _, err := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 3}); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	v, err := e.AddItem(ctx, AddInput{ProductID: "P2", VariantID: strPtr("V1"), Quantity: 1, Product: jeans, Variant: jeans32})
	if err != nil {
		t.Fatalf("add 3: %v", err)
	}

	if len(v.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(v.Lines))
	}
	p1, ok := findLine(v.Lines, "P1", nil)
	if !ok || p1.Quantity != 5 {
		t.Fatalf("expected P1 quantity 5, got %+v", p1)
	}
	if v.TotalItems != 6 {
		t.Fatalf("expected 6 items, got %d", v.TotalItems)
	}
	if !v.TotalPrice.Equal(decimal.RequireFromString("57.5")) {
		t.Fatalf("expected total 57.5, got %s", v.TotalPrice)
	}
	assertConsistent(t, v)

	if got := len(local.carts["a1"]); got != 2 {
		t.Fatalf("expected 2 persisted anonymous lines, got %d", got)
	}
}

func TestAddItem_NilVariantIsDistinct(t *testing.T) {
	ctx := context.Background()
	e := New(anon("a1"), nil, newStubLocal())

	e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	e.AddItem(ctx, AddInput{ProductID: "P1", VariantID: strPtr("V1"), Quantity: 1})
	v, err := e.AddItem(ctx, AddInput{ProductID: "P1", VariantID: strPtr(""), Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(v.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(v.Lines))
	}
	noVariant, _ := findLine(v.Lines, "P1", nil)
	if noVariant.Quantity != 2 {
		t.Fatalf("expected empty variant to merge into nil variant line, got %+v", noVariant)
	}
}

func TestAddItem_AttachesMissingSnapshot(t *testing.T) {
	ctx := context.Background()
	e := New(anon("a1"), nil, newStubLocal())

	e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	v, _ := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1, Product: &domain.ProductSnapshot{Name: "Tee", Price: price("4.99")}})

	if v.Lines[0].Product == nil || v.Lines[0].Product.Name != "Tee" {
		t.Fatalf("expected snapshot attached, got %+v", v.Lines[0].Product)
	}
	if !v.TotalPrice.Equal(decimal.RequireFromString("9.98")) {
		t.Fatalf("expected 9.98, got %s", v.TotalPrice)
	}
}

func TestAddItem_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: cartrepo.NewMemory(nil), okAdds: 100}
	e := New(user("u1"), store, newStubLocal())

	for _, q := range []int{0, -1} {
		_, err := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: q})
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", q, err)
		}
	}
	_, err := e.AddItem(ctx, AddInput{ProductID: "  ", Quantity: 1})
	if !errors.Is(err, domain.ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}
	if store.adds != 0 {
		t.Fatalf("expected no store calls, got %d", store.adds)
	}
}

func TestAddItem_AuthenticatedRefetches(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	e := New(user("u1"), store, newStubLocal())

	e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 2})
	v, err := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	persisted, _ := store.ListLines(ctx, "u1")
	if len(v.Lines) != 1 || len(persisted) != 1 {
		t.Fatalf("expected one line, got view=%d store=%d", len(v.Lines), len(persisted))
	}
	if v.Lines[0].ID != persisted[0].ID || v.Lines[0].Quantity != 3 {
		t.Fatalf("expected view to mirror store, got %+v vs %+v", v.Lines[0], persisted[0])
	}
	if e.Loading() {
		t.Fatalf("expected loading cleared")
	}
}

func TestAddItem_StoreFailureLeavesLines(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	store := &failingStore{Store: cartrepo.NewMemory(nil), okAdds: 1, err: boom}
	e := New(user("u1"), store, newStubLocal())

	before, err := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	after, err := e.AddItem(ctx, AddInput{ProductID: "P2", Quantity: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if len(after.Lines) != len(before.Lines) || after.TotalItems != before.TotalItems {
		t.Fatalf("expected lines unchanged, got %+v", after)
	}
}

func TestAddItem_AnonymousSaveFailureLeavesLines(t *testing.T) {
	ctx := context.Background()
	local := newStubLocal()
	e := New(anon("a1"), nil, local)

	e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	local.saveErr = errors.New("cookie too large")

	v, err := e.AddItem(ctx, AddInput{ProductID: "P2", Quantity: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(v.Lines) != 1 || v.TotalItems != 1 {
		t.Fatalf("expected lines unchanged, got %+v", v)
	}
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	ctx := context.Background()
	local := newStubLocal()
	e := New(anon("a1"), nil, local)

	v, _ := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1, Product: &domain.ProductSnapshot{Price: price("3")}})
	v, err := e.UpdateQuantity(ctx, v.Lines[0].ID, 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(v.Lines) != 0 || v.TotalItems != 0 || !v.TotalPrice.IsZero() {
		t.Fatalf("expected empty cart, got %+v", v)
	}
	if len(local.carts["a1"]) != 0 {
		t.Fatalf("expected anonymous store emptied")
	}
}

func TestUpdateQuantity_Authenticated(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	e := New(user("u1"), store, newStubLocal())

	v, _ := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	v, err := e.UpdateQuantity(ctx, v.Lines[0].ID, 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v.TotalItems != 7 {
		t.Fatalf("expected 7 items, got %d", v.TotalItems)
	}
	persisted, _ := store.ListLines(ctx, "u1")
	if persisted[0].Quantity != 7 {
		t.Fatalf("expected store quantity 7, got %d", persisted[0].Quantity)
	}

	v, err = e.UpdateQuantity(ctx, "missing", 2)
	if err != nil {
		t.Fatalf("expected unknown line to be a no-op, got %v", err)
	}
	if v.TotalItems != 7 {
		t.Fatalf("expected cart unchanged, got %d", v.TotalItems)
	}
}

func TestRemoveItem_PreloadsFreshEngine(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	locks := NewLocks()

	first := New(user("u1"), store, nil, WithLocks(locks))
	first.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	v, _ := first.AddItem(ctx, AddInput{ProductID: "P2", Quantity: 2})
	target, _ := findLine(v.Lines, "P1", nil)

	second := New(user("u1"), store, nil, WithLocks(locks))
	v, err := second.RemoveItem(ctx, target.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(v.Lines) != 1 || v.Lines[0].ProductID != "P2" || v.TotalItems != 2 {
		t.Fatalf("expected only P2 left, got %+v", v.Lines)
	}
}

func TestRemoveItem_IsUserScoped(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	locks := NewLocks()

	owner := New(user("owner"), store, nil, WithLocks(locks))
	v, _ := owner.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 2})
	lineID := v.Lines[0].ID

	intruder := New(user("intruder"), store, nil, WithLocks(locks))
	if _, err := intruder.RemoveItem(ctx, lineID); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if _, err := intruder.UpdateQuantity(ctx, lineID, 99); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if _, err := intruder.ClearCart(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	lines, _ := store.ListLines(ctx, "owner")
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected owner cart untouched, got %+v", lines)
	}
}

func TestClearCart_Idempotent(t *testing.T) {
	ctx := context.Background()

	for name, e := range map[string]*Engine{
		"anonymous":     New(anon("a1"), nil, newStubLocal()),
		"authenticated": New(user("u1"), cartrepo.NewMemory(nil), nil),
	} {
		t.Run(name, func(t *testing.T) {
			e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 2})
			for i := 0; i < 2; i++ {
				v, err := e.ClearCart(ctx)
				if err != nil {
					t.Fatalf("clear %d: %v", i, err)
				}
				if len(v.Lines) != 0 || v.TotalItems != 0 || !v.TotalPrice.IsZero() {
					t.Fatalf("clear %d: expected empty cart, got %+v", i, v)
				}
			}
		})
	}
}

func TestFetchCart_ReplacesLines(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	store.AddQuantity(ctx, "u1", "P1", nil, 1)
	store.AddQuantity(ctx, "u1", "P2", strPtr("V1"), 4)

	e := New(user("u1"), store, nil)
	v, err := e.FetchCart(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(v.Lines) != 2 || v.TotalItems != 5 {
		t.Fatalf("unexpected view %+v", v)
	}
	// newest first
	if v.Lines[0].ProductID != "P2" {
		t.Fatalf("expected newest line first, got %s", v.Lines[0].ProductID)
	}
	assertConsistent(t, v)
}

func TestFetchCart_SessionErrors(t *testing.T) {
	ctx := context.Background()

	e := New(stubIdentity{err: errors.New("token expired")}, nil, nil)
	if _, err := e.FetchCart(ctx); err == nil {
		t.Fatalf("expected identity error")
	}

	e = New(stubIdentity{sess: domain.Session{Authenticated: true}}, nil, nil)
	if _, err := e.FetchCart(ctx); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	e = New(nil, nil, nil)
	if _, err := e.FetchCart(ctx); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestEngine_RebindsOnSessionChange(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	store.AddQuantity(ctx, "u2", "P9", nil, 1)

	id := &switchingIdentity{sess: domain.Session{AnonymousID: "a1"}}
	e := New(id, store, newStubLocal())
	e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 3})

	id.set(domain.Session{Authenticated: true, UserID: "u2"})
	v, err := e.RemoveItem(ctx, "missing")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(v.Lines) != 1 || v.Lines[0].ProductID != "P9" {
		t.Fatalf("expected user cart after rebind, got %+v", v.Lines)
	}
}

type switchingIdentity struct {
	mu   sync.Mutex
	sess domain.Session
}

func (s *switchingIdentity) set(sess domain.Session) {
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
}

func (s *switchingIdentity) CurrentSession(context.Context) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess, nil
}

func TestAddItem_ConcurrentAuthenticatedAddsYieldOneLine(t *testing.T) {
	ctx := context.Background()
	store := racyStore{Store: cartrepo.NewMemory(nil)}
	locks := NewLocks()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := New(user("u1"), store, nil, WithLocks(locks))
			_, err := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	lines, _ := store.ListLines(ctx, "u1")
	if len(lines) != 1 || lines[0].Quantity != n {
		t.Fatalf("expected one line with quantity %d, got %+v", n, lines)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock registry drained, got %d", locks.size())
	}
}

func TestMergeAnonymous(t *testing.T) {
	ctx := context.Background()
	store := cartrepo.NewMemory(nil)
	store.AddQuantity(ctx, "u1", "P1", nil, 1)

	local := newStubLocal()
	local.carts["a1"] = []domain.CartLine{
		{ID: "l1", ProductID: "P1", Quantity: 2},
		{ID: "l2", ProductID: "P2", VariantID: strPtr("V1"), Quantity: 1},
	}

	id := stubIdentity{sess: domain.Session{Authenticated: true, UserID: "u1", AnonymousID: "a1"}}
	e := New(id, store, local)
	v, err := e.MergeAnonymous(ctx)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(v.Lines) != 2 || v.TotalItems != 4 {
		t.Fatalf("unexpected merged view %+v", v)
	}
	p1, _ := findLine(v.Lines, "P1", nil)
	if p1.Quantity != 3 {
		t.Fatalf("expected P1 quantity 3, got %d", p1.Quantity)
	}
	if _, ok := local.carts["a1"]; ok || local.cleared != 1 {
		t.Fatalf("expected anonymous cart cleared")
	}
}

func TestMergeAnonymous_PartialFailureKeepsRemainder(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	store := &failingStore{Store: cartrepo.NewMemory(nil), okAdds: 1, err: boom}

	local := newStubLocal()
	local.carts["a1"] = []domain.CartLine{
		{ID: "l1", ProductID: "P1", Quantity: 2},
		{ID: "l2", ProductID: "P2", Quantity: 1},
	}

	id := stubIdentity{sess: domain.Session{Authenticated: true, UserID: "u1", AnonymousID: "a1"}}
	e := New(id, store, local)
	if _, err := e.MergeAnonymous(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	remaining := local.carts["a1"]
	if len(remaining) != 1 || remaining[0].ProductID != "P2" {
		t.Fatalf("expected only unmerged line left, got %+v", remaining)
	}

	store.okAdds = 100
	v, err := e.MergeAnonymous(ctx)
	if err != nil {
		t.Fatalf("retry merge: %v", err)
	}
	if v.TotalItems != 3 {
		t.Fatalf("expected 3 items after retry, got %d", v.TotalItems)
	}
}

func TestMergeAnonymous_RequiresAuthentication(t *testing.T) {
	e := New(anon("a1"), nil, newStubLocal())
	if _, err := e.MergeAnonymous(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestView_IsACopy(t *testing.T) {
	ctx := context.Background()
	e := New(anon("a1"), nil, newStubLocal())
	v, _ := e.AddItem(ctx, AddInput{ProductID: "P1", Quantity: 1})
	v.Lines[0].Quantity = 99

	if e.Lines()[0].Quantity != 1 || e.Totals().TotalItems != 1 {
		t.Fatalf("expected engine state unaffected by caller mutation")
	}
}
