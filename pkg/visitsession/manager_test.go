package visitsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"vinotracker/models"
)

// fakeStore records calls and simulates the persistence layer in memory.
type fakeStore struct {
	mu sync.Mutex

	openVisit *models.Visit
	visits    map[uuid.UUID]*models.Visit
	orders    []*models.Order

	notesSaves []string
	draftSaves [][]models.OrderItem

	failCreateVisit bool
	failNotes       bool
	failDraft       bool
	failClose       bool
	failOrder       bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{visits: make(map[uuid.UUID]*models.Visit)}
}

var errBoom = errors.New("boom")

func (f *fakeStore) GetOpenVisit(ctx context.Context, repID uuid.UUID) (*models.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openVisit == nil {
		return nil, nil
	}
	v := *f.openVisit
	return &v, nil
}

func (f *fakeStore) CreateVisit(ctx context.Context, v *models.Visit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateVisit {
		return errBoom
	}
	if f.openVisit != nil {
		return fmt.Errorf("open visit already exists")
	}
	v.ID = uuid.New()
	f.visits[v.ID] = v
	f.openVisit = v
	return nil
}

func (f *fakeStore) UpdateVisitNotes(ctx context.Context, visitID uuid.UUID, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNotes {
		return errBoom
	}
	v, ok := f.visits[visitID]
	if !ok {
		return fmt.Errorf("visit not found")
	}
	v.Notes = notes
	f.notesSaves = append(f.notesSaves, notes)
	return nil
}

func (f *fakeStore) UpdateVisitDraft(ctx context.Context, visitID uuid.UUID, items []models.OrderItem, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDraft {
		return errBoom
	}
	v, ok := f.visits[visitID]
	if !ok {
		return fmt.Errorf("visit not found")
	}
	if version <= v.DraftVersion {
		return fmt.Errorf("stale draft version %d", version)
	}
	raw, _ := json.Marshal(items)
	v.DraftItems = raw
	v.DraftVersion = version
	f.draftSaves = append(f.draftSaves, items)
	return nil
}

func (f *fakeStore) ClearVisitDraft(ctx context.Context, visitID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[visitID]
	if !ok {
		return fmt.Errorf("visit not found")
	}
	v.DraftItems = []byte("[]")
	v.DraftVersion++
	return nil
}

func (f *fakeStore) CloseVisit(ctx context.Context, visitID uuid.UUID, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClose {
		return errBoom
	}
	v, ok := f.visits[visitID]
	if !ok || v.EndTime != nil {
		return fmt.Errorf("no open visit")
	}
	v.EndTime = &endedAt
	f.openVisit = nil
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOrder {
		return errBoom
	}
	o.ID = uuid.New()
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeStore) lastNotes() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notesSaves) == 0 {
		return ""
	}
	return f.notesSaves[len(f.notesSaves)-1]
}

func newManager(t *testing.T, s Store) *Manager {
	t.Helper()
	return New(Config{
		Store:    s,
		RepID:    uuid.New(),
		Debounce: 20 * time.Millisecond,
	})
}

func product(name string, price float64) models.Product {
	return models.Product{ID: uuid.New(), Name: name, Description: name, Price: price}
}

func TestStartTransitionsToActive(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	clientID := uuid.New()

	lat, lng := -33.9, 18.4
	v, err := m.Start(context.Background(), clientID, &lat, &lng)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != StateActive {
		t.Errorf("state = %s, expected active", m.State())
	}
	if v.ClientID != clientID {
		t.Errorf("visit client = %s, expected %s", v.ClientID, clientID)
	}
	if v.EndTime != nil {
		t.Error("new visit already has an end time")
	}
}

func TestStartRejectedWhileActive(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)

	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	_, err := m.Start(context.Background(), uuid.New(), nil, nil)
	if !errors.Is(err, ErrVisitInProgress) {
		t.Errorf("second Start error = %v, expected ErrVisitInProgress", err)
	}
}

func TestStartRejectsBadCoordinates(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)

	lat, lng := 95.0, 10.0
	if _, err := m.Start(context.Background(), uuid.New(), &lat, &lng); err == nil {
		t.Fatal("expected coordinate validation error")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s after rejected start, expected idle", m.State())
	}
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	fs := newFakeStore()
	fs.failCreateVisit = true
	m := newManager(t, fs)

	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); !errors.Is(err, errBoom) {
		t.Fatalf("Start error = %v, expected boom", err)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, expected idle", m.State())
	}
	// The failure is retryable.
	fs.failCreateVisit = false
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
}

func TestNotesDebounce(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	// Simulated typing: each edit resets the timer, so only the final text
	// is saved once the rep goes quiet.
	for _, text := range []string{"h", "he", "hel", "hello"} {
		if err := m.EditNotes(text); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)

	fs.mu.Lock()
	saves := len(fs.notesSaves)
	fs.mu.Unlock()
	if saves != 1 {
		t.Errorf("notes saved %d times, expected 1", saves)
	}
	if got := fs.lastNotes(); got != "hello" {
		t.Errorf("saved notes = %q, expected %q", got, "hello")
	}
}

func TestEndFlushesUnsavedNotes(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	// Edit and end immediately, inside the debounce window.
	if err := m.EditNotes("final thoughts"); err != nil {
		t.Fatal(err)
	}
	if err := m.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}

	if got := fs.lastNotes(); got != "final thoughts" {
		t.Errorf("notes at end = %q, expected %q", got, "final thoughts")
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s after end, expected idle", m.State())
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, v := range fs.visits {
		if v.EndTime == nil {
			t.Error("visit still open after End")
		}
	}
}

func TestEndFailureStaysActive(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	fs.failClose = true
	if err := m.End(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("End error = %v, expected boom", err)
	}
	if m.State() != StateActive {
		t.Errorf("state = %s, expected active for retry", m.State())
	}

	fs.failClose = false
	if err := m.End(context.Background()); err != nil {
		t.Fatalf("retry End: %v", err)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, expected idle", m.State())
	}
}

func TestDraftPersistsImmediately(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	p := product("Pinotage", 120)
	if err := m.SetQuantity(context.Background(), p, 2); err != nil {
		t.Fatal(err)
	}
	if err := m.SetQuantity(context.Background(), p, 3); err != nil {
		t.Fatal(err)
	}

	fs.mu.Lock()
	saves := len(fs.draftSaves)
	fs.mu.Unlock()
	if saves != 2 {
		t.Errorf("draft saved %d times, expected one save per change (2)", saves)
	}

	draft := m.Draft()
	if len(draft) != 1 || draft[0].Quantity != 3 {
		t.Fatalf("draft = %+v, expected single line with quantity 3", draft)
	}
	if draft[0].Total != 360 {
		t.Errorf("line total = %v, expected 360", draft[0].Total)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	p := product("Shiraz", 90)
	if err := m.SetQuantity(context.Background(), p, 2); err != nil {
		t.Fatal(err)
	}
	if err := m.SetQuantity(context.Background(), p, 0); err != nil {
		t.Fatal(err)
	}
	if len(m.Draft()) != 0 {
		t.Errorf("draft = %+v, expected empty", m.Draft())
	}
}

func TestToggleFreeStock(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	wine := product("Cabernet", 150)
	glasses := product("Glasses", 40)
	if err := m.SetQuantity(context.Background(), wine, 2); err != nil {
		t.Fatal(err)
	}
	if err := m.SetQuantity(context.Background(), glasses, 5); err != nil {
		t.Fatal(err)
	}

	if err := m.ToggleFreeStock(context.Background(), wine.ID); err != nil {
		t.Fatal(err)
	}

	var wineLine, glassLine *models.OrderItem
	draft := m.Draft()
	for i := range draft {
		switch draft[i].ProductID {
		case wine.ID:
			wineLine = &draft[i]
		case glasses.ID:
			glassLine = &draft[i]
		}
	}
	if wineLine == nil || glassLine == nil {
		t.Fatal("draft lines missing")
	}
	if wineLine.Price != 0 || wineLine.Total != 0 {
		t.Errorf("free-stock line price/total = %v/%v, expected 0/0", wineLine.Price, wineLine.Total)
	}
	if wineLine.CatalogPrice != 150 {
		t.Errorf("catalog price = %v, expected preserved 150", wineLine.CatalogPrice)
	}
	if glassLine.Total != 200 {
		t.Errorf("untouched line total = %v, expected 200", glassLine.Total)
	}
	if m.DraftTotal() != 200 {
		t.Errorf("draft total = %v, expected 200", m.DraftTotal())
	}

	// Toggling back restores the catalog price.
	if err := m.ToggleFreeStock(context.Background(), wine.ID); err != nil {
		t.Fatal(err)
	}
	if m.DraftTotal() != 500 {
		t.Errorf("draft total after untoggle = %v, expected 500", m.DraftTotal())
	}
}

func TestPlaceOrderEmptyRejected(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := m.PlaceOrder(context.Background()); !errors.Is(err, ErrEmptyOrder) {
		t.Errorf("PlaceOrder error = %v, expected ErrEmptyOrder", err)
	}
	if len(fs.orders) != 0 {
		t.Error("order record created for an empty draft")
	}
}

func TestPlaceOrderSnapshotsAndClearsDraft(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	p := product("Merlot", 110)
	if err := m.SetQuantity(context.Background(), p, 4); err != nil {
		t.Fatal(err)
	}

	order, err := m.PlaceOrder(context.Background())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.TotalAmount != 440 {
		t.Errorf("order total = %v, expected 440", order.TotalAmount)
	}
	items, err := order.OrderItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Quantity != 4 {
		t.Fatalf("order items = %+v, expected single line qty 4", items)
	}
	if len(m.Draft()) != 0 {
		t.Error("draft not cleared after placing order")
	}

	// The persisted draft is cleared too.
	fs.mu.Lock()
	v := fs.visits[order.VisitID]
	fs.mu.Unlock()
	if string(v.DraftItems) != "[]" {
		t.Errorf("persisted draft = %s, expected []", v.DraftItems)
	}
}

func TestPlaceOrderFailureKeepsDraft(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.SetQuantity(context.Background(), product("Rosé", 80), 1); err != nil {
		t.Fatal(err)
	}

	fs.failOrder = true
	if _, err := m.PlaceOrder(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("PlaceOrder error = %v, expected boom", err)
	}
	if len(m.Draft()) != 1 {
		t.Error("draft lost after failed order placement")
	}
}

func TestBackgroundSaveFailureNoticesDoNotBlock(t *testing.T) {
	fs := newFakeStore()
	var mu sync.Mutex
	var notices []Notice
	m := New(Config{
		Store:    fs,
		RepID:    uuid.New(),
		Debounce: 10 * time.Millisecond,
		Notify: func(n Notice) {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		},
	})
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}

	fs.failDraft = true
	// The edit itself succeeds; only the persistence fails, via notice.
	if err := m.SetQuantity(context.Background(), product("Chenin", 70), 1); err != nil {
		t.Fatalf("SetQuantity returned %v, expected nil for background failure", err)
	}
	if len(m.Draft()) != 1 {
		t.Error("in-memory draft lost on background save failure")
	}

	fs.failNotes = true
	if err := m.EditNotes("typed through the outage"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	n := len(notices)
	mu.Unlock()
	if n < 2 {
		t.Errorf("got %d notices, expected draft and notes failures", n)
	}

	// Notes stay dirty, so a later flush retries and succeeds.
	fs.failNotes = false
	if err := m.FlushNotes(context.Background()); err != nil {
		t.Fatalf("FlushNotes: %v", err)
	}
	if got := fs.lastNotes(); got != "typed through the outage" {
		t.Errorf("flushed notes = %q", got)
	}
}

func TestResumeAdoptsOpenVisit(t *testing.T) {
	fs := newFakeStore()
	repID := uuid.New()

	// Seed an open visit with notes and a draft, as left by a crashed session.
	items := []models.OrderItem{{
		ProductID: uuid.New(), ProductName: "Pinot Noir",
		Price: 130, CatalogPrice: 130, Quantity: 2, Total: 260,
	}}
	raw, _ := json.Marshal(items)
	v := &models.Visit{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		RepID:        repID,
		StartTime:    time.Now().Add(-10 * time.Minute),
		Notes:        "halfway through",
		DraftItems:   raw,
		DraftVersion: 7,
	}
	fs.visits[v.ID] = v
	fs.openVisit = v

	m := New(Config{Store: fs, RepID: repID, Debounce: 10 * time.Millisecond})
	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if m.State() != StateActive {
		t.Fatalf("state = %s, expected active", m.State())
	}
	if m.Notes() != "halfway through" {
		t.Errorf("notes = %q", m.Notes())
	}
	draft := m.Draft()
	if len(draft) != 1 || draft[0].Total != 260 {
		t.Errorf("draft = %+v", draft)
	}

	// Draft writes continue from the persisted version, not from zero.
	if err := m.SetQuantity(context.Background(), product("Pinot Noir", 130), 3); err != nil {
		t.Fatal(err)
	}
	fs.mu.Lock()
	ver := fs.visits[v.ID].DraftVersion
	fs.mu.Unlock()
	if ver != 8 {
		t.Errorf("draft version = %d, expected 8", ver)
	}
}

func TestResumeWithNoOpenVisitIsIdle(t *testing.T) {
	fs := newFakeStore()
	m := newManager(t, fs)

	// Local state claims an active visit; the store says otherwise and wins.
	if _, err := m.Start(context.Background(), uuid.New(), nil, nil); err != nil {
		t.Fatal(err)
	}
	fs.mu.Lock()
	fs.openVisit = nil
	fs.mu.Unlock()

	if err := m.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if m.State() != StateIdle {
		t.Errorf("state = %s, expected idle after reconciliation", m.State())
	}
}

func TestStaleDraftWriteRejectedByStore(t *testing.T) {
	fs := newFakeStore()
	repID := uuid.New()
	v := &models.Visit{ID: uuid.New(), ClientID: uuid.New(), RepID: repID,
		StartTime: time.Now(), DraftVersion: 5}
	fs.visits[v.ID] = v
	fs.openVisit = v

	// A write carrying an old version (a slow request landing late) must not
	// clobber the newer persisted draft.
	err := fs.UpdateVisitDraft(context.Background(), v.ID,
		[]models.OrderItem{{ProductID: uuid.New(), Quantity: 1}}, 3)
	if err == nil {
		t.Fatal("stale draft write accepted")
	}
	if v.DraftVersion != 5 {
		t.Errorf("draft version moved to %d on stale write", v.DraftVersion)
	}
}
