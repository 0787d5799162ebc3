// Package visitsession manages a representative's single in-progress visit:
// resuming it after a restart, debouncing notes saves, persisting the draft
// order on every change, and finalizing the visit.
package visitsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vinotracker/metrics"
	"vinotracker/models"
	"vinotracker/utils"
)

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrVisitInProgress rejects a start while another visit is active.
	ErrVisitInProgress = errors.New("a visit is already in progress")
	// ErrNoActiveVisit rejects visit operations outside the Active state.
	ErrNoActiveVisit = errors.New("no active visit")
	// ErrEmptyOrder rejects placing an order with no items.
	ErrEmptyOrder = errors.New("order must contain at least one item")
)

// Store is the data-access collaborator the manager drives. *store.Store
// satisfies it; tests use a fake.
type Store interface {
	GetOpenVisit(ctx context.Context, repID uuid.UUID) (*models.Visit, error)
	CreateVisit(ctx context.Context, v *models.Visit) error
	UpdateVisitNotes(ctx context.Context, visitID uuid.UUID, notes string) error
	UpdateVisitDraft(ctx context.Context, visitID uuid.UUID, items []models.OrderItem, version int64) error
	ClearVisitDraft(ctx context.Context, visitID uuid.UUID) error
	CloseVisit(ctx context.Context, visitID uuid.UUID, endedAt time.Time) error
	CreateOrder(ctx context.Context, o *models.Order) error
}

// Notice reports a background save failure. These are soft: the user keeps
// editing and the next successful save supersedes the failure.
type Notice struct {
	Op  string
	Err error
}

// Config wires a Manager. Store and RepID are required; everything else has
// a usable default.
type Config struct {
	Store   Store
	RepID   uuid.UUID
	Log     *slog.Logger
	Metrics *metrics.Metrics
	// Notify receives background save failures; called without the manager
	// lock held. Nil discards them (they are still logged).
	Notify func(Notice)
	// Debounce is the quiet period before edited notes are saved.
	Debounce time.Duration
	// SaveTimeout bounds background store calls.
	SaveTimeout time.Duration
	// Now stubs the clock in tests.
	Now func() time.Time
}

const (
	defaultDebounce    = 3 * time.Second
	defaultSaveTimeout = 10 * time.Second
)

// Manager is the per-representative session state machine. All methods are
// safe for concurrent use.
type Manager struct {
	store   Store
	repID   uuid.UUID
	log     *slog.Logger
	metrics *metrics.Metrics
	notify  func(Notice)

	debounce    time.Duration
	saveTimeout time.Duration
	now         func() time.Time

	mu           sync.Mutex
	state        State
	visit        *models.Visit
	notes        string
	notesDirty   bool
	notesTimer   *time.Timer
	draft        []models.OrderItem
	draftVersion int64
}

func New(cfg Config) *Manager {
	m := &Manager{
		store:       cfg.Store,
		repID:       cfg.RepID,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		notify:      cfg.Notify,
		debounce:    cfg.Debounce,
		saveTimeout: cfg.SaveTimeout,
		now:         cfg.Now,
		state:       StateIdle,
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.debounce <= 0 {
		m.debounce = defaultDebounce
	}
	if m.saveTimeout <= 0 {
		m.saveTimeout = defaultSaveTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Visit returns a copy of the active visit, or nil when idle.
func (m *Manager) Visit() *models.Visit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visit == nil {
		return nil
	}
	v := *m.visit
	return &v
}

// Notes returns the current (possibly unsaved) notes text.
func (m *Manager) Notes() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes
}

// Draft returns a copy of the in-memory draft order.
func (m *Manager) Draft() []models.OrderItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OrderItem, len(m.draft))
	copy(out, m.draft)
	return out
}

// DraftTotal sums the draft line totals.
func (m *Manager) DraftTotal() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.OrderTotal(m.draft)
}

// Resume reconciles with the store: the persisted open visit, if any, is
// authoritative and replaces whatever local state the manager held. Call on
// session start and after reconnects.
func (m *Manager) Resume(ctx context.Context) error {
	v, err := m.store.GetOpenVisit(ctx, m.repID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopNotesTimerLocked()
	if v == nil {
		m.resetLocked()
		return nil
	}
	items, err := v.DraftOrderItems()
	if err != nil {
		// A corrupt draft must not strand the visit; drop the draft and
		// carry on with the visit itself.
		m.log.Warn("discarding undecodable draft", "visit_id", v.ID, "error", err)
		items = nil
	}
	m.state = StateActive
	m.visit = v
	m.notes = v.Notes
	m.notesDirty = false
	m.draft = items
	m.draftVersion = v.DraftVersion
	return nil
}

// Start begins a visit to the client. It is rejected unless the manager is
// Idle; coordinates, when supplied, must be valid. On store failure the
// manager returns to Idle and the error is the caller's to surface.
func (m *Manager) Start(ctx context.Context, clientID uuid.UUID, lat, lng *float64) (*models.Visit, error) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return nil, ErrVisitInProgress
	}
	if lat != nil && lng != nil {
		if err := utils.ValidateCoordinate(*lat, *lng); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	m.state = StateStarting
	m.mu.Unlock()

	v := &models.Visit{
		ClientID:  clientID,
		RepID:     m.repID,
		StartTime: m.now().UTC(),
		Latitude:  lat,
		Longitude: lng,
	}
	err := m.store.CreateVisit(ctx, v)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateIdle
		m.countVisitStart(metrics.Failed)
		return nil, err
	}
	m.state = StateActive
	m.visit = v
	m.notes = ""
	m.notesDirty = false
	m.draft = nil
	m.draftVersion = 0
	m.countVisitStart(metrics.OK)
	out := *v
	return &out, nil
}

// EditNotes replaces the notes text and (re)arms the debounce timer: the
// save fires after a quiet period, so rapid typing produces at most one
// in-flight save.
func (m *Manager) EditNotes(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return ErrNoActiveVisit
	}
	if text == m.notes {
		return nil
	}
	m.notes = text
	m.notesDirty = true
	m.stopNotesTimerLocked()
	m.notesTimer = time.AfterFunc(m.debounce, m.saveNotesDebounced)
	return nil
}

func (m *Manager) saveNotesDebounced() {
	ctx, cancel := context.WithTimeout(context.Background(), m.saveTimeout)
	defer cancel()

	m.mu.Lock()
	if m.state != StateActive || !m.notesDirty {
		m.mu.Unlock()
		return
	}
	err := m.saveNotesLocked(ctx)
	m.mu.Unlock()

	if err != nil {
		// Non-fatal: dirty stays set, so the next timer or flush retries.
		m.log.Warn("notes auto-save failed", "error", err)
		m.sendNotice("save notes", err)
	}
}

// FlushNotes saves unsaved notes synchronously. A no-op when nothing is
// dirty. Called on unmount and before ending a visit.
func (m *Manager) FlushNotes(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive && m.state != StateEnding {
		return ErrNoActiveVisit
	}
	m.stopNotesTimerLocked()
	return m.saveNotesLocked(ctx)
}

func (m *Manager) saveNotesLocked(ctx context.Context) error {
	if !m.notesDirty {
		return nil
	}
	if err := m.store.UpdateVisitNotes(ctx, m.visit.ID, m.notes); err != nil {
		m.countNotesSave(metrics.Failed)
		return err
	}
	m.notesDirty = false
	m.visit.Notes = m.notes
	m.countNotesSave(metrics.OK)
	return nil
}

// SetQuantity sets the draft quantity for a product, removing the line at
// zero or below. The snapshot is persisted immediately, with no debounce; a
// persistence failure is reported through the notice callback and does not
// block further edits.
func (m *Manager) SetQuantity(ctx context.Context, p models.Product, quantity int) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNoActiveVisit
	}
	if quantity <= 0 {
		m.removeLineLocked(p.ID)
	} else {
		freeStock := false
		if existing := m.findLineLocked(p.ID); existing != nil {
			freeStock = existing.IsFreeStock
		}
		line := models.BuildOrderItem(p, quantity, freeStock)
		m.upsertLineLocked(line)
	}
	err := m.persistDraftLocked(ctx)
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("draft save failed", "error", err)
		m.sendNotice("save draft", err)
	}
	return nil
}

// ToggleFreeStock flips the free-stock flag on a draft line, zeroing (or
// restoring) its charged price and total. Other lines are untouched.
func (m *Manager) ToggleFreeStock(ctx context.Context, productID uuid.UUID) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNoActiveVisit
	}
	line := m.findLineLocked(productID)
	if line == nil {
		m.mu.Unlock()
		return fmt.Errorf("product %s is not in the draft", productID)
	}
	line.SetFreeStock(!line.IsFreeStock)
	err := m.persistDraftLocked(ctx)
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("draft save failed", "error", err)
		m.sendNotice("save draft", err)
	}
	return nil
}

// PlaceOrder snapshots the draft into an immutable order and clears the
// draft, in memory and in the store. Order creation failure aborts the whole
// action and leaves the draft intact for retry.
func (m *Manager) PlaceOrder(ctx context.Context) (*models.Order, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return nil, ErrNoActiveVisit
	}
	if len(m.draft) == 0 {
		m.mu.Unlock()
		return nil, ErrEmptyOrder
	}
	items := make([]models.OrderItem, len(m.draft))
	copy(items, m.draft)
	visitID := m.visit.ID
	clientID := m.visit.ClientID
	m.mu.Unlock()

	order, err := models.NewOrder(clientID, m.repID, visitID, items)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	m.countOrderPlaced()

	m.mu.Lock()
	m.draft = nil
	clearErr := m.store.ClearVisitDraft(ctx, visitID)
	if clearErr == nil {
		m.draftVersion++
	}
	m.mu.Unlock()

	if clearErr != nil {
		// The order exists; a lingering persisted draft is only cosmetic
		// and the next draft write supersedes it.
		m.log.Warn("clearing persisted draft failed", "error", clearErr)
		m.sendNotice("clear draft", clearErr)
	}
	return order, nil
}

// End flushes unsaved notes, then finalizes the visit. Either failure leaves
// the manager Active so the rep can retry.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return ErrNoActiveVisit
	}
	m.state = StateEnding
	m.stopNotesTimerLocked()

	if err := m.saveNotesLocked(ctx); err != nil {
		m.state = StateActive
		m.mu.Unlock()
		m.countVisitEnd(metrics.Failed)
		return err
	}

	if err := m.store.CloseVisit(ctx, m.visit.ID, m.now().UTC()); err != nil {
		m.state = StateActive
		m.mu.Unlock()
		m.countVisitEnd(metrics.Failed)
		return err
	}

	m.resetLocked()
	m.mu.Unlock()
	m.countVisitEnd(metrics.OK)
	return nil
}

// ---- internals, all called with mu held ----

func (m *Manager) resetLocked() {
	m.state = StateIdle
	m.visit = nil
	m.notes = ""
	m.notesDirty = false
	m.draft = nil
	m.draftVersion = 0
}

func (m *Manager) stopNotesTimerLocked() {
	if m.notesTimer != nil {
		m.notesTimer.Stop()
		m.notesTimer = nil
	}
}

func (m *Manager) findLineLocked(productID uuid.UUID) *models.OrderItem {
	for i := range m.draft {
		if m.draft[i].ProductID == productID {
			return &m.draft[i]
		}
	}
	return nil
}

func (m *Manager) upsertLineLocked(line models.OrderItem) {
	for i := range m.draft {
		if m.draft[i].ProductID == line.ProductID {
			m.draft[i] = line
			return
		}
	}
	m.draft = append(m.draft, line)
}

func (m *Manager) removeLineLocked(productID uuid.UUID) {
	out := m.draft[:0]
	for _, it := range m.draft {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	m.draft = out
}

// persistDraftLocked writes the snapshot under the next version. The version
// increments even on failure so a retry never reuses a number an in-flight
// write may still land with.
func (m *Manager) persistDraftLocked(ctx context.Context) error {
	m.draftVersion++
	items := make([]models.OrderItem, len(m.draft))
	copy(items, m.draft)
	if err := m.store.UpdateVisitDraft(ctx, m.visit.ID, items, m.draftVersion); err != nil {
		m.countDraftSave(metrics.Failed)
		return err
	}
	m.countDraftSave(metrics.OK)
	return nil
}

// ---- notices and metrics, called without the lock ----

func (m *Manager) sendNotice(op string, err error) {
	if m.notify != nil {
		m.notify(Notice{Op: op, Err: err})
	}
}

func (m *Manager) countVisitStart(status string) {
	if m.metrics != nil {
		m.metrics.VisitStarts.WithLabelValues(status).Inc()
	}
}

func (m *Manager) countVisitEnd(status string) {
	if m.metrics != nil {
		m.metrics.VisitEnds.WithLabelValues(status).Inc()
	}
}

func (m *Manager) countNotesSave(status string) {
	if m.metrics != nil {
		m.metrics.NotesSaves.WithLabelValues(status).Inc()
	}
}

func (m *Manager) countDraftSave(status string) {
	if m.metrics != nil {
		m.metrics.DraftSaves.WithLabelValues(status).Inc()
	}
}

func (m *Manager) countOrderPlaced() {
	if m.metrics != nil {
		m.metrics.OrdersPlaced.Inc()
	}
}
