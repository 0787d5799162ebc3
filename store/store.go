// Package store is the data-access layer. Every read and write the service
// performs goes through here; driver errors are classified into Kinds at this
// boundary and never leak as raw strings.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"vinotracker/metrics"
	"vinotracker/models"
)

// Store wraps a gorm handle. Construct once in main and inject.
type Store struct {
	db      *gorm.DB
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New builds a Store. metrics may be nil in tests.
func New(db *gorm.DB, log *slog.Logger, m *metrics.Metrics) *Store {
	return &Store{db: db, log: log, metrics: m}
}

// fail classifies err and counts it before returning. Nil errors pass
// through untouched.
func (s *Store) fail(op string, err error) error {
	e := wrap(op, err)
	if e != nil && s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(KindOf(e).String()).Inc()
	}
	return e
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.UserProfile) error {
	return s.fail("create user", s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	var u models.UserProfile
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, s.fail("get user", err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var u models.UserProfile
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, s.fail("get user by email", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.UserProfile, error) {
	var users []models.UserProfile
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, s.fail("list users", err)
	}
	return users, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.UserProfile{}).Count(&n).Error; err != nil {
		return 0, s.fail("count users", err)
	}
	return n, nil
}

// ---- clients ----

// lastVisitExpr derives last_visit_date from the newest completed visit.
const lastVisitExpr = `(SELECT MAX(v.end_time) FROM visits v
	WHERE v.client_id = clients.id AND v.end_time IS NOT NULL)`

func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	if err := c.Validate(); err != nil {
		return validationErr("create client", err.Error())
	}
	return s.fail("create client", s.db.WithContext(ctx).Create(c).Error)
}

func (s *Store) UpdateClient(ctx context.Context, c *models.Client) error {
	if err := c.Validate(); err != nil {
		return validationErr("update client", err.Error())
	}
	res := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"name":             c.Name,
			"email":            c.Email,
			"phone":            c.Phone,
			"address":          c.Address,
			"consumption_type": c.ConsumptionType,
			"call_frequency":   c.CallFrequency,
			"assigned_rep_id":  c.AssignedRepID,
		})
	if res.Error != nil {
		return s.fail("update client", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("update client", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Client{}, "id = ?", id)
	if res.Error != nil {
		return s.fail("delete client", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("delete client", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).
		Select("clients.*, "+lastVisitExpr+" AS last_visit_date").
		First(&c, "clients.id = ?", id).Error
	if err != nil {
		return nil, s.fail("get client", err)
	}
	return &c, nil
}

// ListClients returns clients with the derived last_visit_date populated.
// A nil repID returns every client; otherwise only that rep's assignments.
func (s *Store) ListClients(ctx context.Context, repID *uuid.UUID) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Model(&models.Client{}).
		Select("clients.*, " + lastVisitExpr + " AS last_visit_date").
		Order("clients.name ASC")
	if repID != nil {
		q = q.Where("clients.assigned_rep_id = ?", *repID)
	}
	var clients []models.Client
	if err := q.Find(&clients).Error; err != nil {
		return nil, s.fail("list clients", err)
	}
	return clients, nil
}

// ---- visits ----

// GetOpenVisit returns the rep's active visit, or (nil, nil) when there is
// none; a missing open visit is the normal idle case, not an error.
func (s *Store) GetOpenVisit(ctx context.Context, repID uuid.UUID) (*models.Visit, error) {
	var v models.Visit
	err := s.db.WithContext(ctx).
		Where("rep_id = ? AND end_time IS NULL", repID).
		Order("start_time DESC").
		First(&v).Error
	if err != nil {
		if classify(err) == KindNotFound {
			return nil, nil
		}
		return nil, s.fail("get open visit", err)
	}
	return &v, nil
}

// CreateVisit inserts a new open visit. The partial unique index on
// (rep_id) WHERE end_time IS NULL makes a second concurrent start surface as
// KindConflict even if both requests pass the open-visit precheck.
func (s *Store) CreateVisit(ctx context.Context, v *models.Visit) error {
	if v.StartTime.IsZero() {
		v.StartTime = time.Now().UTC()
	}
	return s.fail("create visit", s.db.WithContext(ctx).Create(v).Error)
}

func (s *Store) GetVisit(ctx context.Context, id uuid.UUID) (*models.Visit, error) {
	var v models.Visit
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, s.fail("get visit", err)
	}
	return &v, nil
}

func (s *Store) UpdateVisitNotes(ctx context.Context, visitID uuid.UUID, notes string) error {
	res := s.db.WithContext(ctx).Model(&models.Visit{}).
		Where("id = ? AND end_time IS NULL", visitID).
		Update("notes", notes)
	if res.Error != nil {
		return s.fail("update visit notes", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("update visit notes", gorm.ErrRecordNotFound)
	}
	return nil
}

// UpdateVisitDraft persists a draft snapshot guarded by a monotonic version.
// A write carrying a version at or below the stored one is stale (an earlier
// save landing late) and is rejected with KindConflict.
func (s *Store) UpdateVisitDraft(ctx context.Context, visitID uuid.UUID, items []models.OrderItem, version int64) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return validationErr("update visit draft", err.Error())
	}
	res := s.db.WithContext(ctx).Model(&models.Visit{}).
		Where("id = ? AND end_time IS NULL AND draft_version < ?", visitID, version).
		Updates(map[string]interface{}{
			"draft_items":   raw,
			"draft_version": version,
		})
	if res.Error != nil {
		return s.fail("update visit draft", res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish a stale write from a missing/closed visit.
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Visit{}).
			Where("id = ? AND end_time IS NULL", visitID).Count(&n).Error; err != nil {
			return s.fail("update visit draft", err)
		}
		if n == 0 {
			return s.fail("update visit draft", gorm.ErrRecordNotFound)
		}
		s.log.Debug("dropped stale draft snapshot", "visit_id", visitID, "version", version)
		return conflictErr("update visit draft", "stale draft version")
	}
	return nil
}

// AddVisitPhotos appends photo URLs to an open visit.
func (s *Store) AddVisitPhotos(ctx context.Context, visitID uuid.UUID, photos []string) error {
	res := s.db.WithContext(ctx).Model(&models.Visit{}).
		Where("id = ? AND end_time IS NULL", visitID).
		Update("photos", gorm.Expr("array_cat(COALESCE(photos, '{}'), ?)", pq.StringArray(photos)))
	if res.Error != nil {
		return s.fail("add visit photos", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("add visit photos", gorm.ErrRecordNotFound)
	}
	return nil
}

// ClearVisitDraft empties the persisted draft, bumping the version so any
// in-flight older snapshot cannot resurrect it.
func (s *Store) ClearVisitDraft(ctx context.Context, visitID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Visit{}).
		Where("id = ?", visitID).
		Updates(map[string]interface{}{
			"draft_items":   gorm.Expr("'[]'::jsonb"),
			"draft_version": gorm.Expr("draft_version + 1"),
		})
	if res.Error != nil {
		return s.fail("clear visit draft", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("clear visit draft", gorm.ErrRecordNotFound)
	}
	return nil
}

// CloseVisit finalizes an open visit by stamping its end time.
func (s *Store) CloseVisit(ctx context.Context, visitID uuid.UUID, endedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Visit{}).
		Where("id = ? AND end_time IS NULL", visitID).
		Update("end_time", endedAt)
	if res.Error != nil {
		return s.fail("close visit", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("close visit", gorm.ErrRecordNotFound)
	}
	return nil
}

// ListClientVisits returns a client's visits newest first, optionally
// excluding one (the caller's current visit).
func (s *Store) ListClientVisits(ctx context.Context, clientID uuid.UUID, exclude *uuid.UUID) ([]models.Visit, error) {
	q := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("start_time DESC")
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var visits []models.Visit
	if err := q.Find(&visits).Error; err != nil {
		return nil, s.fail("list client visits", err)
	}
	return visits, nil
}

// ListVisits returns all visits started at or after since (all time when
// since is nil), oldest first. Report aggregation walks this.
func (s *Store) ListVisits(ctx context.Context, since *time.Time) ([]models.Visit, error) {
	q := s.db.WithContext(ctx).Order("start_time ASC")
	if since != nil {
		q = q.Where("start_time >= ?", *since)
	}
	var visits []models.Visit
	if err := q.Find(&visits).Error; err != nil {
		return nil, s.fail("list visits", err)
	}
	return visits, nil
}

// ---- orders ----

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.fail("create order", s.db.WithContext(ctx).Create(o).Error)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, s.fail("get order", err)
	}
	return &o, nil
}

// OrderFilter narrows ListOrders; nil fields are ignored.
type OrderFilter struct {
	ClientID *uuid.UUID
	RepID    *uuid.UUID
}

func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.RepID != nil {
		q = q.Where("rep_id = ?", *f.RepID)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, s.fail("list orders", err)
	}
	return orders, nil
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := p.Validate(); err != nil {
		return validationErr("create product", err.Error())
	}
	return s.fail("create product", s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := p.Validate(); err != nil {
		return validationErr("update product", err.Error())
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
		})
	if res.Error != nil {
		return s.fail("update product", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("update product", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return s.fail("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("delete product", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, s.fail("get product", err)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&products).Error; err != nil {
		return nil, s.fail("list products", err)
	}
	return products, nil
}
