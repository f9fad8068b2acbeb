// Package services – BookingService
//
// This file implements the BookingService, the orchestration layer over the
// booking repository. It validates and normalizes input before anything
// reaches storage, derives system fields (reference codes, timestamps),
// serves reads through the short-lived cache, and keeps that cache coherent
// with writes: every successful mutation invalidates the affected entries
// before the call returns, so no caller can observe a stale cache hit once
// a mutation has completed.
//
// Every repository call is wrapped in a perf monitor start/end pair keyed
// by a stable per-operation name (bookings.list, bookings.get, ...), which
// feeds the slow-operation diagnostics without touching the common path.
//
// Service-level errors (ErrNotFound, ErrVersionConflict, *ValidationError,
// *StorageError) are returned for predictable cases so callers can map
// them consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/schedulo/go-booking-backend/internal/cache"
	"github.com/schedulo/go-booking-backend/internal/domain"
	"github.com/schedulo/go-booking-backend/internal/perf"
	"github.com/schedulo/go-booking-backend/internal/repo"
	"github.com/schedulo/go-booking-backend/internal/utils"
)

// bookingTimeRE matches the "HH:MM" wall-time format stored on bookings.
// Zero-padding matters: lexicographic order on the column is the sort order.
var bookingTimeRE = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidStatus reports whether s is one of the known booking statuses.
func ValidStatus(s string) bool {
	switch s {
	case domain.StatusPending, domain.StatusConfirmed, domain.StatusCompleted, domain.StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the from -> to status transition follows
// the documented state machine (pending -> confirmed -> completed, with
// cancellation allowed from pending or confirmed). The repository records
// whatever status callers request; this helper exists for business-rule
// layers that do want to enforce legality.
func CanTransition(from, to string) bool {
	switch from {
	case domain.StatusPending:
		return to == domain.StatusConfirmed || to == domain.StatusCancelled
	case domain.StatusConfirmed:
		return to == domain.StatusCompleted || to == domain.StatusCancelled
	}
	return false
}

// BookingItemInput describes one line item of a booking to create.
type BookingItemInput struct {
	ServiceName        string
	ServiceDescription string
	UnitPrice          float64
	Quantity           int
	LineTotal          float64
	Customizations     []domain.Customization
}

// CreateBookingInput carries everything needed to create a booking with
// its items. Reference is optional; a code is generated when empty. Status
// is optional and defaults to pending.
type CreateBookingInput struct {
	OwnerID       uint
	CustomerName  string
	CustomerEmail string
	Reference     string
	BookingDate   time.Time
	BookingTime   string
	TotalPrice    float64
	Discount      float64
	Status        string
	Items         []BookingItemInput
}

// BookingService coordinates the cache, repository, and perf monitor for
// all booking operations. Construct with NewBookingService; the zero value
// is not usable.
type BookingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache is the short-lived read cache; mutations keep it coherent.
	Cache *cache.Cache
	// Perf is the instrumentation clock wrapping every repository call.
	Perf *perf.Monitor

	// ListTTL / DetailTTL / StatsTTL bound how long list+count pages,
	// single bookings, and dashboard stats stay cached.
	ListTTL   time.Duration
	DetailTTL time.Duration
	StatsTTL  time.Duration

	// PageSizeDefault / PageSizeMax normalize caller pagination input.
	PageSizeDefault int
	PageSizeMax     int
}

// NewBookingService constructs a BookingService with the documented TTL
// defaults (5m lists and stats, 10m details) and 20/100 page sizing.
func NewBookingService(db *gorm.DB, c *cache.Cache, m *perf.Monitor) *BookingService {
	return &BookingService{
		DB:              db,
		Cache:           c,
		Perf:            m,
		ListTTL:         5 * time.Minute,
		DetailTTL:       10 * time.Minute,
		StatsTTL:        5 * time.Minute,
		PageSizeDefault: 20,
		PageSizeMax:     100,
	}
}

// List returns one page of an owner's bookings under the given filters,
// most recent first. Results are cached per owner+page+size+filter set for
// ListTTL. A zero ownerID is rejected: owner-scoped reads must never run
// unscoped.
func (s *BookingService) List(ctx context.Context, ownerID uint, page, pageSize int, f repo.BookingFilters) ([]domain.Booking, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	page, pageSize = utils.NormalizePage(page, pageSize, s.PageSizeDefault, s.PageSizeMax)
	f.Search = normalizeSearch(f.Search)

	done := s.begin("bookings.list", map[string]string{"owner_id": fmt.Sprint(ownerID), "page": fmt.Sprint(page)})
	defer done()

	key := cache.ListKey(ownerID, page, pageSize, filterDigest(f))
	if v, ok := s.Cache.Get(key); ok {
		if items, ok := v.([]domain.Booking); ok {
			return items, nil
		}
	}

	items, err := repo.ListBookingsPage(ctx, s.DB, ownerID, utils.Offset(page, pageSize), pageSize, f)
	if err != nil {
		return nil, storage("list bookings", err)
	}
	s.Cache.Set(key, items, s.ListTTL)
	return items, nil
}

// Count returns the total number of an owner's bookings under the given
// filters, cached independently of List so page renders avoid a count
// query per poll.
func (s *BookingService) Count(ctx context.Context, ownerID uint, f repo.BookingFilters) (int64, error) {
	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}
	f.Search = normalizeSearch(f.Search)

	done := s.begin("bookings.count", map[string]string{"owner_id": fmt.Sprint(ownerID)})
	defer done()

	key := cache.CountKey(ownerID, filterDigest(f))
	if v, ok := s.Cache.Get(key); ok {
		if total, ok := v.(int64); ok {
			return total, nil
		}
	}

	total, err := repo.CountBookings(ctx, s.DB, ownerID, f)
	if err != nil {
		return 0, storage("count bookings", err)
	}
	s.Cache.Set(key, total, s.ListTTL)
	return total, nil
}

// Get fetches a single booking with its items eagerly loaded, cached per
// id for DetailTTL. When ownerID is non-zero, ownership is re-checked on
// every call — including cache hits — and a booking owned by another
// tenant surfaces as ErrNotFound, identical to a missing row.
func (s *BookingService) Get(ctx context.Context, id, ownerID uint) (*domain.Booking, error) {
	done := s.begin("bookings.get", map[string]string{"booking_id": fmt.Sprint(id)})
	defer done()

	key := cache.BookingKey(id)
	if v, ok := s.Cache.Get(key); ok {
		if b, ok := v.(*domain.Booking); ok {
			return checkOwner(b, ownerID)
		}
	}

	// The row is fetched unscoped and cached once; the owner check applies
	// uniformly to cold and cached paths.
	b, err := repo.GetBooking(ctx, s.DB, id, 0)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storage("get booking", err)
	}
	s.Cache.Set(key, b, s.DetailTTL)
	return checkOwner(b, ownerID)
}

// Create validates the input, derives system fields (reference code,
// timestamps), and persists the booking with all items in one transaction.
// On success the owner's list/count/stats cache entries are invalidated
// before the call returns; the per-id cache needs nothing since the new id
// cannot have been cached yet.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*domain.Booking, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	done := s.begin("bookings.create", map[string]string{"owner_id": fmt.Sprint(in.OwnerID)})
	defer done()

	b := &domain.Booking{
		OwnerID:       in.OwnerID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(strings.ToLower(in.CustomerEmail)),
		Reference:     in.Reference,
		BookingDate:   in.BookingDate,
		BookingTime:   in.BookingTime,
		TotalPrice:    in.TotalPrice,
		Discount:      in.Discount,
		Status:        in.Status,
	}
	if b.Reference == "" {
		b.Reference = GenerateReference(in.BookingDate)
	}
	if b.Status == "" {
		b.Status = domain.StatusPending
	}

	items := make([]domain.BookingItem, len(in.Items))
	for i, it := range in.Items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		lineTotal := it.LineTotal
		if lineTotal == 0 {
			lineTotal = it.UnitPrice * float64(qty)
			for _, c := range it.Customizations {
				lineTotal += c.PriceDelta * float64(qty)
			}
		}
		items[i] = domain.BookingItem{
			ServiceName:        strings.TrimSpace(it.ServiceName),
			ServiceDescription: it.ServiceDescription,
			UnitPrice:          it.UnitPrice,
			Quantity:           qty,
			LineTotal:          lineTotal,
			Customizations:     it.Customizations,
		}
	}

	if err := repo.CreateBookingWithItems(ctx, s.DB, b, items); err != nil {
		return nil, storage("create booking", err)
	}

	s.Cache.DeletePrefix(cache.OwnerPrefix(in.OwnerID))
	return b, nil
}

// UpdateStatus sets a booking's status. expectedVersion, when non-nil, is
// the updated_at timestamp the caller last observed; a mismatch returns
// ErrVersionConflict and leaves the row unchanged. On success the per-id
// entry and the owner's list/count/stats entries are invalidated before
// returning.
func (s *BookingService) UpdateStatus(ctx context.Context, id uint, newStatus string, ownerID uint, expectedVersion *time.Time) error {
	if !ValidStatus(newStatus) {
		ve := &ValidationError{}
		ve.add("status", "must be one of pending, confirmed, completed, cancelled")
		return ve
	}

	done := s.begin("bookings.update_status", map[string]string{"booking_id": fmt.Sprint(id), "status": newStatus})
	defer done()

	err := repo.UpdateBookingStatus(ctx, s.DB, id, ownerID, newStatus, expectedVersion)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrVersionConflict):
		return ErrVersionConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return storage("update booking status", err)
	}

	s.Cache.Delete(cache.BookingKey(id))
	s.invalidateOwnerScope(ctx, id, ownerID)
	return nil
}

// BatchUpdateStatus applies newStatus to every booking in ids owned by
// ownerID with one bulk update and returns the count actually affected;
// non-matching ids are silently skipped. Per-id cache entries for every
// input id are invalidated regardless of whether the row matched — the
// staleness risk outweighs a few spurious evictions.
func (s *BookingService) BatchUpdateStatus(ctx context.Context, ids []uint, newStatus string, ownerID uint) (int64, error) {
	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}
	if !ValidStatus(newStatus) {
		ve := &ValidationError{}
		ve.add("status", "must be one of pending, confirmed, completed, cancelled")
		return 0, ve
	}

	done := s.begin("bookings.batch_update_status", map[string]string{"owner_id": fmt.Sprint(ownerID), "ids": fmt.Sprint(len(ids))})
	defer done()

	affected, err := repo.BatchUpdateBookingStatus(ctx, s.DB, ids, ownerID, newStatus)
	if err != nil {
		return 0, storage("batch update booking status", err)
	}

	for _, id := range ids {
		s.Cache.Delete(cache.BookingKey(id))
	}
	s.Cache.DeletePrefix(cache.OwnerPrefix(ownerID))
	return affected, nil
}

// DashboardStats returns the aggregate dashboard view for an owner, cached
// per owner+range for StatsTTL. rangeDays bounds only the recent-count
// window; a non-positive value falls back to 30 days.
func (s *BookingService) DashboardStats(ctx context.Context, ownerID uint, rangeDays int) (*repo.DashboardStats, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if rangeDays <= 0 {
		rangeDays = 30
	}

	done := s.begin("bookings.dashboard_stats", map[string]string{"owner_id": fmt.Sprint(ownerID), "range_days": fmt.Sprint(rangeDays)})
	defer done()

	key := cache.StatsKey(ownerID, rangeDays)
	if v, ok := s.Cache.Get(key); ok {
		if stats, ok := v.(*repo.DashboardStats); ok {
			return stats, nil
		}
	}

	stats, err := repo.ComputeDashboardStats(ctx, s.DB, ownerID, rangeDays)
	if err != nil {
		return nil, storage("dashboard stats", err)
	}
	s.Cache.Set(key, stats, s.StatsTTL)
	return stats, nil
}

// GenerateReference builds a human-shareable booking code of the form
// BK-YYYYMMDD-XXXXXX. The suffix is random and uniqueness is best-effort;
// the unique index on bookings.reference is the backstop, not this
// function.
func GenerateReference(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "BK-" + date.UTC().Format("20060102") + "-" + suffix
}

// begin starts a perf span for op and returns the closer to defer.
func (s *BookingService) begin(op string, context map[string]string) func() {
	if s.Perf == nil {
		return func() {}
	}
	s.Perf.Start(op, context)
	return func() { s.Perf.End(op, nil) }
}

// invalidateOwnerScope drops an owner's list/count/stats cache entries.
// When the caller did not supply an owner (unscoped admin update), the
// booking is looked up to find one; if that lookup fails the per-id
// invalidation already done is the best that can be achieved.
func (s *BookingService) invalidateOwnerScope(ctx context.Context, id, ownerID uint) {
	if ownerID == 0 {
		b, err := repo.GetBooking(ctx, s.DB, id, 0)
		if err != nil {
			return
		}
		ownerID = b.OwnerID
	}
	s.Cache.DeletePrefix(cache.OwnerPrefix(ownerID))
}

// checkOwner applies the tenant scope to a loaded booking. A mismatch is
// ErrNotFound by design: the error must not reveal that the row exists.
func checkOwner(b *domain.Booking, ownerID uint) (*domain.Booking, error) {
	if ownerID != 0 && b.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return b, nil
}

// requireOwner rejects a missing/zero owner on owner-scoped operations.
func requireOwner(ownerID uint) error {
	if ownerID == 0 {
		ve := &ValidationError{}
		ve.add("owner_id", "is required")
		return ve
	}
	return nil
}

// normalizeSearch trims and NFC-normalizes free-text search input so that
// visually identical queries hit the same cache key.
func normalizeSearch(q string) string {
	return norm.NFC.String(strings.TrimSpace(q))
}

// filterDigest collapses a filter set into a stable 64-bit value for cache
// keys. Field order and formatting are fixed; absent optional fields keep
// their position as empty strings.
func filterDigest(f repo.BookingFilters) uint64 {
	from, to := "", ""
	if f.DateFrom != nil {
		from = f.DateFrom.UTC().Format("2006-01-02")
	}
	if f.DateTo != nil {
		to = f.DateTo.UTC().Format("2006-01-02")
	}
	return cache.Digest(f.Status, from, to, strings.ToLower(f.Search))
}

// validateCreate collects every field-level problem with the input.
func validateCreate(in CreateBookingInput) error {
	ve := &ValidationError{}
	if in.OwnerID == 0 {
		ve.add("owner_id", "is required")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		ve.add("customer_name", "is required")
	}
	if in.BookingDate.IsZero() {
		ve.add("booking_date", "is required")
	}
	if !bookingTimeRE.MatchString(in.BookingTime) {
		ve.add("booking_time", "must be in HH:MM format")
	}
	if in.TotalPrice < 0 {
		ve.add("total_price", "must not be negative")
	}
	if in.Discount < 0 {
		ve.add("discount", "must not be negative")
	}
	if in.Status != "" && !ValidStatus(in.Status) {
		ve.add("status", "must be one of pending, confirmed, completed, cancelled")
	}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ServiceName) == "" {
			ve.add(field+".service_name", "is required")
		}
		if it.UnitPrice < 0 {
			ve.add(field+".unit_price", "must not be negative")
		}
		if it.Quantity < 0 {
			ve.add(field+".quantity", "must not be negative")
		}
	}
	if !ve.ok() {
		return ve
	}
	return nil
}
