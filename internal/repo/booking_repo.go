// Package repo implements the data persistence layer for the booking
// domain, backed by GORM. This file provides repository functions for the
// Booking aggregate.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition. Caching, validation, and instrumentation live in
// the services layer.
//
// Error semantics:
//   - When a booking is not found (including bookings owned by another
//     tenant), functions return gorm.ErrRecordNotFound (also exported here
//     as ErrNotFound for convenience). Cross-tenant misses are externally
//     indistinguishable from missing rows.
//   - When an optimistic-lock token no longer matches, UpdateBookingStatus
//     returns ErrVersionConflict and leaves the row unchanged.
//   - On other DB errors (constraint violations, connectivity issues, etc.)
//     the raw gorm error is propagated; the service layer wraps it.
//
// Functions:
//
//   - ListBookingsPage(ctx, db, ownerID, offset, limit, f) -> []domain.Booking, error
//     Returns one page of an owner's bookings under the given filters,
//     ordered by booking date desc, booking time desc, id desc.
//
//   - CountBookings(ctx, db, ownerID, f) -> (int64, error)
//     Returns the total number of bookings matching the same filters.
//
//   - GetBooking(ctx, db, id, ownerID) -> *domain.Booking, error
//     Fetches a single booking with its items eagerly loaded. ownerID == 0
//     skips the tenant scope (admin/single-tenant callers).
//
//   - CreateBookingWithItems(ctx, db, b, items) -> error
//     Inserts the booking and all items in one transaction, all-or-nothing.
//
//   - UpdateBookingStatus(ctx, db, id, ownerID, status, expectedVersion) -> error
//     Sets the status and refreshes updated_at, optionally guarded by the
//     optimistic-lock token.
//
//   - BatchUpdateBookingStatus(ctx, db, ids, ownerID, status) -> (int64, error)
//     Single bulk update scoped to the owner; returns the affected count.
//
// This repository is designed to be wrapped by services.BookingService,
// which coordinates the cache, perf monitor, and input validation.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schedulo/go-booking-backend/internal/domain"
)

// ErrNotFound is returned when a requested booking does not exist or does
// not belong to the requesting owner. It aliases gorm.ErrRecordNotFound for
// consistency across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrVersionConflict is returned when an optimistic-lock token no longer
// matches the stored row: another writer committed between the caller's
// read and this write. The caller should re-read and retry.
var ErrVersionConflict = errors.New("booking was modified concurrently")

// BookingFilters narrows list and count queries. All fields are optional
// and AND-combined. Search matches a case-insensitive substring across
// customer name, customer email, and reference.
type BookingFilters struct {
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
}

// applyBookingFilters composes the filter conditions onto a query. All
// caller-supplied values are bound as parameters, never interpolated.
func applyBookingFilters(q *gorm.DB, f BookingFilters) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DateFrom != nil {
		q = q.Where("booking_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("booking_date <= ?", *f.DateTo)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where(
			"LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(reference) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	return q
}

// ListBookingsPage returns one page of bookings for ownerID matching f,
// ordered most recent first (booking_date desc, booking_time desc). The id
// is a final tie-break so pagination stays stable when several bookings
// share a slot. Items are not loaded here; use GetBooking for details.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListBookingsPage(ctx context.Context, db *gorm.DB, ownerID uint, offset, limit int, f BookingFilters) ([]domain.Booking, error) {
	var out []domain.Booking
	q := applyBookingFilters(db.WithContext(ctx).Where("owner_id = ?", ownerID), f)
	err := q.
		Order("booking_date DESC, booking_time DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountBookings returns the number of bookings for ownerID matching f,
// with the same filter semantics as ListBookingsPage.
func CountBookings(ctx context.Context, db *gorm.DB, ownerID uint, f BookingFilters) (int64, error) {
	var total int64
	q := applyBookingFilters(db.WithContext(ctx).Model(&domain.Booking{}).Where("owner_id = ?", ownerID), f)
	err := q.Count(&total).Error
	return total, err
}

// GetBooking fetches a single booking by id with its items eagerly loaded.
// When ownerID is non-zero the booking must belong to that owner; a booking
// owned by another tenant surfaces as ErrNotFound, never as a distinct
// error. On other DB errors, the raw error is returned.
func GetBooking(ctx context.Context, db *gorm.DB, id, ownerID uint) (*domain.Booking, error) {
	var b domain.Booking
	q := db.WithContext(ctx).Preload("Items").Where("id = ?", id)
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBookingWithItems persists the booking and all of its items in a
// single transaction. Either every row is committed or none are; any
// failure during item insertion rolls the whole operation back and the
// underlying cause is returned. On success, b.ID is populated and b.Items
// holds the persisted items.
func CreateBookingWithItems(ctx context.Context, db *gorm.DB, b *domain.Booking, items []domain.BookingItem) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(b).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].BookingID = b.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		b.Items = items
		return nil
	})
}

// UpdateBookingStatus sets the status of a booking and refreshes its
// updated_at timestamp, which doubles as the optimistic-lock token.
//
// When expectedVersion is non-nil it must equal the stored updated_at; a
// mismatch means another writer won the race and ErrVersionConflict is
// returned with the row left unchanged. No lock is held between the
// caller's read and this write — the conflict is detected, not prevented.
//
// When ownerID is non-zero the update is additionally scoped to that
// owner. A zero-row match without a version token is ErrNotFound; with a
// token, an existence re-check distinguishes ErrNotFound from
// ErrVersionConflict.
func UpdateBookingStatus(ctx context.Context, db *gorm.DB, id, ownerID uint, status string, expectedVersion *time.Time) error {
	q := db.WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id)
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	if expectedVersion != nil {
		q = q.Where("updated_at = ?", *expectedVersion)
	}

	res := q.Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if expectedVersion == nil {
		return gorm.ErrRecordNotFound
	}

	// Zero rows with a version token: either the row is gone (or belongs to
	// another tenant) or the token is stale.
	var n int64
	exists := db.WithContext(ctx).Model(&domain.Booking{}).Where("id = ?", id)
	if ownerID != 0 {
		exists = exists.Where("owner_id = ?", ownerID)
	}
	if err := exists.Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrVersionConflict
}

// BatchUpdateBookingStatus applies status to every booking in ids that
// belongs to ownerID, in a single bulk update. Ids that do not match (wrong
// owner, missing) are silently skipped; only the count actually affected is
// reported.
func BatchUpdateBookingStatus(ctx context.Context, db *gorm.DB, ids []uint, ownerID uint, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
