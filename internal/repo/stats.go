// Package repo implements the data persistence layer for the booking
// domain, backed by GORM. This file provides the aggregate/statistics
// queries behind the owner dashboard. Each function is context-aware and
// safe to call from services or other callers.
package repo

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/schedulo/go-booking-backend/internal/domain"
)

// DashboardStats is the aggregate view of one owner's bookings.
//
// Total and the per-status counts are all-time; RecentCount is limited to
// the requested trailing window. TotalRevenue sums total_price over
// completed bookings only, and AvgBookingValue divides it by the completed
// count (0 when nothing is completed). CompletionRate is
// completed/total*100 rounded to one decimal, 0 when there are no bookings.
type DashboardStats struct {
	Total           int64   `json:"total"`
	Completed       int64   `json:"completed"`
	Pending         int64   `json:"pending"`
	Cancelled       int64   `json:"cancelled"`
	TotalRevenue    float64 `json:"total_revenue"`
	AvgBookingValue float64 `json:"avg_booking_value"`
	UniqueCustomers int64   `json:"unique_customers"`
	RecentCount     int64   `json:"recent_count"`
	CompletionRate  float64 `json:"completion_rate"`
}

// ComputeDashboardStats runs the aggregate queries for ownerID. rangeDays
// bounds only the RecentCount window ([now - rangeDays, now] by booking
// date); every other figure is all-time for the owner.
func ComputeDashboardStats(ctx context.Context, db *gorm.DB, ownerID uint, rangeDays int) (*DashboardStats, error) {
	stats := &DashboardStats{}

	// Per-status breakdown in one pass.
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Booking{}).
		Select("status, COUNT(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.Total += r.N
		switch r.Status {
		case domain.StatusCompleted:
			stats.Completed = r.N
		case domain.StatusPending:
			stats.Pending = r.N
		case domain.StatusCancelled:
			stats.Cancelled = r.N
		}
	}

	// Revenue over completed bookings.
	err = db.WithContext(ctx).
		Model(&domain.Booking{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("owner_id = ? AND status = ?", ownerID, domain.StatusCompleted).
		Scan(&stats.TotalRevenue).Error
	if err != nil {
		return nil, err
	}
	if stats.Completed > 0 {
		stats.AvgBookingValue = stats.TotalRevenue / float64(stats.Completed)
	}

	// Distinct customers, ignoring rows without an email.
	err = db.WithContext(ctx).
		Model(&domain.Booking{}).
		Select("COUNT(DISTINCT customer_email)").
		Where("owner_id = ? AND customer_email <> ''", ownerID).
		Scan(&stats.UniqueCustomers).Error
	if err != nil {
		return nil, err
	}

	// Bookings dated within the trailing window.
	since := time.Now().UTC().AddDate(0, 0, -rangeDays)
	err = db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("owner_id = ? AND booking_date >= ?", ownerID, since).
		Count(&stats.RecentCount).Error
	if err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*10) / 10
	}
	return stats, nil
}
