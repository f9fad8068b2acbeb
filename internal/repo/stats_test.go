package repo

import (
	"context"
	"testing"
	"time"

	"github.com/schedulo/go-booking-backend/internal/domain"
)

func TestComputeDashboardStats_EmptyOwner(t *testing.T) {
	db := fullBookingDB(t)

	stats, err := ComputeDashboardStats(context.Background(), db, 42, 30)
	if err != nil {
		t.Fatalf("ComputeDashboardStats: %v", err)
	}
	if stats.Total != 0 || stats.CompletionRate != 0 || stats.AvgBookingValue != 0 {
		t.Fatalf("empty owner must report zeros, got %+v", stats)
	}
}

func TestComputeDashboardStats_Arithmetic(t *testing.T) {
	db := fullBookingDB(t)

	today := time.Now().UTC().Format("2006-01-02")
	longAgo := "2020-01-01"

	// Owner 42: 2 completed, 1 pending, 1 cancelled; one shared customer.
	seedBooking(t, db, 42, today, "09:00", domain.StatusCompleted, "Ada", "ada@example.com", 100)
	seedBooking(t, db, 42, longAgo, "09:00", domain.StatusCompleted, "Ada", "ada@example.com", 50)
	seedBooking(t, db, 42, today, "10:00", domain.StatusPending, "Grace", "grace@example.com", 999)
	seedBooking(t, db, 42, longAgo, "11:00", domain.StatusCancelled, "Edsger", "edsger@example.com", 999)
	// Another tenant must not leak into the numbers.
	seedBooking(t, db, 7, today, "09:00", domain.StatusCompleted, "Mallory", "mallory@example.com", 10000)

	stats, err := ComputeDashboardStats(context.Background(), db, 42, 30)
	if err != nil {
		t.Fatalf("ComputeDashboardStats: %v", err)
	}

	if stats.Total != 4 || stats.Completed != 2 || stats.Pending != 1 || stats.Cancelled != 1 {
		t.Fatalf("unexpected status breakdown: %+v", stats)
	}
	if stats.TotalRevenue != 150 {
		t.Fatalf("revenue must sum completed bookings only, got %v", stats.TotalRevenue)
	}
	if stats.AvgBookingValue != 75 {
		t.Fatalf("expected avg 75, got %v", stats.AvgBookingValue)
	}
	if stats.UniqueCustomers != 3 {
		t.Fatalf("expected 3 unique customers, got %d", stats.UniqueCustomers)
	}
	if stats.RecentCount != 2 {
		t.Fatalf("expected 2 bookings in the trailing window, got %d", stats.RecentCount)
	}
	if stats.CompletionRate != 50.0 {
		t.Fatalf("expected completion rate 50.0, got %v", stats.CompletionRate)
	}
}

func TestComputeDashboardStats_RateRoundsToOneDecimal(t *testing.T) {
	db := fullBookingDB(t)

	// 1 of 3 completed -> 33.333...% -> 33.3.
	seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusCompleted, "Ada", "", 90)
	seedBooking(t, db, 42, "2025-06-02", "09:00", domain.StatusPending, "Grace", "", 0)
	seedBooking(t, db, 42, "2025-06-03", "09:00", domain.StatusPending, "Edsger", "", 0)

	stats, err := ComputeDashboardStats(context.Background(), db, 42, 30)
	if err != nil {
		t.Fatalf("ComputeDashboardStats: %v", err)
	}
	if stats.CompletionRate != 33.3 {
		t.Fatalf("expected 33.3, got %v", stats.CompletionRate)
	}
}
