package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schedulo/go-booking-backend/internal/domain"
)

func newBookingDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("booking_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func fullBookingDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newBookingDB(t, &domain.Booking{}, &domain.BookingItem{})
}

// seedBooking inserts a booking with deterministic scheduling fields.
func seedBooking(t *testing.T, db *gorm.DB, owner uint, day, hhmm, status, name, email string, total float64) domain.Booking {
	t.Helper()

	date, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatalf("parse day %q: %v", day, err)
	}
	b := domain.Booking{
		OwnerID:       owner,
		CustomerName:  name,
		CustomerEmail: email,
		Reference:     fmt.Sprintf("BK-%s-%d", date.Format("20060102"), time.Now().UnixNano()),
		BookingDate:   date.UTC(),
		BookingTime:   hhmm,
		TotalPrice:    total,
		Status:        status,
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func TestCreateBookingWithItems_PersistsAllRows(t *testing.T) {
	db := fullBookingDB(t)

	b := &domain.Booking{
		OwnerID:      42,
		CustomerName: "Ada Lovelace",
		Reference:    "BK-20250601-AAAAAA",
		BookingDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		BookingTime:  "14:30",
		TotalPrice:   150,
		Status:       domain.StatusPending,
	}
	items := []domain.BookingItem{
		{ServiceName: "Deep clean", UnitPrice: 100, Quantity: 1, LineTotal: 100},
		{
			ServiceName: "Window wash", UnitPrice: 25, Quantity: 2, LineTotal: 50,
			Customizations: domain.CustomizationList{{Name: "floor", Value: "3rd", PriceDelta: 0}},
		},
	}

	if err := CreateBookingWithItems(context.Background(), db, b, items); err != nil {
		t.Fatalf("CreateBookingWithItems: %v", err)
	}
	if b.ID == 0 {
		t.Fatal("expected booking ID to be populated")
	}

	got, err := GetBooking(context.Background(), db, b.ID, 42)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items eagerly loaded, got %d", len(got.Items))
	}
	for _, it := range got.Items {
		if it.BookingID != b.ID {
			t.Fatalf("item not linked to booking: %+v", it)
		}
	}
	var wash domain.BookingItem
	for _, it := range got.Items {
		if it.ServiceName == "Window wash" {
			wash = it
		}
	}
	if len(wash.Customizations) != 1 || wash.Customizations[0].Value != "3rd" {
		t.Fatalf("customizations did not round-trip: %+v", wash.Customizations)
	}
}

func TestCreateBookingWithItems_RollsBackOnItemFailure(t *testing.T) {
	// Only the bookings table exists; inserting items must fail and take
	// the booking row down with it.
	db := newBookingDB(t, &domain.Booking{})

	b := &domain.Booking{
		OwnerID:      42,
		CustomerName: "Ada",
		Reference:    "BK-20250601-BBBBBB",
		BookingDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		BookingTime:  "09:00",
		Status:       domain.StatusPending,
	}
	items := []domain.BookingItem{{ServiceName: "Deep clean", UnitPrice: 100, Quantity: 1}}

	if err := CreateBookingWithItems(context.Background(), db, b, items); err == nil {
		t.Fatal("expected item insertion to fail")
	}

	var n int64
	if err := db.Model(&domain.Booking{}).Count(&n).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback to remove the booking row, found %d", n)
	}
}

func TestListBookingsPage_OrderAndTenantScope(t *testing.T) {
	db := fullBookingDB(t)

	older := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "ada@example.com", 100)
	sameDayLater := seedBooking(t, db, 42, "2025-06-01", "15:00", domain.StatusPending, "Grace", "grace@example.com", 80)
	newest := seedBooking(t, db, 42, "2025-06-02", "08:00", domain.StatusConfirmed, "Edsger", "edsger@example.com", 60)
	seedBooking(t, db, 7, "2025-06-03", "10:00", domain.StatusPending, "Mallory", "mallory@example.com", 999)

	got, err := ListBookingsPage(context.Background(), db, 42, 0, 10, BookingFilters{})
	if err != nil {
		t.Fatalf("ListBookingsPage: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bookings for owner 42, got %d", len(got))
	}
	wantOrder := []uint{newest.ID, sameDayLater.ID, older.ID}
	for i, b := range got {
		if b.ID != wantOrder[i] {
			t.Fatalf("position %d: got id %d, want %d (order %v)", i, b.ID, wantOrder[i], got)
		}
	}
}

func TestListBookingsPage_PaginationIsStable(t *testing.T) {
	db := fullBookingDB(t)

	// Five bookings in the same slot: only the id tie-break orders them.
	var ids []uint
	for i := 0; i < 5; i++ {
		b := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, fmt.Sprintf("c%d", i), "", 10)
		ids = append(ids, b.ID)
	}

	seen := map[uint]int{}
	var concat []uint
	for page := 1; page <= 3; page++ {
		got, err := ListBookingsPage(context.Background(), db, 42, (page-1)*2, 2, BookingFilters{})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		for _, b := range got {
			seen[b.ID]++
			concat = append(concat, b.ID)
		}
	}
	if len(concat) != 5 {
		t.Fatalf("expected 5 rows across pages, got %d", len(concat))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("booking %d appeared %d times across pages", id, n)
		}
	}
	// Highest id first within the shared slot.
	for i := 0; i < len(concat); i++ {
		if concat[i] != ids[len(ids)-1-i] {
			t.Fatalf("unstable order: got %v, want reverse of %v", concat, ids)
		}
	}
}

func TestListBookingsPage_Filters(t *testing.T) {
	db := fullBookingDB(t)

	pending := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada Lovelace", "ada@example.com", 100)
	confirmed := seedBooking(t, db, 42, "2025-06-05", "10:00", domain.StatusConfirmed, "Grace Hopper", "grace@example.com", 80)
	seedBooking(t, db, 42, "2025-06-10", "11:00", domain.StatusCancelled, "Edsger Dijkstra", "edsger@example.com", 60)

	ctx := context.Background()

	t.Run("status equality", func(t *testing.T) {
		got, err := ListBookingsPage(ctx, db, 42, 0, 10, BookingFilters{Status: domain.StatusConfirmed})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != confirmed.ID {
			t.Fatalf("expected only the confirmed booking, got %+v", got)
		}
	})

	t.Run("inclusive date range", func(t *testing.T) {
		from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
		got, err := ListBookingsPage(ctx, db, 42, 0, 10, BookingFilters{DateFrom: &from, DateTo: &to})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("range should include both endpoints, got %d rows", len(got))
		}
	})

	t.Run("case-insensitive search across fields", func(t *testing.T) {
		got, err := ListBookingsPage(ctx, db, 42, 0, 10, BookingFilters{Search: "LOVELACE"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != pending.ID {
			t.Fatalf("expected search hit on customer name, got %+v", got)
		}

		got, err = ListBookingsPage(ctx, db, 42, 0, 10, BookingFilters{Search: "grace@"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != confirmed.ID {
			t.Fatalf("expected search hit on email, got %+v", got)
		}

		got, err = ListBookingsPage(ctx, db, 42, 0, 10, BookingFilters{Search: pending.Reference})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != pending.ID {
			t.Fatalf("expected search hit on reference, got %+v", got)
		}
	})

	t.Run("filters AND-combine", func(t *testing.T) {
		got, err := ListBookingsPage(ctx, db, 42, 0, 10, BookingFilters{Status: domain.StatusPending, Search: "grace"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("contradictory filters must match nothing, got %+v", got)
		}
	})
}

func TestCountBookings_MatchesListSemantics(t *testing.T) {
	db := fullBookingDB(t)

	seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "", 100)
	seedBooking(t, db, 42, "2025-06-02", "09:00", domain.StatusPending, "Grace", "", 80)
	seedBooking(t, db, 42, "2025-06-03", "09:00", domain.StatusConfirmed, "Edsger", "", 60)
	seedBooking(t, db, 7, "2025-06-03", "09:00", domain.StatusPending, "Mallory", "", 1)

	total, err := CountBookings(context.Background(), db, 42, BookingFilters{})
	if err != nil {
		t.Fatalf("CountBookings: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3, got %d", total)
	}

	pending, err := CountBookings(context.Background(), db, 42, BookingFilters{Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("CountBookings filtered: %v", err)
	}
	if pending != 2 {
		t.Fatalf("expected 2 pending, got %d", pending)
	}
}

func TestGetBooking_NotFoundAndTenantIsolation(t *testing.T) {
	db := fullBookingDB(t)
	b := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "", 100)

	if _, err := GetBooking(context.Background(), db, 9999, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
	// Cross-tenant read must be indistinguishable from a missing row.
	if _, err := GetBooking(context.Background(), db, b.ID, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other tenant, got %v", err)
	}
	// Unscoped read works.
	got, err := GetBooking(context.Background(), db, b.ID, 0)
	if err != nil || got.ID != b.ID {
		t.Fatalf("unscoped GetBooking: got %+v err %v", got, err)
	}
}

func TestUpdateBookingStatus_SuccessRefreshesVersionToken(t *testing.T) {
	db := fullBookingDB(t)
	b := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "", 100)

	before, err := GetBooking(context.Background(), db, b.ID, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	time.Sleep(5 * time.Millisecond) // ensure a distinguishable timestamp
	if err := UpdateBookingStatus(context.Background(), db, b.ID, 42, domain.StatusConfirmed, nil); err != nil {
		t.Fatalf("UpdateBookingStatus: %v", err)
	}

	after, err := GetBooking(context.Background(), db, b.ID, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != domain.StatusConfirmed {
		t.Fatalf("status not updated: %+v", after)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updated_at must advance on every successful update: before=%v after=%v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestUpdateBookingStatus_OptimisticLock(t *testing.T) {
	db := fullBookingDB(t)
	b := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "", 100)

	loaded, err := GetBooking(context.Background(), db, b.ID, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	token := loaded.UpdatedAt

	// First writer with the observed token wins.
	if err := UpdateBookingStatus(context.Background(), db, b.ID, 42, domain.StatusConfirmed, &token); err != nil {
		t.Fatalf("first update should win: %v", err)
	}

	// Second writer reusing the same token loses and the row is unchanged.
	err = UpdateBookingStatus(context.Background(), db, b.ID, 42, domain.StatusCancelled, &token)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	final, err := GetBooking(context.Background(), db, b.ID, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != domain.StatusConfirmed {
		t.Fatalf("loser must not change the row, status=%s", final.Status)
	}
}

func TestUpdateBookingStatus_NotFoundVariants(t *testing.T) {
	db := fullBookingDB(t)
	b := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "", 100)

	// Missing id, no token.
	err := UpdateBookingStatus(context.Background(), db, 9999, 42, domain.StatusConfirmed, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}

	// Wrong tenant with a (stale-looking) token: still not found, never a
	// conflict hint about the row existing.
	token := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	err = UpdateBookingStatus(context.Background(), db, b.ID, 7, domain.StatusConfirmed, &token)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other tenant, got %v", err)
	}
}

func TestBatchUpdateBookingStatus_CountsOnlyMatches(t *testing.T) {
	db := fullBookingDB(t)

	b1 := seedBooking(t, db, 42, "2025-06-01", "09:00", domain.StatusPending, "Ada", "", 100)
	b2 := seedBooking(t, db, 42, "2025-06-02", "09:00", domain.StatusPending, "Grace", "", 80)
	other := seedBooking(t, db, 7, "2025-06-03", "09:00", domain.StatusPending, "Mallory", "", 1)

	ids := []uint{b1.ID, b2.ID, other.ID, 9999}
	affected, err := BatchUpdateBookingStatus(context.Background(), db, ids, 42, domain.StatusConfirmed)
	if err != nil {
		t.Fatalf("BatchUpdateBookingStatus: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected rows, got %d", affected)
	}

	// Owner 7's booking is untouched.
	got, err := GetBooking(context.Background(), db, other.ID, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("foreign booking mutated: %+v", got)
	}
}

func TestBatchUpdateBookingStatus_EmptyInput(t *testing.T) {
	db := fullBookingDB(t)

	affected, err := BatchUpdateBookingStatus(context.Background(), db, nil, 42, domain.StatusConfirmed)
	if err != nil || affected != 0 {
		t.Fatalf("empty input: affected=%d err=%v", affected, err)
	}
}
