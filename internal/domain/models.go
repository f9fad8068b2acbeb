// Package domain defines the persistence models for bookings and their line
// items. These types are mapped with GORM and form the core data layer of
// the booking backend.
package domain

import (
	"time"
)

// Booking status values. The forward path is pending -> confirmed ->
// completed; pending and confirmed bookings may also move to cancelled,
// which is terminal. Transition legality is a business-rule concern of the
// caller; the data layer records whatever status is requested.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Booking represents a customer booking owned by a tenant (owner). Bookings
// are created together with their items in a single transaction and are
// never deleted by this layer; a terminal status is set instead.
//
// Fields:
//   - ID: auto-increment primary key.
//   - OwnerID: tenant identifier; indexed, every multi-tenant query is
//     scoped to it.
//   - CustomerName / CustomerEmail: contact snapshot used for free-text
//     search and the unique-customer statistic.
//   - Reference: human-shareable code (e.g. "BK-20250114-3F9A2C"); unique
//     index backs up the best-effort random generation.
//   - BookingDate / BookingTime: scheduled date plus an "HH:MM" wall time.
//     The time is kept as a zero-padded string so lexicographic ordering
//     matches chronological ordering.
//   - TotalPrice / Discount: currency-agnostic amounts supplied by the
//     caller; the repository does not recompute totals from items.
//   - Status: one of the Status* constants (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM. UpdatedAt doubles
//     as the optimistic-lock token: it changes on every successful status
//     update and stale writers are detected by comparing against it.
type Booking struct {
	ID            uint          `json:"id"             gorm:"primaryKey"`
	OwnerID       uint          `json:"owner_id"       gorm:"not null;index:idx_owner_bookings"`
	CustomerName  string        `json:"customer_name"  gorm:"type:varchar(128);not null"`
	CustomerEmail string        `json:"customer_email" gorm:"type:varchar(255);index"`
	Reference     string        `json:"reference"      gorm:"type:varchar(32);not null;uniqueIndex:ux_bookings_reference"`
	BookingDate   time.Time     `json:"booking_date"   gorm:"not null;index:idx_owner_bookings"`
	BookingTime   string        `json:"booking_time"   gorm:"type:varchar(5);not null"`
	TotalPrice    float64       `json:"total_price"    gorm:"not null;default:0"`
	Discount      float64       `json:"discount"       gorm:"not null;default:0"`
	Status        string        `json:"status"         gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','confirmed','completed','cancelled')"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Items are the line items belonging to this booking. They are created
	// in the same transaction as the booking and cascade on delete.
	Items []BookingItem `json:"items" gorm:"foreignKey:BookingID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Booking.
func (Booking) TableName() string { return "bookings" }

// BookingItem is a line item owned exclusively by one booking. It carries a
// snapshot of the service at booking time (name, description, unit price)
// so later catalogue edits do not rewrite history.
//
// Customizations is a typed list rather than a loose map; it is stored as a
// JSON column via GORM's serializer.
type BookingItem struct {
	ID                 uint              `json:"id"                  gorm:"primaryKey"`
	BookingID          uint              `json:"booking_id"          gorm:"not null;index:idx_booking_items"`
	ServiceName        string            `json:"service_name"        gorm:"type:varchar(128);not null"`
	ServiceDescription string            `json:"service_description" gorm:"type:text"`
	UnitPrice          float64           `json:"unit_price"          gorm:"not null;default:0"`
	Quantity           int               `json:"quantity"            gorm:"not null;default:1"`
	LineTotal          float64           `json:"line_total"          gorm:"not null;default:0"`
	Customizations     CustomizationList `json:"customizations,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName returns the database table name for BookingItem.
func (BookingItem) TableName() string { return "booking_items" }

// Customization is a single selected option on a booking item, e.g.
// {Name: "fragrance", Value: "lavender", PriceDelta: 2.50}.
type Customization struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	PriceDelta float64 `json:"price_delta"`
}

// CustomizationList is the JSON-serialized collection of customizations on
// a booking item.
type CustomizationList []Customization

// SlowQuerySample is a persisted timing outlier emitted by the perf
// monitor. Rows are append-only; a separate reporting surface reads them.
//
// DurationSeconds and MemDeltaBytes mirror the monitor's sample; Context is
// the sample's key-value metadata serialized as JSON.
type SlowQuerySample struct {
	ID              uint      `json:"id"               gorm:"primaryKey"`
	Operation       string    `json:"operation"        gorm:"type:varchar(64);not null;index"`
	DurationSeconds float64   `json:"duration_seconds" gorm:"not null"`
	MemDeltaBytes   int64     `json:"mem_delta_bytes"  gorm:"not null;default:0"`
	Context         string    `json:"context"          gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"       gorm:"index"`
}

// TableName returns the database table name for SlowQuerySample.
func (SlowQuerySample) TableName() string { return "slow_query_samples" }
