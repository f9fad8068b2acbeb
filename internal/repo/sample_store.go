// Package repo implements the data persistence layer for the booking
// domain, backed by GORM. This file provides the append-only store for slow
// operation samples emitted by the perf monitor.
package repo

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/schedulo/go-booking-backend/internal/domain"
	"github.com/schedulo/go-booking-backend/internal/perf"
)

// SampleStore persists slow-operation samples as rows in the
// slow_query_samples table. It implements perf.Sink: Record is best-effort
// and never surfaces an error to the instrumented operation — insert
// failures are logged and dropped.
type SampleStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewSampleStore returns a store writing through db.
func NewSampleStore(db *gorm.DB, log zerolog.Logger) *SampleStore {
	return &SampleStore{db: db, log: log}
}

// Record appends one sample. The sample's context map is serialized to
// JSON; a context that cannot be marshalled is stored empty rather than
// failing the append.
func (s *SampleStore) Record(sample perf.Sample) {
	ctxJSON, err := json.Marshal(sample.Context)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	row := domain.SlowQuerySample{
		Operation:       sample.Operation,
		DurationSeconds: sample.Duration.Seconds(),
		MemDeltaBytes:   sample.MemDelta,
		Context:         string(ctxJSON),
		CreatedAt:       sample.At,
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.log.Error().Err(err).Str("op", sample.Operation).Msg("persist slow sample")
	}
}

// Recent returns up to limit samples, newest first. It exists for the
// reporting surface that reads the append-only log.
func (s *SampleStore) Recent(ctx context.Context, limit int) ([]domain.SlowQuerySample, error) {
	var out []domain.SlowQuerySample
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
