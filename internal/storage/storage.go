// Package storage persists per-turn evaluation records. The semantic cache itself
// keeps nothing on disk.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/semcache/internal/models"
)

// RecordSink receives one record per handled user turn.
type RecordSink interface {
	WriteRecord(ctx context.Context, rec *models.TurnRecord) error
	Close() error
}

// RecordStore is a sink that can also be queried.
type RecordStore interface {
	RecordSink
	ListRecords(ctx context.Context, setup string) ([]*models.TurnRecord, error)
	ListSetups(ctx context.Context) ([]string, error)
	CountRecords(ctx context.Context) (int64, error)
}

// MultiSink fans a record out to several sinks.
type MultiSink []RecordSink

// WriteRecord writes to every sink and joins the errors.
func (m MultiSink) WriteRecord(ctx context.Context, rec *models.TurnRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRecord(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins the errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
