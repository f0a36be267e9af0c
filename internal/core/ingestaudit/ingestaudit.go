// Package ingestaudit tracks one record per processed workbook file,
// adapted from the teacher's provider-call audit log into the payroll
// domain's "archivos_procesados" trail (see original_source's
// DatabaseManager.guardar_resultados). It is additive instrumentation: it
// never feeds back into compare_with_history or the detector.
package ingestaudit

import (
	"context"
	"time"
)

// Record is one processed-file entry.
type Record struct {
	ID            int64
	CorrelationID string
	Archivo       string
	TotalRegistros int
	Nuevos        int
	Duplicados    int
	Alertas       int
	CreatedAt     time.Time
}

// Repository persists and retrieves the processed-files trail.
type Repository interface {
	// Save appends one processed-file record.
	Save(ctx context.Context, rec Record) error

	// FindByCorrelationID retrieves every record sharing a correlation ID,
	// i.e. every file of one ingest() call.
	FindByCorrelationID(ctx context.Context, correlationID string) ([]Record, error)

	// Recent returns the most recently processed files, most recent first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}
