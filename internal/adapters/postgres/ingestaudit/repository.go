// Package ingestaudit implements ingestaudit.Repository against an
// archivos_procesados table, adapted directly from the teacher's
// audit/postgres repository (provider_audit_log -> archivos_procesados).
package ingestaudit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sasp-edomex/scil-auditoria/internal/core/ingestaudit"
)

// Repository implements ingestaudit.Repository against Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Postgres-backed ingestaudit.Repository.
func NewRepository(pool *pgxpool.Pool) ingestaudit.Repository {
	return &Repository{pool: pool}
}

// Save appends one processed-file record.
func (r *Repository) Save(ctx context.Context, rec ingestaudit.Record) error {
	query := `
		INSERT INTO archivos_procesados (
			correlation_id, nombre_archivo, total_registros, nuevos_registros,
			duplicados_omitidos, alertas, fecha_procesamiento
		) VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	_, err := r.pool.Exec(ctx, query,
		rec.CorrelationID, rec.Archivo, rec.TotalRegistros, rec.Nuevos, rec.Duplicados, rec.Alertas,
	)
	if err != nil {
		return fmt.Errorf("insert archivo_procesado %s: %w", rec.Archivo, err)
	}
	return nil
}

// FindByCorrelationID retrieves every record sharing a correlation ID.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) ([]ingestaudit.Record, error) {
	return r.query(ctx, `
		SELECT id, correlation_id, nombre_archivo, total_registros, nuevos_registros,
		       duplicados_omitidos, alertas, fecha_procesamiento
		FROM archivos_procesados
		WHERE correlation_id = $1
		ORDER BY fecha_procesamiento DESC
	`, correlationID)
}

// Recent returns the most recently processed files, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]ingestaudit.Record, error) {
	if limit < 1 {
		limit = 20
	}
	return r.query(ctx, `
		SELECT id, correlation_id, nombre_archivo, total_registros, nuevos_registros,
		       duplicados_omitidos, alertas, fecha_procesamiento
		FROM archivos_procesados
		ORDER BY fecha_procesamiento DESC
		LIMIT $1
	`, limit)
}

func (r *Repository) query(ctx context.Context, query string, arg any) ([]ingestaudit.Record, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query archivos_procesados: %w", err)
	}
	defer rows.Close()

	var records []ingestaudit.Record
	for rows.Next() {
		var rec ingestaudit.Record
		if err := rows.Scan(
			&rec.ID, &rec.CorrelationID, &rec.Archivo, &rec.TotalRegistros,
			&rec.Nuevos, &rec.Duplicados, &rec.Alertas, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archivo_procesado: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archivos_procesados: %w", err)
	}
	return records, nil
}
