// Package finding implements the Finding Store (C4) against Postgres: a
// hash_firma-unique laboral table plus a solventaciones table upserted by
// (rfc, ente), grounded on the teacher's acquirer repository's whitelist and
// explicit-transaction style.
package finding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
)

// uniqueViolation is Postgres' SQLSTATE for a unique-constraint violation.
const uniqueViolation = "23505"

// Repository implements finding.Repository against the laboral and
// solventaciones tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Postgres-backed finding.Repository.
func NewRepository(pool *pgxpool.Pool) finding.Repository {
	return &Repository{pool: pool}
}

// CompareWithHistory hashes every incoming finding and checks which
// hash_firma values are already present; it performs no writes.
func (r *Repository) CompareWithHistory(ctx context.Context, findings []finding.Finding) ([]finding.Finding, []finding.Finding, error) {
	if len(findings) == 0 {
		return nil, nil, nil
	}

	hashes := make([]string, len(findings))
	for i, f := range findings {
		hashes[i] = f.HashFirma
	}

	rows, err := r.pool.Query(ctx, `SELECT hash_firma FROM laboral WHERE hash_firma = ANY($1)`, hashes)
	if err != nil {
		return nil, nil, fmt.Errorf("query existing hashes: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, nil, fmt.Errorf("scan hash: %w", err)
		}
		existing[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate hashes: %w", err)
	}

	var fresh, repeated []finding.Finding
	for _, f := range findings {
		if _, ok := existing[f.HashFirma]; ok {
			repeated = append(repeated, f)
		} else {
			fresh = append(fresh, f)
		}
	}
	return fresh, repeated, nil
}

// Save inserts each finding; a hash_firma uniqueness violation is treated as
// "already have it" and silently skipped (idempotent save).
func (r *Repository) Save(ctx context.Context, findings []finding.Finding) (int, int, error) {
	if len(findings) == 0 {
		return 0, 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO laboral (rfc, tipo_analisis, datos, hash_firma)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash_firma) DO NOTHING
	`

	var inserted, duplicates int
	for _, f := range findings {
		datos, err := json.Marshal(f)
		if err != nil {
			return inserted, duplicates, fmt.Errorf("marshal finding %s: %w", f.HashFirma, err)
		}

		tag, err := tx.Exec(ctx, query, f.RFC, string(f.TipoPatron), datos, f.HashFirma)
		if err != nil {
			var pgErr interface{ SQLState() string }
			if errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolation {
				duplicates++
				continue
			}
			return inserted, duplicates, fmt.Errorf("insert finding %s: %w", f.HashFirma, err)
		}
		if tag.RowsAffected() == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return inserted, duplicates, fmt.Errorf("commit save tx: %w", err)
	}
	return inserted, duplicates, nil
}

// GetByRFC merges every persisted finding for rfc into one traceability
// view, deduplicating registros on (ente, puesto, monto, fecha_ingreso,
// fecha_egreso) and taking estado/solventacion from the most recent record.
func (r *Repository) GetByRFC(ctx context.Context, rfc string) (*finding.MergedRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT datos FROM laboral WHERE rfc = $1 ORDER BY id ASC
	`, rfc)
	if err != nil {
		return nil, fmt.Errorf("query findings for %s: %w", rfc, err)
	}
	defer rows.Close()

	type regKey struct {
		ente, puesto, fechaIngreso, fechaEgreso string
		monto                                   float64
	}

	var merged *finding.MergedRecord
	enteSet := map[string]struct{}{}
	seen := map[regKey]struct{}{}

	for rows.Next() {
		var datos []byte
		if err := rows.Scan(&datos); err != nil {
			return nil, fmt.Errorf("scan finding datos: %w", err)
		}
		var f finding.Finding
		if err := json.Unmarshal(datos, &f); err != nil {
			return nil, fmt.Errorf("unmarshal finding datos: %w", err)
		}

		if merged == nil {
			merged = &finding.MergedRecord{RFC: f.RFC, Nombre: f.Nombre}
		}
		merged.Estado = f.Estado
		merged.Solventacion = f.Solventacion

		for _, e := range f.Entes {
			enteSet[e] = struct{}{}
		}
		for _, reg := range f.Registros {
			var monto float64
			if reg.Monto != nil {
				monto = *reg.Monto
			}
			k := regKey{reg.Ente, reg.Puesto, reg.FechaIngreso, reg.FechaEgreso, monto}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged.Registros = append(merged.Registros, reg)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	if merged == nil {
		return nil, nil
	}

	for e := range enteSet {
		merged.Entes = append(merged.Entes, e)
	}
	return merged, nil
}

// PaginatedRead returns decoded findings filtered by tipo_patron (if set)
// and a free-text LIKE over the raw JSON datos column, descending insertion id.
func (r *Repository) PaginatedRead(ctx context.Context, tipoPatron finding.TipoPatron, filter string, page, limit int) ([]finding.Finding, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	offset := (page - 1) * limit

	where := "WHERE ($1 = '' OR tipo_analisis = $1) AND ($2 = '' OR datos::text LIKE '%' || $2 || '%')"
	countQuery := "SELECT COUNT(*) FROM laboral " + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, string(tipoPatron), filter).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count findings: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT datos FROM laboral %s
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`, where)
	rows, err := r.pool.Query(ctx, query, string(tipoPatron), filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []finding.Finding
	for rows.Next() {
		var datos []byte
		if err := rows.Scan(&datos); err != nil {
			return nil, 0, fmt.Errorf("scan finding datos: %w", err)
		}
		var f finding.Finding
		if err := json.Unmarshal(datos, &f); err != nil {
			return nil, 0, fmt.Errorf("unmarshal finding datos: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate findings: %w", err)
	}
	return findings, total, nil
}

// GetSolventacionesByRFC returns the solventación state per entity clave.
func (r *Repository) GetSolventacionesByRFC(ctx context.Context, rfc string) (map[string]finding.SolventacionEstado, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ente, estado, comentario FROM solventaciones WHERE rfc = $1
	`, rfc)
	if err != nil {
		return nil, fmt.Errorf("query solventaciones for %s: %w", rfc, err)
	}
	defer rows.Close()

	out := make(map[string]finding.SolventacionEstado)
	for rows.Next() {
		var ente, estado, comentario string
		if err := rows.Scan(&ente, &estado, &comentario); err != nil {
			return nil, fmt.Errorf("scan solventacion: %w", err)
		}
		out[ente] = finding.SolventacionEstado{Estado: estado, Comentario: comentario}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solventaciones: %w", err)
	}
	return out, nil
}

// UpdateSolventacion upserts on (rfc, ente), defaulting ente to GENERAL and
// estado to "Sin valoración" when empty.
func (r *Repository) UpdateSolventacion(ctx context.Context, rfc, estado, comentario, ente string) (int64, error) {
	if ente == "" {
		ente = finding.GeneralEnte
	}
	if estado == "" {
		estado = string(finding.SinValoracion)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO solventaciones (rfc, ente, estado, comentario, actualizado)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (rfc, ente) DO UPDATE SET
			estado = EXCLUDED.estado,
			comentario = EXCLUDED.comentario,
			actualizado = now()
	`, rfc, ente, estado, comentario)
	if err != nil {
		return 0, fmt.Errorf("upsert solventacion (%s,%s): %w", rfc, ente, err)
	}
	return tag.RowsAffected(), nil
}

// GetEstado returns the most recently updated solventación estado for
// (rfc, clave).
func (r *Repository) GetEstado(ctx context.Context, rfc, clave string) (string, bool, error) {
	var estado string
	err := r.pool.QueryRow(ctx, `
		SELECT estado FROM solventaciones
		WHERE rfc = $1 AND ente = $2
		ORDER BY actualizado DESC
		LIMIT 1
	`, rfc, clave).Scan(&estado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query estado (%s,%s): %w", rfc, clave, err)
	}
	return estado, true, nil
}
