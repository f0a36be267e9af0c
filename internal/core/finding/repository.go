package finding

import "context"

// MergedRecord is the result of get_by_rfc: all findings for one RFC
// merged into a single traceability view.
type MergedRecord struct {
	RFC          string
	Nombre       string
	Entes        []string
	Registros    []RegistroFinding
	Estado       Estado
	Solventacion string
}

// SolventacionEstado is one entry of get_solventaciones_by_rfc's result map.
type SolventacionEstado struct {
	Estado     string
	Comentario string
}

// Repository is the Finding Store port (C4). Implementations own the
// uniqueness constraint on hash_firma as their only required concurrency
// control (spec.md section 9).
type Repository interface {
	// CompareWithHistory hashes every incoming finding and partitions it
	// against the set of hashes already persisted. It performs no writes.
	CompareWithHistory(ctx context.Context, findings []Finding) (fresh []Finding, repeated []Finding, err error)

	// Save inserts each finding with its hash_firma; a uniqueness
	// violation on hash_firma is treated as "already present" and
	// silently skipped. Returns (insertedCount, duplicateCount).
	Save(ctx context.Context, findings []Finding) (inserted int, duplicates int, err error)

	// GetByRFC returns the merged traceability view for one RFC, or nil
	// if the RFC has no findings.
	GetByRFC(ctx context.Context, rfc string) (*MergedRecord, error)

	// PaginatedRead returns decoded findings of the given tipo_patron
	// ("" for any), filtered by a substring LIKE on the raw JSON payload,
	// sorted by descending insertion id, plus the total matching count.
	PaginatedRead(ctx context.Context, tipoPatron TipoPatron, filter string, page, limit int) ([]Finding, int, error)

	// GetSolventacionesByRFC returns the solventación state per entity
	// clave (or GeneralEnte) recorded for an RFC.
	GetSolventacionesByRFC(ctx context.Context, rfc string) (map[string]SolventacionEstado, error)

	// UpdateSolventacion upserts on (rfc, ente). ente defaults to
	// GeneralEnte and estado to SinValoracion when empty. Returns the
	// number of affected rows (always 1 on success, for an upsert).
	UpdateSolventacion(ctx context.Context, rfc, estado, comentario, ente string) (int64, error)

	// GetEstado returns the most recently updated solventación estado for
	// (rfc, clave), or ("", false) if none exists.
	GetEstado(ctx context.Context, rfc, clave string) (string, bool, error)
}
