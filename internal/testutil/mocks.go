package testutil

import (
	"context"

	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
	"github.com/sasp-edomex/scil-auditoria/internal/core/ingestaudit"
	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
)

// MockCatalogSource is an in-memory application/bootstrap.CatalogSource.
type MockCatalogSource struct {
	Entities []catalog.Entity
	Err      error
}

func (m MockCatalogSource) LoadEntities(context.Context) ([]catalog.Entity, error) {
	return m.Entities, m.Err
}

// MockUserSource is an in-memory application/bootstrap.UserSource.
type MockUserSource struct {
	Users []user.User
	Err   error
}

func (m MockUserSource) LoadUsers(context.Context) ([]user.User, error) {
	return m.Users, m.Err
}

// MockFindingRepository is an in-memory core/finding.Repository, keyed by
// hash_firma the way the real Postgres table enforces uniqueness.
type MockFindingRepository struct {
	ByHash         map[string]finding.Finding
	Solventaciones map[string]map[string]finding.SolventacionEstado // rfc -> ente -> estado
}

func NewMockFindingRepository() *MockFindingRepository {
	return &MockFindingRepository{
		ByHash:         make(map[string]finding.Finding),
		Solventaciones: make(map[string]map[string]finding.SolventacionEstado),
	}
}

func (m *MockFindingRepository) CompareWithHistory(_ context.Context, findings []finding.Finding) ([]finding.Finding, []finding.Finding, error) {
	var fresh, repeated []finding.Finding
	for _, f := range findings {
		hash, err := finding.HashFirma(f)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := m.ByHash[hash]; ok {
			repeated = append(repeated, f)
		} else {
			fresh = append(fresh, f)
		}
	}
	return fresh, repeated, nil
}

func (m *MockFindingRepository) Save(_ context.Context, findings []finding.Finding) (int, int, error) {
	inserted, duplicates := 0, 0
	for _, f := range findings {
		hash, err := finding.HashFirma(f)
		if err != nil {
			return inserted, duplicates, err
		}
		f.HashFirma = hash
		if _, ok := m.ByHash[hash]; ok {
			duplicates++
			continue
		}
		m.ByHash[hash] = f
		inserted++
	}
	return inserted, duplicates, nil
}

func (m *MockFindingRepository) GetByRFC(_ context.Context, rfc string) (*finding.MergedRecord, error) {
	var (
		nombre       string
		entes        = map[string]struct{}{}
		registros    []finding.RegistroFinding
		estado       finding.Estado
		solventacion string
		found        bool
	)
	for _, f := range m.ByHash {
		if f.RFC != rfc {
			continue
		}
		found = true
		nombre = f.Nombre
		for _, e := range f.Entes {
			entes[e] = struct{}{}
		}
		registros = append(registros, f.Registros...)
		estado = f.Estado
		solventacion = f.Solventacion
	}
	if !found {
		return nil, nil
	}
	out := make([]string, 0, len(entes))
	for e := range entes {
		out = append(out, e)
	}
	return &finding.MergedRecord{RFC: rfc, Nombre: nombre, Entes: out, Registros: registros, Estado: estado, Solventacion: solventacion}, nil
}

func (m *MockFindingRepository) PaginatedRead(_ context.Context, tipoPatron finding.TipoPatron, _ string, page, limit int) ([]finding.Finding, int, error) {
	var all []finding.Finding
	for _, f := range m.ByHash {
		if tipoPatron != "" && f.TipoPatron != tipoPatron {
			continue
		}
		all = append(all, f)
	}
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MockFindingRepository) GetSolventacionesByRFC(_ context.Context, rfc string) (map[string]finding.SolventacionEstado, error) {
	return m.Solventaciones[rfc], nil
}

func (m *MockFindingRepository) UpdateSolventacion(_ context.Context, rfc, estado, comentario, ente string) (int64, error) {
	if ente == "" {
		ente = finding.GeneralEnte
	}
	if estado == "" {
		estado = string(finding.SinValoracion)
	}
	if m.Solventaciones[rfc] == nil {
		m.Solventaciones[rfc] = make(map[string]finding.SolventacionEstado)
	}
	m.Solventaciones[rfc][ente] = finding.SolventacionEstado{Estado: estado, Comentario: comentario}
	return 1, nil
}

func (m *MockFindingRepository) GetEstado(_ context.Context, rfc, clave string) (string, bool, error) {
	byEnte, ok := m.Solventaciones[rfc]
	if !ok {
		return "", false, nil
	}
	s, ok := byEnte[clave]
	if !ok {
		return "", false, nil
	}
	return s.Estado, true, nil
}

// MockIngestAuditRepository is an in-memory core/ingestaudit.Repository.
type MockIngestAuditRepository struct {
	Records []ingestaudit.Record
}

func (m *MockIngestAuditRepository) Save(_ context.Context, rec ingestaudit.Record) error {
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockIngestAuditRepository) FindByCorrelationID(_ context.Context, correlationID string) ([]ingestaudit.Record, error) {
	var out []ingestaudit.Record
	for _, r := range m.Records {
		if r.CorrelationID == correlationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockIngestAuditRepository) Recent(_ context.Context, limit int) ([]ingestaudit.Record, error) {
	if len(m.Records) <= limit {
		return m.Records, nil
	}
	return m.Records[len(m.Records)-limit:], nil
}
