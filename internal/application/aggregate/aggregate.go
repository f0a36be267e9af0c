// Package aggregate implements the Aggregator/Exporter (C5): it turns the
// Finding Store's raw, per-batch records into the two read views spec.md
// section 4.5 names — grouped_by_entity (the UI's duplicidades-por-ente
// listing) and flatten_export (the one-row-per-employee export table).
// Neither view mutates the store. grouped_by_entity recomputes cross
// membership from each finding's own registros rather than trusting its
// persisted entes field; flatten_export takes the other entes of a row from
// that persisted entes field.
package aggregate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
)

const pageSize = 200

// Service wires the Finding Store to the two read views.
type Service struct {
	Findings finding.Repository
	Registry *catalog.Registry
}

// EntityRow is one employee's row under one authorized entity's key.
type EntityRow struct {
	RFC         string
	Nombre      string
	Puesto      string
	Estado      string
	Entes       []string          // siglas of the other entes in the cross
	EstadoEntes map[string]string // siglas -> solventación estado (or the finding's estado)
}

// EntityView is one authorized entity's grouped_by_entity bucket.
type EntityView struct {
	Rows       []EntityRow
	Duplicados int
	Total      int
}

// GroupedByEntity implements grouped_by_entity(userTokens): iterates every
// persisted finding, recomputes the real cross-entity set from its own
// registros, and buckets rows under every entity key the caller is
// authorized to see (C1.match / has_full_access). Entities with employees
// but no cross still appear, with Duplicados == 0.
func (s Service) GroupedByEntity(ctx context.Context, userTokens []string) (map[string]*EntityView, error) {
	findings, err := s.fetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("grouped_by_entity: %w", err)
	}

	views := make(map[string]*EntityView)
	fullAccess := catalog.HasFullAccess(userTokens)

	for _, f := range findings {
		crossEntes := entesCruceReal(f)
		countByEnte := map[string]int{}
		puestosByEnte := map[string]map[string]struct{}{}
		for _, r := range f.Registros {
			countByEnte[r.Ente]++
			if puestosByEnte[r.Ente] == nil {
				puestosByEnte[r.Ente] = map[string]struct{}{}
			}
			if r.Puesto != "" {
				puestosByEnte[r.Ente][r.Puesto] = struct{}{}
			}
		}

		var solv map[string]finding.SolventacionEstado
		if len(crossEntes) >= 2 {
			solv, err = s.Findings.GetSolventacionesByRFC(ctx, f.RFC)
			if err != nil {
				return nil, fmt.Errorf("grouped_by_entity: solventaciones for %s: %w", f.RFC, err)
			}
		}

		for ente, count := range countByEnte {
			if !fullAccess && !s.authorized(userTokens, ente) {
				continue
			}
			key := s.Registry.Display(ente)
			view := views[key]
			if view == nil {
				view = &EntityView{}
				views[key] = view
			}
			view.Total += count

			if !containsStr(crossEntes, ente) || len(crossEntes) < 2 {
				continue
			}

			row := EntityRow{
				RFC:         f.RFC,
				Nombre:      f.Nombre,
				Puesto:      joinSet(puestosByEnte[ente]),
				Estado:      string(f.Estado),
				EstadoEntes: map[string]string{},
			}
			for _, other := range crossEntes {
				if other == ente {
					continue
				}
				label := s.Registry.Display(other)
				row.Entes = append(row.Entes, label)
				if se, ok := solv[other]; ok {
					row.EstadoEntes[label] = se.Estado
				} else {
					row.EstadoEntes[label] = string(f.Estado)
				}
			}
			sort.Strings(row.Entes)

			view.Duplicados++
			view.Rows = append(view.Rows, row)
		}
	}

	return views, nil
}

// ExportRow is one materialized flatten_export record: one line per unique
// (rfc, ente_origen, puesto, fecha_ingreso, fecha_egreso, monto) across the
// whole finding set.
type ExportRow struct {
	RFC                  string
	Nombre               string
	Ente                 string
	Puesto               string
	FechaIngreso         string
	FechaEgreso          string
	Monto                *float64
	Quincenas            string
	EntesIncompatibilidad string
	Estatus              string
	Solventacion         string
}

type exportKey struct {
	rfc, ente, puesto, fechaIngreso, fechaEgreso, monto string
}

type exportAccumulator struct {
	nombre       string
	qnas         map[int]struct{}
	incompatible map[string]struct{}
	baseEstado   string
	solventacion string
}

var fechaComunQuincena = regexp.MustCompile(`Q(\d{2})$`)

// FlattenExport implements flatten_export(findings) over every persisted
// finding.
func (s Service) FlattenExport(ctx context.Context) ([]ExportRow, error) {
	findings, err := s.fetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("flatten_export: %w", err)
	}

	acc := map[exportKey]*exportAccumulator{}
	keyOrder := []exportKey{}
	solvByRFC := map[string]map[string]finding.SolventacionEstado{}

	for _, f := range findings {
		q, hasQ := parseQuincena(f.FechaComun)
		baseEstado := estatusLabel(string(f.Estado))

		for _, r := range f.Registros {
			k := exportKey{
				rfc:          f.RFC,
				ente:         sanitizeEnte(r.Ente),
				puesto:       r.Puesto,
				fechaIngreso: r.FechaIngreso,
				fechaEgreso:  r.FechaEgreso,
				monto:        montoKey(r.Monto),
			}
			a := acc[k]
			if a == nil {
				a = &exportAccumulator{
					qnas:         map[int]struct{}{},
					incompatible: map[string]struct{}{},
				}
				acc[k] = a
				keyOrder = append(keyOrder, k)
			}
			a.nombre = f.Nombre
			if hasQ {
				a.qnas[q] = struct{}{}
			}
			for _, e := range f.Entes {
				if e != r.Ente {
					a.incompatible[e] = struct{}{}
				}
			}
			a.baseEstado = baseEstado
			if f.Solventacion != "" {
				a.solventacion = f.Solventacion
			}
		}
	}

	rows := make([]ExportRow, 0, len(keyOrder))
	for _, k := range keyOrder {
		a := acc[k]

		solv, ok := solvByRFC[k.rfc]
		if !ok {
			solv, err = s.Findings.GetSolventacionesByRFC(ctx, k.rfc)
			if err != nil {
				return nil, fmt.Errorf("flatten_export: solventaciones for %s: %w", k.rfc, err)
			}
			solvByRFC[k.rfc] = solv
		}

		estatus := a.baseEstado
		solventacion := a.solventacion
		if se, ok := solv[k.ente]; ok {
			estatus = se.Estado
			if se.Comentario != "" {
				solventacion = se.Comentario
			}
		}

		rows = append(rows, ExportRow{
			RFC:                   k.rfc,
			Nombre:                a.nombre,
			Ente:                  s.Registry.Display(k.ente),
			Puesto:                k.puesto,
			FechaIngreso:          k.fechaIngreso,
			FechaEgreso:           k.fechaEgreso,
			Monto:                 parseMontoKey(k.monto),
			Quincenas:             materializeQuincenas(a.qnas),
			EntesIncompatibilidad: s.joinIncompatible(a.incompatible),
			Estatus:               estatus,
			Solventacion:          solventacion,
		})
	}

	return rows, nil
}

// entesCruceReal recomputes the set of entities actually present in a
// finding's own registros, guarding against a legacy finding whose persisted
// entes field drifted from its registros. Sorted for determinism.
func entesCruceReal(f finding.Finding) []string {
	set := map[string]struct{}{}
	for _, r := range f.Registros {
		set[r.Ente] = struct{}{}
	}
	entes := make([]string, 0, len(set))
	for e := range set {
		entes = append(entes, e)
	}
	sort.Strings(entes)
	return entes
}

func (s Service) authorized(tokens []string, ente string) bool {
	label := s.Registry.Display(ente)
	for _, t := range tokens {
		if s.Registry.Match(t, label) {
			return true
		}
	}
	return false
}

func (s Service) joinIncompatible(set map[string]struct{}) string {
	if len(set) == 0 {
		return "Sin otros entes"
	}
	labels := make([]string, 0, len(set))
	for e := range set {
		labels = append(labels, s.Registry.Display(e))
	}
	sort.Strings(labels)
	return strings.Join(labels, ", ")
}

// estatusLabel implements _estatus_label(v): lowercase, trim, then match the
// legacy free-text contract.
func estatusLabel(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	switch {
	case strings.Contains(s, "no"):
		return string(finding.NoSolventado)
	case strings.Contains(s, "solvent"):
		return string(finding.Solventado)
	default:
		return string(finding.SinValoracion)
	}
}

func materializeQuincenas(qnas map[int]struct{}) string {
	if len(qnas) >= 24 {
		return "Activo en Todo el Ejercicio"
	}
	if len(qnas) == 0 {
		return "N/A"
	}
	nums := make([]int, 0, len(qnas))
	for q := range qnas {
		nums = append(nums, q)
	}
	sort.Ints(nums)
	parts := make([]string, len(nums))
	for i, q := range nums {
		parts[i] = fmt.Sprintf("QNA%d", q)
	}
	return strings.Join(parts, ", ")
}

func parseQuincena(fechaComun string) (int, bool) {
	m := fechaComunQuincena.FindStringSubmatch(fechaComun)
	if m == nil {
		return 0, false
	}
	var q int
	_, err := fmt.Sscanf(m[1], "%d", &q)
	return q, err == nil
}

func sanitizeEnte(ente string) string {
	return strings.ToUpper(strings.TrimSpace(ente))
}

func montoKey(m *float64) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *m)
}

func parseMontoKey(k string) *float64 {
	if k == "" {
		return nil
	}
	var v float64
	if _, err := fmt.Sscanf(k, "%f", &v); err != nil {
		return nil
	}
	return &v
}

func joinSet(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	parts := make([]string, 0, len(set))
	for p := range set {
		parts = append(parts, p)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// fetchAll paginates through every persisted finding via PaginatedRead.
func (s Service) fetchAll(ctx context.Context) ([]finding.Finding, error) {
	var out []finding.Finding
	page := 1
	for {
		rows, total, err := s.Findings.PaginatedRead(ctx, "", "", page, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(out) >= total || len(rows) == 0 {
			break
		}
		page++
	}
	return out, nil
}
