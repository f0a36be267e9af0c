// Package detect implements the Cross Detector (C3): for every RFC with
// source rows accumulated across a batch, it emits one CRUCE_ENTRE_ENTES_QNA
// finding per quincena with two or more distinct active entities, or a
// single SIN_DUPLICIDAD traceability record when the RFC produced no cross
// at all.
package detect

import (
	"context"
	"fmt"
	"sort"

	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
	"github.com/sasp-edomex/scil-auditoria/internal/core/ingest"
)

// Batch groups source rows by RFC plus the order in which each RFC first
// appeared across the ingest call's workbooks/sheets. Order must be
// preserved by the caller (application/ingest) for the RFC-insertion
// ordering guarantee in spec.md section 5.
type Batch struct {
	Rows  map[string][]ingest.SourceRow
	Order []string
}

// Detect runs the cross-detection algorithm over a batch, optionally
// parallelized across RFCs via a bounded worker pool since per-RFC inputs
// are disjoint. Output preserves RFC-insertion order regardless of
// completion order, and within each RFC, ascending quincena order.
func Detect(ctx context.Context, batch Batch, year, workers int) []finding.Finding {
	if len(batch.Order) == 0 {
		return nil
	}

	jobs := make([]rfcJob, len(batch.Order))
	for i, rfc := range batch.Order {
		jobs[i] = rfcJob{Index: i, RFC: rfc, Rows: batch.Rows[rfc]}
	}
	slots := runRFCJobs(ctx, jobs, workers, year)

	var out []finding.Finding
	for _, fs := range slots {
		out = append(out, fs...)
	}
	return out
}

// detectForRFC is the pure per-RFC step of the algorithm (spec.md 4.3).
func detectForRFC(rfc string, rows []ingest.SourceRow, year int) []finding.Finding {
	quincenas := activeQuincenas(rows)

	var findings []finding.Finding
	for _, q := range quincenas {
		activeRows, entes := rowsActiveIn(rows, q)
		if len(entes) < 2 {
			continue
		}
		findings = append(findings, buildCruceFinding(rfc, activeRows, entes, q, year))
	}

	if len(findings) == 0 {
		findings = append(findings, buildSinDuplicidadFinding(rfc, rows))
	}
	return findings
}

// activeQuincenas returns the union of active quincenas across a RFC's
// rows, ascending.
func activeQuincenas(rows []ingest.SourceRow) []int {
	set := make(map[int]struct{})
	for _, r := range rows {
		for q := range r.Qnas {
			set[q] = struct{}{}
		}
	}
	qs := make([]int, 0, len(set))
	for q := range set {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// rowsActiveIn returns the rows active in quincena q (input order
// preserved) and the sorted distinct entities among them. Two rows from
// the same entity contribute one entry to entes, by contract (intra-entity
// duplicates are not reported by this detector).
func rowsActiveIn(rows []ingest.SourceRow, q int) ([]ingest.SourceRow, []string) {
	var active []ingest.SourceRow
	enteSet := make(map[string]struct{})
	for _, r := range rows {
		if _, ok := r.Qnas[q]; ok {
			active = append(active, r)
			enteSet[r.Ente] = struct{}{}
		}
	}
	entes := make([]string, 0, len(enteSet))
	for e := range enteSet {
		entes = append(entes, e)
	}
	sort.Strings(entes)
	return active, entes
}

func buildCruceFinding(rfc string, activeRows []ingest.SourceRow, entes []string, q, year int) finding.Finding {
	f := finding.Finding{
		RFC:         rfc,
		Nombre:      activeRows[0].Nombre,
		Entes:       entes,
		FechaComun:  fmt.Sprintf("%dQ%02d", year, q),
		TipoPatron:  finding.CruceEntreEntesQNA,
		Descripcion: fmt.Sprintf("RFC %s percibido por %d entes en la quincena %d: %s", rfc, len(entes), q, joinEntes(entes)),
		Registros:   toRegistros(activeRows),
		Estado:      finding.SinValoracion,
	}
	f.HashFirma, _ = finding.HashFirma(f)
	return f
}

func buildSinDuplicidadFinding(rfc string, rows []ingest.SourceRow) finding.Finding {
	enteSet := make(map[string]struct{})
	for _, r := range rows {
		enteSet[r.Ente] = struct{}{}
	}
	entes := make([]string, 0, len(enteSet))
	for e := range enteSet {
		entes = append(entes, e)
	}
	sort.Strings(entes)

	var nombre string
	if len(rows) > 0 {
		nombre = rows[0].Nombre
	}

	f := finding.Finding{
		RFC:         rfc,
		Nombre:      nombre,
		Entes:       entes,
		FechaComun:  string(finding.SinDuplicidad),
		TipoPatron:  finding.SinDuplicidad,
		Descripcion: fmt.Sprintf("Sin duplicidad detectada para RFC %s", rfc),
		Registros:   toRegistros(rows),
		Estado:      finding.SinValoracion,
	}
	f.HashFirma, _ = finding.HashFirma(f)
	return f
}

func toRegistros(rows []ingest.SourceRow) []finding.RegistroFinding {
	out := make([]finding.RegistroFinding, len(rows))
	for i, r := range rows {
		out[i] = finding.RegistroFinding{
			Ente:         r.Ente,
			Nombre:       r.Nombre,
			Puesto:       r.Puesto,
			FechaIngreso: r.FechaAlta,
			FechaEgreso:  r.FechaBaja,
			Monto:        r.Monto,
			RFCOriginal:  r.RFC,
		}
	}
	return out
}

func joinEntes(entes []string) string {
	out := ""
	for i, e := range entes {
		if i > 0 {
			out += ", "
		}
		out += e
	}
	return out
}
