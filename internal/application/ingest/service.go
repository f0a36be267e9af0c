// Package ingest orchestrates the Normalizer (C2): it turns a batch of
// uploaded XLSX files into cleaned core/ingest.SourceRows, hands them to the
// Cross Detector (C3), then persists fresh findings through the Finding
// Store (C4) and records one processed-file trail entry per file through
// ingestaudit (C4 supplement). Nothing below touches excelize directly;
// WorkbookReader/Workbook are the ports adapters/xlsx satisfies.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/sasp-edomex/scil-auditoria/internal/application/detect"
	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
	"github.com/sasp-edomex/scil-auditoria/internal/core/ingest"
	"github.com/sasp-edomex/scil-auditoria/internal/core/ingestaudit"
)

// Workbook is the minimal read surface a parsed spreadsheet exposes. It is
// an alias of an unnamed interface type, so an adapter whose Open returns
// the same method set satisfies WorkbookReader without importing this
// package.
type Workbook = interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

// WorkbookReader opens an uploaded file's bytes as a Workbook.
type WorkbookReader interface {
	Open(r io.Reader) (Workbook, error)
}

// File is one uploaded workbook: a name (for alerts/audit trail) plus its
// byte stream.
type File struct {
	Name string
	Body io.Reader
}

// Result is the ingest() contract of spec.md section 6.
type Result struct {
	Total      int
	New        int
	Duplicates int
	Alerts     []ingest.Alert
}

// Service wires the Normalizer to the Cross Detector and the Finding/Audit
// stores.
type Service struct {
	Reader     WorkbookReader
	Registry   *catalog.Registry
	Findings   finding.Repository
	Audit      ingestaudit.Repository
	FiscalYear int
	Workers    int
}

// Ingest parses every file, runs cross-detection once over the combined
// batch (spec.md section 5: findings span files within one call), and
// persists the result. The correlationID ties every ingestaudit.Record of
// this call together (FindByCorrelationID).
func (s Service) Ingest(ctx context.Context, correlationID string, files []File) (Result, error) {
	batch := detect.Batch{Rows: map[string][]ingest.SourceRow{}}
	var alerts []ingest.Alert
	fileStats := make([]ingestaudit.Record, 0, len(files))

	for _, f := range files {
		rows, fileAlerts, err := s.parseFile(f, &batch)
		if err != nil {
			return Result{}, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		alerts = append(alerts, fileAlerts...)
		fileStats = append(fileStats, ingestaudit.Record{
			CorrelationID:  correlationID,
			Archivo:        f.Name,
			TotalRegistros: rows,
			Alertas:        len(fileAlerts),
		})
	}

	findings := detect.Detect(ctx, batch, s.FiscalYear, s.Workers)

	fresh, repeated, err := s.Findings.CompareWithHistory(ctx, findings)
	if err != nil {
		return Result{}, fmt.Errorf("compare with history: %w", err)
	}

	inserted, duplicates, err := s.Findings.Save(ctx, fresh)
	if err != nil {
		return Result{}, fmt.Errorf("save findings: %w", err)
	}
	duplicates += len(repeated)

	for i := range fileStats {
		fileStats[i].Nuevos = inserted
		fileStats[i].Duplicados = duplicates
		if err := s.Audit.Save(ctx, fileStats[i]); err != nil {
			return Result{}, fmt.Errorf("save audit trail for %s: %w", fileStats[i].Archivo, err)
		}
	}

	total := 0
	for _, stat := range fileStats {
		total += stat.TotalRegistros
	}

	return Result{
		Total:      total,
		New:        inserted,
		Duplicates: duplicates,
		Alerts:     alerts,
	}, nil
}

// parseFile reads every sheet of one workbook, appending cleaned rows into
// batch and returning the row count contributed plus any non-fatal alerts.
func (s Service) parseFile(f File, batch *detect.Batch) (int, []ingest.Alert, error) {
	wb, err := s.Reader.Open(f.Body)
	if err != nil {
		return 0, nil, err
	}
	defer wb.Close()

	var alerts []ingest.Alert
	rowCount := 0

	for _, sheet := range wb.SheetNames() {
		clave, ok := s.Registry.Resolve(sheet)
		if !ok {
			alerts = append(alerts, ingest.Alert{
				Tipo:    ingest.AlertEnteNoEncontrado,
				Mensaje: fmt.Sprintf("hoja %q no corresponde a ningún ente del catálogo", sheet),
				Hoja:    sheet,
				Archivo: f.Name,
			})
			continue
		}

		rows, err := wb.Rows(sheet)
		if err != nil {
			return rowCount, alerts, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		header, quincenaCols, missing := indexHeader(rows[0])
		if len(missing) > 0 {
			alerts = append(alerts, ingest.Alert{
				Tipo:    ingest.AlertColumnasFaltantes,
				Mensaje: fmt.Sprintf("hoja %q: columnas faltantes %v", sheet, missing),
				Hoja:    sheet,
				Archivo: f.Name,
			})
			continue
		}

		for _, raw := range rows[1:] {
			row, ok := buildRow(raw, header, quincenaCols, clave, sheet)
			if !ok {
				continue
			}
			rowCount++
			if _, seen := batch.Rows[row.RFC]; !seen {
				batch.Order = append(batch.Order, row.RFC)
			}
			batch.Rows[row.RFC] = append(batch.Rows[row.RFC], row)
		}
	}

	return rowCount, alerts, nil
}

// indexHeader maps normalized required-column names and quincena columns to
// their positions, reporting any required column absent from the sheet.
func indexHeader(headerRow []string) (map[string]int, map[int]int, []string) {
	cols := make(map[string]int, len(headerRow))
	quincenaCols := make(map[int]int)
	for i, raw := range headerRow {
		h := ingest.NormalizeHeader(raw)
		cols[h] = i
		if q, ok := ingest.QuincenaNumber(h); ok {
			quincenaCols[q] = i
		}
	}

	var missing []string
	for _, required := range ingest.RequiredColumns {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	return cols, quincenaCols, missing
}

// buildRow cleans one data row into a SourceRow. A row with an unparseable
// RFC is silently dropped, matching original_source's behavior of skipping
// rows it cannot attribute to an RFC.
func buildRow(raw []string, header map[string]int, quincenaCols map[int]int, ente, sheet string) (ingest.SourceRow, bool) {
	rfc, ok := ingest.CleanRFC(cellAt(raw, header, "RFC"))
	if !ok {
		return ingest.SourceRow{}, false
	}

	fechaAlta, _ := ingest.CleanDate(cellAt(raw, header, "FECHA_ALTA"))
	fechaBaja, _ := ingest.CleanDate(cellAt(raw, header, "FECHA_BAJA"))

	row := ingest.SourceRow{
		RFC:        rfc,
		Nombre:     cellAt(raw, header, "NOMBRE"),
		Puesto:     cellAt(raw, header, "PUESTO"),
		FechaAlta:  fechaAlta,
		FechaBaja:  fechaBaja,
		Ente:       ente,
		Qnas:       map[int]struct{}{},
		HojaOrigen: sheet,
	}

	if montoIdx, ok := header["TOT_PERC"]; ok && montoIdx < len(raw) {
		if v, err := strconv.ParseFloat(raw[montoIdx], 64); err == nil {
			row.Monto = &v
		}
	}

	for q, idx := range quincenaCols {
		if idx >= len(raw) {
			continue
		}
		if ingest.Active(raw[idx]) {
			row.Qnas[q] = struct{}{}
		}
	}

	return row, true
}

func cellAt(row []string, header map[string]int, col string) string {
	idx, ok := header[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}
