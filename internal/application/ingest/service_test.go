package ingest

import (
	"context"
	"io"
	"testing"

	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/testutil"
)

// fakeWorkbook is an in-memory stand-in for adapters/xlsx.Workbook, keyed
// by sheet name so tests never touch excelize.
type fakeWorkbook struct {
	sheets map[string][][]string
}

func (f fakeWorkbook) SheetNames() []string {
	names := make([]string, 0, len(f.sheets))
	for name := range f.sheets {
		names = append(names, name)
	}
	return names
}

func (f fakeWorkbook) Rows(sheet string) ([][]string, error) { return f.sheets[sheet], nil }
func (fakeWorkbook) Close() error                            { return nil }

type fakeReader struct {
	workbook fakeWorkbook
}

func (r fakeReader) Open(io.Reader) (Workbook, error) { return r.workbook, nil }

func testRegistry() *catalog.Registry {
	return catalog.NewRegistry([]catalog.Entity{
		{Clave: "ENTE_00002", Nombre: "SECRETARIA DE FINANZAS", Siglas: "SEFIN", Ambito: catalog.Estatal, Activo: true},
		{Clave: "ENTE_00003", Nombre: "SECRETARIA DEL TRABAJO", Siglas: "SEPE", Ambito: catalog.Estatal, Activo: true},
	})
}

var header = []string{"RFC", "NOMBRE", "PUESTO", "FECHA_ALTA", "FECHA_BAJA", "QNA1", "QNA2"}

func buildService(sheets map[string][][]string, findings *testutil.MockFindingRepository) Service {
	return Service{
		Reader:     fakeReader{workbook: fakeWorkbook{sheets: sheets}},
		Registry:   testRegistry(),
		Findings:   findings,
		Audit:      &testutil.MockIngestAuditRepository{},
		FiscalYear: 2026,
		Workers:    2,
	}
}

func TestIngest_CrossDetectedAcrossSheetsBySiglas(t *testing.T) {
	sheets := map[string][][]string{
		"SEFIN": {header, {"CUPU800825569", "JUAN PEREZ", "ANALISTA", "2024-01-01", "", "1", "0"}},
		"SEPE":  {header, {"CUPU800825569", "JUAN PEREZ", "AUXILIAR", "2024-01-01", "", "1", "0"}},
	}
	findings := testutil.NewMockFindingRepository()
	svc := buildService(sheets, findings)

	result, err := svc.Ingest(context.Background(), "corr-1", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.New != 1 {
		t.Errorf("expected 1 new cross finding, got %d (total=%d)", result.New, result.Total)
	}
	if len(findings.ByHash) != 1 {
		t.Fatalf("expected 1 persisted finding, got %d", len(findings.ByHash))
	}
}

func TestIngest_ReingestSameFileIsIdempotent(t *testing.T) {
	sheets := map[string][][]string{
		"SEFIN": {header, {"CUPU800825569", "JUAN PEREZ", "ANALISTA", "2024-01-01", "", "1", "0"}},
		"SEPE":  {header, {"CUPU800825569", "JUAN PEREZ", "AUXILIAR", "2024-01-01", "", "1", "0"}},
	}
	findings := testutil.NewMockFindingRepository()
	svc := buildService(sheets, findings)

	ctx := context.Background()
	first, err := svc.Ingest(ctx, "corr-1", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := svc.Ingest(ctx, "corr-2", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if first.New != 1 {
		t.Fatalf("expected first ingest to produce 1 new finding, got %d", first.New)
	}
	if second.New != 0 || second.Duplicates != 1 {
		t.Errorf("expected the re-ingest to be fully duplicate, got new=%d duplicates=%d", second.New, second.Duplicates)
	}
	if len(findings.ByHash) != 1 {
		t.Errorf("expected still only 1 persisted finding after re-ingest, got %d", len(findings.ByHash))
	}
}

func TestIngest_UnknownSheetLabelYieldsAlertAndSkips(t *testing.T) {
	sheets := map[string][][]string{
		"HOJA_DESCONOCIDA": {header, {"CUPU800825569", "JUAN PEREZ", "ANALISTA", "2024-01-01", "", "1", "0"}},
	}
	findings := testutil.NewMockFindingRepository()
	svc := buildService(sheets, findings)

	result, err := svc.Ingest(context.Background(), "corr-1", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Tipo != "ente_no_encontrado" {
		t.Errorf("expected one ente_no_encontrado alert, got %+v", result.Alerts)
	}
	if result.Total != 0 {
		t.Errorf("expected 0 rows contributed from an unresolved sheet, got %d", result.Total)
	}
}

func TestIngest_MissingRequiredColumnYieldsAlertAndSkipsSheet(t *testing.T) {
	badHeader := []string{"RFC", "NOMBRE"}
	sheets := map[string][][]string{
		"SEFIN": {badHeader, {"CUPU800825569", "JUAN PEREZ"}},
	}
	findings := testutil.NewMockFindingRepository()
	svc := buildService(sheets, findings)

	result, err := svc.Ingest(context.Background(), "corr-1", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Tipo != "columnas_faltantes" {
		t.Errorf("expected one columnas_faltantes alert, got %+v", result.Alerts)
	}
}

func TestIngest_TotPercColumnPopulatesMonto(t *testing.T) {
	montoHeader := []string{"RFC", "NOMBRE", "PUESTO", "FECHA_ALTA", "FECHA_BAJA", "QNA1", "QNA2", "TOT_PERC"}
	sheets := map[string][][]string{
		"SEFIN": {montoHeader, {"CUPU800825569", "JUAN PEREZ", "ANALISTA", "2024-01-01", "", "1", "0", "12345.67"}},
		"SEPE":  {montoHeader, {"CUPU800825569", "JUAN PEREZ", "AUXILIAR", "2024-01-01", "", "1", "0", "9999.00"}},
	}
	findings := testutil.NewMockFindingRepository()
	svc := buildService(sheets, findings)

	result, err := svc.Ingest(context.Background(), "corr-1", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.New != 1 {
		t.Fatalf("expected 1 new cross finding, got %d", result.New)
	}

	for _, f := range findings.ByHash {
		for _, r := range f.Registros {
			if r.Monto == nil {
				t.Fatalf("expected registro for ente %s to carry a parsed TOT_PERC monto, got nil", r.Ente)
			}
		}
	}
}

func TestIngest_InactiveQuincenaYieldsTraceabilityNotCross(t *testing.T) {
	// Both rows present but neither quincena column is "active", so no
	// overlapping quincena exists: detect.Detect falls back to a single
	// SIN_DUPLICIDAD traceability finding instead of a cross.
	sheets := map[string][][]string{
		"SEFIN": {header, {"CUPU800825569", "JUAN PEREZ", "ANALISTA", "2024-01-01", "", "0", "NO"}},
		"SEPE":  {header, {"CUPU800825569", "JUAN PEREZ", "AUXILIAR", "2024-01-01", "", "0", "N/A"}},
	}
	findings := testutil.NewMockFindingRepository()
	svc := buildService(sheets, findings)

	result, err := svc.Ingest(context.Background(), "corr-1", []File{{Name: "nomina.xlsx"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.New != 1 {
		t.Fatalf("expected one persisted finding, got new=%d", result.New)
	}
	for _, f := range findings.ByHash {
		if f.TipoPatron != "SIN_DUPLICIDAD" {
			t.Errorf("expected the single finding to be SIN_DUPLICIDAD, got %q", f.TipoPatron)
		}
	}
}
