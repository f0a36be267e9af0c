// Package xlsx adapts github.com/xuri/excelize/v2 to the read-only
// workbook contract spec.md defines in section 6. Only reading is ever
// exercised here: writer/export formatting is explicitly out of scope
// per spec.md section 1.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Workbook is a single opened spreadsheet, sheet rows addressable by name.
type Workbook struct {
	f *excelize.File
}

// Open parses an XLSX stream (an uploaded file or a seed catalog file).
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

// Close releases the underlying file handle.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// SheetNames returns every sheet name in file order.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Rows returns every row of a sheet, header row included, as excelize's
// GetRows reports them: rows are not padded, so a row ends at its last
// non-empty cell and may be shorter than the header row.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// Reader implements application/ingest.WorkbookReader, constructing a
// *Workbook from each uploaded file's bytes.
type Reader struct{}

// NewReader builds the excelize-backed workbook reader.
func NewReader() Reader { return Reader{} }

// Open satisfies application/ingest.WorkbookReader.
func (Reader) Open(r io.Reader) (interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}, error) {
	return Open(r)
}
