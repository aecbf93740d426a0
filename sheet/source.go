package sheet

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Source exposes the export as named sheets of raw cell grids. The loader
// does not care whether the grid comes from a local workbook, a
// spreadsheet API or a database dump.
type Source interface {
	// ListSheets returns the names of all sheets in the export.
	ListSheets(ctx context.Context) ([]string, error)

	// ReadSheet returns every row of one sheet as raw cell strings.
	// Rows may be ragged; missing trailing cells are simply absent.
	ReadSheet(ctx context.Context, name string) ([][]string, error)
}

// XLSXSource reads an Aleph workbook export from disk.
type XLSXSource struct {
	path string
}

// NewXLSXSource creates a source over the workbook at path.
func NewXLSXSource(path string) *XLSXSource {
	return &XLSXSource{path: path}
}

// ListSheets returns the workbook's sheet names.
func (s *XLSXSource) ListSheets(_ context.Context) ([]string, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// ReadSheet returns all rows of the named sheet with raw (unformatted)
// cell values, so serial dates and unformatted numbers survive intact.
func (s *XLSXSource) ReadSheet(_ context.Context, name string) ([][]string, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return rows, nil
}
