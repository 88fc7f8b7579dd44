package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/kyudori/docbridge/internal/storage"
)

// SpreadsheetAdapter rewrites a legacy binary workbook (.xls) as a modern
// .xlsx container. Sheet names and cell values survive; formatting and
// formulas do not. Used as the fallback when LibreOffice cannot handle the
// file.
type SpreadsheetAdapter struct {
	fs     storage.FileSystem
	logger *slog.Logger
}

// NewSpreadsheetAdapter creates a spreadsheet adapter
func NewSpreadsheetAdapter(fs storage.FileSystem, logger *slog.Logger) *SpreadsheetAdapter {
	if fs == nil {
		fs = storage.NewOSFileSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpreadsheetAdapter{fs: fs, logger: logger}
}

// Name implements Adapter
func (a *SpreadsheetAdapter) Name() string {
	return "spreadsheet"
}

// IsAvailable implements Adapter. Reading and writing are in-process.
func (a *SpreadsheetAdapter) IsAvailable() bool {
	return true
}

// Convert implements Adapter
func (a *SpreadsheetAdapter) Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error) {
	targetExt = normalizeTarget(targetExt)
	if targetExt != "xlsx" {
		return "", &UnsupportedConversionError{SourceExt: ".xls", TargetExt: targetExt}
	}

	sourceAbs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", &SourceNotFoundError{Path: sourcePath}
	}
	if _, err := a.fs.Stat(sourceAbs); err != nil {
		return "", &SourceNotFoundError{Path: sourceAbs}
	}
	if outDir == "" {
		outDir = filepath.Dir(sourceAbs)
	}

	sheets, err := readWorkbook(sourceAbs)
	if err != nil {
		return "", &ConversionError{Adapter: a.Name(), Path: sourceAbs, Err: err}
	}

	outputPath := filepath.Join(outDir, baseName(sourceAbs)+".xlsx")
	if err := writeWorkbook(outputPath, sheets); err != nil {
		return "", &ConversionError{Adapter: a.Name(), Path: outputPath, Err: err}
	}

	a.logger.InfoContext(ctx, "converted document",
		"adapter", a.Name(),
		"source", sourceAbs,
		"output", outputPath,
		"sheets", len(sheets),
	)
	return outputPath, nil
}

// sheetRow is one row of cell values together with the zero-based column of
// its first defined cell. Rows do not necessarily start at column A.
type sheetRow struct {
	Start int
	Cells []string
}

// sheetData is one worksheet: its name and its cell values by row.
type sheetData struct {
	Name string
	Rows []sheetRow
}

// readWorkbook loads every sheet of a legacy .xls workbook.
func readWorkbook(path string) ([]sheetData, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls workbook: %w", err)
	}

	var sheets []sheetData
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		data := sheetData{Name: sheet.Name}
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				data.Rows = append(data.Rows, sheetRow{})
				continue
			}
			// FirstCol is the first defined cell, not column A; Col indexes
			// by absolute column.
			start := row.FirstCol()
			var cells []string
			for c := start; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			data.Rows = append(data.Rows, sheetRow{Start: start, Cells: cells})
		}
		sheets = append(sheets, data)
	}

	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return sheets, nil
}

// writeWorkbook serializes the sheets into an .xlsx file. No index column is
// written; each row lands at its original column offset, so cells keep the
// coordinates they were read from.
func writeWorkbook(path string, sheets []sheetData) error {
	out := excelize.NewFile()
	defer out.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := out.SetSheetName(out.GetSheetName(0), sheet.Name); err != nil {
				return fmt.Errorf("rename sheet %q: %w", sheet.Name, err)
			}
		} else {
			if _, err := out.NewSheet(sheet.Name); err != nil {
				return fmt.Errorf("create sheet %q: %w", sheet.Name, err)
			}
		}

		for r, row := range sheet.Rows {
			if len(row.Cells) == 0 {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(row.Start+1, r+1)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row.Cells))
			for c, v := range row.Cells {
				values[c] = v
			}
			if err := out.SetSheetRow(sheet.Name, axis, &values); err != nil {
				return fmt.Errorf("write row %d of %q: %w", r+1, sheet.Name, err)
			}
		}
	}

	if err := out.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
