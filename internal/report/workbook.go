package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetIndicators = "Indicators"
	SheetLongForm   = "LongForm"
)

var indicatorHeader = []string{
	"Period",
	"Current Ratio",
	"Quick Ratio",
	"General Liquidity",
	"Debt Ratio",
	"Fixed Asset Ratio",
}

// WriteWorkbook writes d as an XLSX workbook with a wide indicator sheet and
// a long-form sheet.
func WriteWorkbook(w io.Writer, d Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetIndicators); err != nil {
		return fmt.Errorf("WriteWorkbook: renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetLongForm); err != nil {
		return fmt.Errorf("WriteWorkbook: creating sheet: %w", err)
	}

	for i, h := range indicatorHeader {
		if err := setCell(f, SheetIndicators, i+1, 1, h); err != nil {
			return err
		}
	}
	for row, r := range d.Ratios {
		values := []any{
			string(r.Period),
			r.CurrentRatio.InexactFloat64(),
			r.QuickRatio.InexactFloat64(),
			r.GeneralLiquidity.InexactFloat64(),
			r.DebtRatio.InexactFloat64(),
			r.FixedAssetRatio.InexactFloat64(),
		}
		for col, v := range values {
			if err := setCell(f, SheetIndicators, col+1, row+2, v); err != nil {
				return err
			}
		}
	}

	for i, h := range []string{"Period", "Indicator", "Value"} {
		if err := setCell(f, SheetLongForm, i+1, 1, h); err != nil {
			return err
		}
	}
	for row, ind := range d.Indicators {
		values := []any{string(ind.Period), ind.Name, ind.Value.InexactFloat64()}
		for col, v := range values {
			if err := setCell(f, SheetLongForm, col+1, row+2, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(SheetIndicators, "A", "F", 20); err != nil {
		return fmt.Errorf("WriteWorkbook: column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteWorkbook: writing: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("WriteWorkbook: cell name: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("WriteWorkbook: setting %s!%s: %w", sheet, cell, err)
	}
	return nil
}
