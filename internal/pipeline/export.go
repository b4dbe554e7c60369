package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/qinyiguo/DMS2.0/internal"
	"github.com/qinyiguo/DMS2.0/internal/schema"
	"github.com/qinyiguo/DMS2.0/internal/storage"
)

// ExportBatchToXLSX writes a batch back to a workbook for review: one sheet
// with the canonical lines, one with the raw staging rows.
func ExportBatchToXLSX(db *storage.DB, batchID int64, outputPath string) error {
	batch, err := db.GetBatch(batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("batch not found: %d", batchID)
	}

	lines, err := db.ListLinesByBatch(batchID)
	if err != nil {
		return err
	}
	staging, err := db.ListStagingRows(batchID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	canonical := f.GetSheetName(0)
	_ = f.SetSheetName(canonical, "canonical")
	canonical = "canonical"
	writeCanonicalSheet(f, canonical, lines)

	if _, err := f.NewSheet("staging"); err == nil {
		writeStagingSheet(f, "staging", staging)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeCanonicalSheet(f *excelize.File, sheet string, lines []internal.PartsSalesLine) {
	headers := []string{
		"branchCode", "checkoutNo", "itemId", "workorderNo", "workorderKey",
		"partNo", "partName", "quantity", "saleAmount", "costAmount", "advisor", "salesName",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, line := range lines {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, line.BranchCode)
		set(2, line.CheckoutNo)
		set(3, line.ItemID)
		set(4, derefString(line.WorkorderNo))
		set(5, derefString(line.WorkorderKey))
		set(6, line.PartNo)
		set(7, derefString(line.PartName))
		set(8, derefFloat(line.Quantity))
		set(9, derefFloat(line.SaleAmount))
		set(10, derefFloat(line.CostAmount))
		set(11, derefString(line.Advisor))
		set(12, derefString(line.SalesName))
	}
}

func writeStagingSheet(f *excelize.File, sheet string, rows []internal.StagingRow) {
	fields := canonicalFieldOrder()
	headers := append([]string{"rowIndex"}, fields...)
	headers = append(headers, "extra")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, r)
		_ = f.SetCellValue(sheet, cell, row.RowIndex)
		for j, field := range fields {
			cell, _ := excelize.CoordinatesToCellName(j+2, r)
			_ = f.SetCellValue(sheet, cell, row.Fields[field])
		}
		if len(row.Extra) > 0 {
			blob, _ := json.Marshal(row.Extra)
			cell, _ := excelize.CoordinatesToCellName(len(fields)+2, r)
			_ = f.SetCellValue(sheet, cell, string(blob))
		}
	}
}

func canonicalFieldOrder() []string {
	return schema.DefaultAliases().Fields()
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
