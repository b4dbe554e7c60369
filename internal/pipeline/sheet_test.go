package pipeline

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// mkXLSX builds an in-memory workbook with the given rows on the first sheet.
func mkXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue(sheet, axis, cell); err != nil {
				t.Fatal(err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSheetRowsReadsWorkbook(t *testing.T) {
	blob := mkXLSX(t, [][]string{
		{"據點", "料號"},
		{"A01", "P-9"},
	})

	rows, err := SheetRows(blob)
	if err != nil {
		t.Fatalf("SheetRows: %v", err)
	}
	want := [][]string{{"據點", "料號"}, {"A01", "P-9"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestSheetRowsHTMLTableFallback(t *testing.T) {
	html := `<html><body><table>
<tr><th>據點</th><th>料號</th></tr>
<tr><td> A01 </td><td>P-9</td></tr>
</table></body></html>`

	rows, err := SheetRows([]byte(html))
	if err != nil {
		t.Fatalf("SheetRows: %v", err)
	}
	want := [][]string{{"據點", "料號"}, {"A01", "P-9"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestSheetRowsRejectsGarbage(t *testing.T) {
	if _, err := SheetRows([]byte("not a spreadsheet at all")); err == nil {
		t.Fatal("expected error for non-spreadsheet input")
	}
}

func TestSheetRowsFirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	first := f.GetSheetName(0)
	if err := f.SetCellValue(first, "A1", "據點"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("second"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("second", "A1", "other"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	rows, err := SheetRows(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(rows) != "[[據點]]" {
		t.Errorf("expected only the first sheet, got %v", rows)
	}
}
