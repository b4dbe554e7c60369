package pipeline

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// SheetRows reads the first worksheet of a workbook into raw string rows.
// Some dealer DMS systems export files with a spreadsheet extension that are
// really an HTML table; those fall back to the table parser.
func SheetRows(blob []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		if rows := htmlTableRows(blob); rows != nil {
			return rows, nil
		}
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// htmlTableRows parses the first <table> of an HTML document into rows.
// Returns nil when the blob is not an HTML table export.
func htmlTableRows(blob []byte) [][]string {
	probe := bytes.ToLower(blob)
	if !bytes.Contains(probe, []byte("<table")) {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return nil
	}

	var rows [][]string
	doc.Find("table").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, cells)
	})
	if len(rows) == 0 {
		return nil
	}
	return rows
}
