package pipeline

import (
	"strings"

	"github.com/qinyiguo/DMS2.0/internal/util"
)

// DecodedRow is the semi-structured form of one input row. Fields holds the
// trimmed raw string per mapped canonical field; Extra retains every non-blank
// cell of an unrecognized column verbatim under its original header text, so
// nothing is lost when the alias table is extended later.
type DecodedRow struct {
	Fields map[string]string
	Extra  map[string]string
}

// DecodeRow converts one raw row using the header map. The second return is
// false for rows composed entirely of blank cells; such rows are skipped
// upstream without being staged or counted.
func DecodeRow(cells []string, hm HeaderMap) (DecodedRow, bool) {
	blank := true
	for _, c := range cells {
		if !util.IsBlank(c) {
			blank = false
			break
		}
	}
	if blank {
		return DecodedRow{}, false
	}

	fields := make(map[string]string, len(hm.Columns))
	for field, idx := range hm.Columns {
		value := ""
		if idx < len(cells) {
			value = strings.TrimSpace(cells[idx])
		}
		fields[field] = value
	}

	var extra map[string]string
	for idx, header := range hm.Unknown {
		if idx >= len(cells) || util.IsBlank(cells[idx]) {
			continue
		}
		if extra == nil {
			extra = map[string]string{}
		}
		extra[header] = cells[idx]
	}

	return DecodedRow{Fields: fields, Extra: extra}, true
}
