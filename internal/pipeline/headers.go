package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/qinyiguo/DMS2.0/internal/schema"
	"github.com/qinyiguo/DMS2.0/internal/util"
)

// HeaderMap is the result of resolving a sheet's header row against the alias
// table.
type HeaderMap struct {
	// Columns maps canonical field -> column index of the first header whose
	// normalized form matched one of the field's aliases.
	Columns map[string]int
	// Unknown maps column index -> original header text for headers matching
	// no alias of any field.
	Unknown map[int]string
	// Normalized holds every header's normalized form in column order.
	Normalized []string
}

// MapHeaders resolves raw headers left to right. When two headers match the
// same canonical field, the first one wins and later matches are ignored; a
// losing duplicate still counts as recognized and is not reported as unknown.
func MapHeaders(raw []string, table *schema.AliasTable) HeaderMap {
	normalized := make([]string, len(raw))
	for i, h := range raw {
		normalized[i] = util.NormalizeHeader(h)
	}

	known := map[string]struct{}{}
	columns := map[string]int{}
	for _, field := range table.Fields() {
		aliases := map[string]struct{}{}
		for _, a := range table.Aliases(field) {
			na := util.NormalizeHeader(a)
			aliases[na] = struct{}{}
			known[na] = struct{}{}
		}
		for idx, h := range normalized {
			if _, ok := aliases[h]; ok {
				columns[field] = idx
				break
			}
		}
	}

	unknown := map[int]string{}
	for idx, h := range normalized {
		if _, ok := known[h]; !ok {
			unknown[idx] = raw[idx]
		}
	}

	return HeaderMap{Columns: columns, Unknown: unknown, Normalized: normalized}
}

// UnknownHeaders returns the unrecognized header texts in column order.
func (h HeaderMap) UnknownHeaders() []string {
	indexes := make([]int, 0, len(h.Unknown))
	for idx := range h.Unknown {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, h.Unknown[idx])
	}
	return out
}

// Signature fingerprints a header layout independent of column order: the
// normalized headers are sorted, joined deterministically and hashed.
func Signature(normalized []string) string {
	sorted := make([]string, len(normalized))
	copy(sorted, normalized)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
