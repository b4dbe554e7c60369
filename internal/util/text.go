package util

import (
	"regexp"
	"strings"
)

// \s does not cover the ideographic space U+3000 that DMS exports use between
// header words, so it is listed explicitly.
var reSpaces = regexp.MustCompile(`[\s\x{3000}]+`)

// NormalizeHeader canonicalizes a raw column header: fullwidth colon variants
// become ASCII, whitespace runs collapse to a single space, surrounding
// whitespace is trimmed. Normalizing an already-normalized header is a no-op.
func NormalizeHeader(input string) string {
	s := strings.NewReplacer("：", ":", "﹕", ":").Replace(input)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func IsBlank(input string) bool {
	return strings.TrimSpace(input) == ""
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

// OptString returns nil for blank input, otherwise a pointer to the trimmed
// value.
func OptString(input string) *string {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}
	return &s
}
