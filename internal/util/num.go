package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reCommaGroups = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	rePlainNumber = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
)

// ParseAmount coerces a spreadsheet cell to a number. Thousands separators and
// non-breaking spaces are tolerated; anything else non-numeric is an error.
func ParseAmount(input string) (float64, error) {
	token := strings.ReplaceAll(input, " ", " ")
	token = strings.ReplaceAll(strings.TrimSpace(token), " ", "")
	if reCommaGroups.MatchString(token) {
		token = strings.ReplaceAll(token, ",", "")
	}
	if !rePlainNumber.MatchString(token) {
		return 0, fmt.Errorf("not a number: %q", input)
	}
	return strconv.ParseFloat(token, 64)
}
