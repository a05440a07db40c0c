package tabular

import (
	"strconv"
	"strings"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

// Cell spellings read as missing values.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#NA": {}, "N/A": {}, "n/a": {}, "NA": {}, "<NA>": {},
	"NULL": {}, "null": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {}, "None": {},
}

// ParseCell types one raw cell: missing markers become record.Absent, integers
// int64, decimals float64, true/false spellings bool, anything else a string.
// Numbers written with a leading zero (zip codes, record numbers) stay strings.
func ParseCell(raw string) any {
	s := strings.TrimSpace(raw)
	if _, ok := missingValues[s]; ok {
		return record.Absent
	}
	switch s {
	case "True", "TRUE", "true":
		return true
	case "False", "FALSE", "false":
		return false
	}
	if !looksNumeric(s) || hasLeadingZero(s) {
		return raw
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return raw
}

func looksNumeric(s string) bool {
	digits := false
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '-' || c == '+':
			if i != 0 && s[i-1] != 'e' && s[i-1] != 'E' {
				return false
			}
		case c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return digits
}

func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
