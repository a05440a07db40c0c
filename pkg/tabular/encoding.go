package tabular

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decode wraps src so that a UTF-8 or UTF-16 byte order mark selects the encoding,
// falling back to the configured one.
func decode(src io.Reader, name string) (io.Reader, error) {
	fallback, err := fallbackEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(src, unicode.BOMOverride(fallback.NewDecoder())), nil
}

func fallbackEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported source encoding %q", name)
	}
}
