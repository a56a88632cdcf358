package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for unknown format names.
	ErrUnsupportedFormat = errors.New("unsupported record format")
	// ErrMalformed wraps every decode failure.
	ErrMalformed = errors.New("malformed record")
	// ErrSchema wraps every schema violation.
	ErrSchema = errors.New("schema violation")
	// ErrEncode wraps every encode failure.
	ErrEncode = errors.New("encode record")
)

// Format identifies a record serialization format.
type Format uint8

const (
	FormatXML Format = iota + 1
	FormatJSON
	FormatYAML
	FormatCBOR
)

// Formats lists every supported format in display order.
var Formats = []Format{FormatXML, FormatJSON, FormatYAML, FormatCBOR}

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// Extension returns the file extension used for entries in this format.
func (f Format) Extension() string {
	switch f {
	case FormatXML, FormatJSON, FormatYAML, FormatCBOR:
		return "." + f.String()
	default:
		return ""
	}
}

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	return f >= FormatXML && f <= FormatCBOR
}

// ParseFormat parses a format name. "yml" is accepted for YAML.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "xml":
		return FormatXML, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}
