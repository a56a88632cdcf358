package codec

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// cborEnc uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// record always produces identical bytes.
var cborEnc cbor.EncMode

// cborDec decodes maps into map[string]any, matching the JSON and YAML paths.
var cborDec cbor.DecMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

func decodeRecord(format Format, data []byte) (*Record, error) {
	if format == FormatXML {
		root, err := decodeXML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return &Record{Root: root}, nil
	}

	v, err := decodeDocument(format, data)
	if err != nil {
		return nil, err
	}
	return recordFromValue(v)
}

func decodeDocument(format Format, data []byte) (any, error) {
	var v any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		var extra any
		if err := dec.Decode(&extra); err != io.EOF {
			return nil, fmt.Errorf("%w: trailing data after JSON document", ErrMalformed)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&v); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: empty YAML document", ErrMalformed)
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		var extra any
		if err := dec.Decode(&extra); err != io.EOF {
			return nil, fmt.Errorf("%w: more than one YAML document", ErrMalformed)
		}
	case FormatCBOR:
		if err := cborDec.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return v, nil
}

func encodeRecord(format Format, r *Record) ([]byte, error) {
	if r == nil || r.Root == nil {
		return nil, fmt.Errorf("%w: empty record", ErrEncode)
	}

	var out []byte
	var err error
	switch format {
	case FormatXML:
		out, err = encodeXML(r.Root)
	case FormatJSON:
		out, err = json.MarshalIndent(r.toMap(), "", "  ")
	case FormatYAML:
		out, err = yaml.Marshal(r.toMap())
	case FormatCBOR:
		out, err = cborEnc.Marshal(r.toMap())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w as %s: %v", ErrEncode, format, err)
	}
	return out, nil
}
