// Package codec converts single records between serialization formats.
//
// A record is decoded into an element tree, optionally checked against a
// Schema, and encoded in the target format. XML maps onto JSON, YAML and
// CBOR documents as {root: value}, with attributes under "@name", the
// namespace under "@xmlns" and text under "#text". Repeated children
// become arrays.
//
// A Translator is safe for concurrent use. Decoding goes through a
// Decoder, which is not; every goroutine takes its own from NewDecoder
// or NewTask.
package codec

import (
	"bytes"
	"fmt"
	"strings"
)

// Translator converts records from one format to another.
type Translator struct {
	from     Format
	to       Format
	schema   *Schema
	validate bool
}

// NewTranslator returns a translator. A nil schema means no constraints.
func NewTranslator(from, to Format, schema *Schema, validate bool) (*Translator, error) {
	if !from.Valid() {
		return nil, fmt.Errorf("%w: source %s", ErrUnsupportedFormat, from)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: target %s", ErrUnsupportedFormat, to)
	}
	return &Translator{from: from, to: to, schema: schema, validate: validate}, nil
}

// From returns the source format.
func (t *Translator) From() Format { return t.from }

// To returns the target format.
func (t *Translator) To() Format { return t.to }

// NewDecoder returns a decoder bound to the source format and schema.
func (t *Translator) NewDecoder() *Decoder {
	return &Decoder{format: t.from, schema: t.schema, validate: t.validate}
}

// Encode encodes r in the target format.
func (t *Translator) Encode(r *Record) ([]byte, error) {
	return encodeRecord(t.to, r)
}

// Convert decodes, checks and re-encodes one record.
func (t *Translator) Convert(data []byte) ([]byte, error) {
	return t.NewTask().Convert(data)
}

// NewTask returns a single-goroutine converter with its own decoder.
func (t *Translator) NewTask() *Task {
	return &Task{translator: t, decoder: t.NewDecoder()}
}

// RenameEntry rewrites a trailing source extension to the target one.
// Names without the source extension are returned unchanged.
func (t *Translator) RenameEntry(name string) string {
	ext := t.from.Extension()
	if !strings.HasSuffix(name, ext) {
		if t.from == FormatYAML && strings.HasSuffix(name, ".yml") {
			ext = ".yml"
		} else {
			return name
		}
	}
	return strings.TrimSuffix(name, ext) + t.to.Extension()
}

// Decoder decodes records of one format. Not safe for concurrent use.
type Decoder struct {
	format   Format
	schema   *Schema
	validate bool
	reader   bytes.Reader
}

// Decode decodes data and, when validation is on, checks the schema.
func (d *Decoder) Decode(data []byte) (*Record, error) {
	var rec *Record
	var err error
	if d.format == FormatXML {
		d.reader.Reset(data)
		var root *Element
		root, err = decodeXML(&d.reader)
		rec = &Record{Root: root}
	} else {
		rec, err = decodeRecord(d.format, data)
	}
	if err != nil {
		return nil, err
	}
	if d.validate {
		if err := d.schema.Check(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Task converts records on one goroutine.
type Task struct {
	translator *Translator
	decoder    *Decoder
}

// Convert decodes data with the task's decoder and encodes the result.
func (t *Task) Convert(data []byte) ([]byte, error) {
	rec, err := t.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	return t.translator.Encode(rec)
}
