package core

import "recast/pkg/codec"

// Converter converts one entry payload. A Converter is used by a single
// goroutine.
type Converter interface {
	Convert(data []byte) ([]byte, error)
}

// Codec is the record conversion capability the pipeline consumes.
// NewTask and RenameEntry are called from many goroutines.
type Codec interface {
	NewTask() Converter
	RenameEntry(name string) string
}

type formatNamer interface {
	FormatNames() (from, to string)
}

// FromTranslator adapts a codec.Translator to the pipeline.
func FromTranslator(t *codec.Translator) Codec {
	return translatorCodec{t: t}
}

type translatorCodec struct {
	t *codec.Translator
}

func (c translatorCodec) NewTask() Converter { return c.t.NewTask() }

func (c translatorCodec) RenameEntry(name string) string { return c.t.RenameEntry(name) }

func (c translatorCodec) FormatNames() (string, string) {
	return c.t.From().String(), c.t.To().String()
}
