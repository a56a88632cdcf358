package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Key prefixes used when a record is expressed as a map.
const (
	attrPrefix = "@"
	textKey    = "#text"
	xmlnsKey   = "@xmlns"
)

// Attr is an element attribute.
type Attr struct {
	Name  string
	Space string
	Value string
}

// Element is one node of a record tree.
type Element struct {
	Name     string
	Space    string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// Record is a decoded record. Records are never shared between tasks.
type Record struct {
	Root *Element
}

// Child returns the first child with the given local name.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find resolves a slash separated path of local names below e.
func (e *Element) Find(path string) *Element {
	cur := e
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		if cur = cur.Child(part); cur == nil {
			return nil
		}
	}
	return cur
}

// toMap expresses the record as {rootName: value}.
func (r *Record) toMap() map[string]any {
	return map[string]any{r.Root.Name: r.Root.value("")}
}

// value maps an element to a string or a map. The namespace is written
// only where it differs from the parent's.
func (e *Element) value(parentSpace string) any {
	ownSpace := e.Space != parentSpace
	if len(e.Attrs) == 0 && len(e.Children) == 0 && !ownSpace {
		return e.Text
	}

	m := make(map[string]any, len(e.Attrs)+len(e.Children)+2)
	if ownSpace {
		m[xmlnsKey] = e.Space
	}
	for _, a := range e.Attrs {
		m[attrPrefix+a.Name] = a.Value
	}
	if e.Text != "" {
		m[textKey] = e.Text
	}

	counts := make(map[string]int, len(e.Children))
	for _, c := range e.Children {
		counts[c.Name]++
	}
	for _, c := range e.Children {
		v := c.value(e.Space)
		if counts[c.Name] == 1 {
			m[c.Name] = v
			continue
		}
		list, _ := m[c.Name].([]any)
		m[c.Name] = append(list, v)
	}
	return m
}

// recordFromValue rebuilds a record from a decoded map-shaped document.
func recordFromValue(v any) (*Record, error) {
	m, err := asMap(v)
	if err != nil {
		return nil, err
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("%w: document must have exactly one root key, got %d", ErrMalformed, len(m))
	}
	for name, val := range m {
		root, err := elementFromValue(name, val, "")
		if err != nil {
			return nil, err
		}
		return &Record{Root: root}, nil
	}
	panic("unreachable")
}

func elementFromValue(name string, v any, parentSpace string) (*Element, error) {
	if name == "" || strings.HasPrefix(name, attrPrefix) || name == textKey {
		return nil, fmt.Errorf("%w: invalid element name %q", ErrMalformed, name)
	}
	el := &Element{Name: name, Space: parentSpace}
	if v == nil {
		return el, nil
	}
	if text, ok := scalarText(v); ok {
		el.Text = text
		return el, nil
	}

	m, err := asMap(v)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", name, err)
	}
	if ns, ok := m[xmlnsKey]; ok {
		s, ok := scalarText(ns)
		if !ok {
			return nil, fmt.Errorf("%w: element %q: namespace must be a string", ErrMalformed, name)
		}
		el.Space = s
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := m[k]
		switch {
		case k == xmlnsKey:
		case k == textKey:
			text, ok := scalarText(val)
			if !ok {
				return nil, fmt.Errorf("%w: element %q: text must be a scalar", ErrMalformed, name)
			}
			el.Text = text
		case strings.HasPrefix(k, attrPrefix):
			if k == attrPrefix {
				return nil, fmt.Errorf("%w: element %q: empty attribute name", ErrMalformed, name)
			}
			text, ok := scalarText(val)
			if !ok {
				return nil, fmt.Errorf("%w: element %q: attribute %q must be a scalar", ErrMalformed, name, k)
			}
			el.Attrs = append(el.Attrs, Attr{Name: strings.TrimPrefix(k, attrPrefix), Value: text})
		default:
			items, isList := val.([]any)
			if !isList {
				items = []any{val}
			}
			for _, item := range items {
				child, err := elementFromValue(k, item, el.Space)
				if err != nil {
					return nil, err
				}
				el.Children = append(el.Children, child)
			}
		}
	}
	return el, nil
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrMalformed, v)
	}
}

func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case []byte:
		return string(x), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}
