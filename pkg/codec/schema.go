package codec

import (
	"fmt"
	"sort"
)

// GenericSchema is the name of the built-in schema without constraints.
const GenericSchema = "generic"

// Schema describes the expected shape of a record. Schemas are built
// once and only read afterwards, so one instance serves every worker.
type Schema struct {
	Name      string   `yaml:"name" mapstructure:"name" validate:"required"`
	Root      string   `yaml:"root" mapstructure:"root"`
	Namespace string   `yaml:"namespace" mapstructure:"namespace"`
	Required  []string `yaml:"required" mapstructure:"required"`
}

// Check returns an ErrSchema error when r does not satisfy s.
func (s *Schema) Check(r *Record) error {
	if s == nil {
		return nil
	}
	if s.Root != "" && r.Root.Name != s.Root {
		return fmt.Errorf("%w: %s: root element is %q, want %q", ErrSchema, s.Name, r.Root.Name, s.Root)
	}
	if s.Namespace != "" && r.Root.Space != s.Namespace {
		return fmt.Errorf("%w: %s: root namespace is %q, want %q", ErrSchema, s.Name, r.Root.Space, s.Namespace)
	}
	for _, path := range s.Required {
		if r.Root.Find(path) == nil {
			return fmt.Errorf("%w: %s: missing required element %q", ErrSchema, s.Name, path)
		}
	}
	return nil
}

// Registry maps schema names to schemas.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry returns a registry holding the generic schema plus extra.
// Extra schemas may not reuse a name.
func NewRegistry(extra ...Schema) (*Registry, error) {
	reg := &Registry{schemas: map[string]*Schema{
		GenericSchema: {Name: GenericSchema},
	}}
	for i := range extra {
		s := extra[i]
		if s.Name == "" {
			return nil, fmt.Errorf("schema %d: name is required", i)
		}
		if _, dup := reg.schemas[s.Name]; dup {
			return nil, fmt.Errorf("schema %q defined more than once", s.Name)
		}
		reg.schemas[s.Name] = &s
	}
	return reg, nil
}

// Lookup returns the named schema.
func (r *Registry) Lookup(name string) (*Schema, error) {
	if name == "" {
		name = GenericSchema
	}
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (known: %v)", name, r.Names())
	}
	return s, nil
}

// Names returns the sorted schema names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
