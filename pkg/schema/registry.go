package schema

import (
	"fmt"
	"strings"

	"github.com/voxnav/voxnav/pkg/errorsx"
	"github.com/voxnav/voxnav/pkg/slots"
)

// Field declares one slot of a schema.
type Field struct {
	Name    string     `mapstructure:"name"`
	Kind    slots.Kind `mapstructure:"kind"`
	Choices []string   `mapstructure:"choices"`
}

// Schema is the immutable slot contract for one (intent, sub-intent) pair.
// Required order is the prompting order.
type Schema struct {
	Intent    string  `mapstructure:"intent"`
	SubIntent string  `mapstructure:"sub_intent"`
	Required  []Field `mapstructure:"required"`
	Optional  []Field `mapstructure:"optional"`
}

// Field looks a slot up by name across required and optional fields.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Required {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range s.Optional {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Allows reports whether name belongs to this schema at all.
func (s Schema) Allows(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// RequiredNames returns required slot names in declared order.
func (s Schema) RequiredNames() []string {
	out := make([]string, len(s.Required))
	for i, f := range s.Required {
		out[i] = f.Name
	}
	return out
}

// SingleTurn reports whether the schema completes without collecting slots.
func (s Schema) SingleTurn() bool { return len(s.Required) == 0 }

type key struct {
	intent    string
	subIntent string
}

// Registry maps (intent, sub-intent) pairs to schemas. It is built once at
// startup and read-only afterwards, so no locking is needed.
type Registry struct {
	schemas map[key]Schema
}

// NewRegistry builds a registry from the given schemas. A schema with an empty
// sub-intent acts as the fallback for its whole intent.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[key]Schema, len(schemas))}
	for _, s := range schemas {
		if strings.TrimSpace(s.Intent) == "" {
			return nil, fmt.Errorf("schema with empty intent")
		}
		k := key{intent: s.Intent, subIntent: s.SubIntent}
		if _, dup := r.schemas[k]; dup {
			return nil, fmt.Errorf("duplicate schema %s/%s", s.Intent, s.SubIntent)
		}
		for _, f := range append(append([]Field{}, s.Required...), s.Optional...) {
			if f.Name == "" {
				return nil, fmt.Errorf("schema %s/%s has unnamed field", s.Intent, s.SubIntent)
			}
			switch f.Kind {
			case slots.KindString, slots.KindDate, slots.KindNumber, slots.KindChoice:
			case "":
				return nil, fmt.Errorf("schema %s/%s field %s has no kind", s.Intent, s.SubIntent, f.Name)
			default:
				return nil, fmt.Errorf("schema %s/%s field %s has unknown kind %q", s.Intent, s.SubIntent, f.Name, f.Kind)
			}
		}
		r.schemas[k] = s
	}
	return r, nil
}

// Lookup resolves the schema for an (intent, sub-intent) pair, falling back to
// the intent-wide entry when the exact pair is unregistered.
func (r *Registry) Lookup(intent, subIntent string) (Schema, error) {
	if s, ok := r.schemas[key{intent: intent, subIntent: subIntent}]; ok {
		return s, nil
	}
	if s, ok := r.schemas[key{intent: intent}]; ok {
		return s, nil
	}
	return Schema{}, errorsx.New(fmt.Sprintf("no schema for %s/%s", intent, subIntent), errorsx.ReasonSchemaNotFound)
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int { return len(r.schemas) }
