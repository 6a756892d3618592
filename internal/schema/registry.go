package schema

import (
	"runtime"
	"slices"
	"sync"

	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
)

// Registry maps operator types to their schemas. Entries are created once
// and never removed.
type Registry struct {
	once    sync.Once
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry, independent of Default.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry Registry

// Default returns the process-wide registry.
func Default() *Registry {
	return &defaultRegistry
}

func (r *Registry) init() {
	r.once.Do(func() {
		r.schemas = make(map[string]*Schema)
	})
}

// Register creates the schema for name and returns it for configuration.
// file and line identify the registration site in diagnostics.
//
// Registering a name twice is a programming error: the diagnostic naming
// both sites is logged and Register panics with *DuplicateSchemaError.
// The first schema is left in place.
func (r *Registry) Register(name, file string, line int) *Schema {
	r.init()
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.schemas[name]; ok {
		err := &DuplicateSchemaError{
			Name:      name,
			File:      file,
			Line:      line,
			FirstFile: prev.file,
			FirstLine: prev.line,
		}
		log.Errorw("duplicate operator schema registration",
			"op", name,
			"file", file, "line", line,
			"registeredFile", prev.file, "registeredLine", prev.line)
		_ = log.Sync()
		panic(err)
	}

	s := New(name, file, line)
	r.schemas[name] = s
	return s
}

// Lookup returns the schema registered for name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.init()
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered operator types in sorted order.
func (r *Registry) Names() []string {
	r.init()
	r.mu.RLock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.init()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// Register creates a schema in the default registry, recording the
// caller's file and line as the registration site.
func Register(name string) *Schema {
	file, line := "unknown", 0
	if _, f, l, ok := runtime.Caller(1); ok {
		file, line = f, l
	}
	return Default().Register(name, file, line)
}

// Lookup returns the schema registered for name in the default registry.
func Lookup(name string) (*Schema, bool) {
	return Default().Lookup(name)
}

// InferOpInputOutputDevice returns the device placement required by the
// schema registered in r for def.Type.
func InferOpInputOutputDevice(r *Registry, def *opdef.OperatorDef) (in, out []tensor.DeviceOption, err error) {
	s, ok := r.Lookup(def.Type)
	if !ok {
		return nil, nil, errors.Wrapf(ErrSchemaNotFound, "device inference failed: no schema for %s", def.Type)
	}
	in, out = s.InferDevice(def)
	return in, out, nil
}
