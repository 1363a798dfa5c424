package contract

import (
	"fmt"
	"net/http"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
)

const defaultCacheSize = 256

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

// Extractor derives descriptors from contract types and caches the result per type.
// It is safe for concurrent use.
type Extractor struct {
	cache *lru.Cache[reflect.Type, []Descriptor]
}

// NewExtractor builds an extractor whose cache holds up to size contracts.
func NewExtractor(size int) (*Extractor, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[reflect.Type, []Descriptor](size)
	if err != nil {
		return nil, fmt.Errorf("create descriptor cache: %w", err)
	}
	return &Extractor{cache: cache}, nil
}

// Extract returns one descriptor per operation of the contract, in field
// declaration order.
func (e *Extractor) Extract(t reflect.Type) ([]Descriptor, error) {
	if t == nil {
		return nil, clienterr.Contractf("", "", "contract type is nil")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if e != nil && e.cache != nil {
		if cached, ok := e.cache.Get(t); ok {
			return cloneDescriptors(cached), nil
		}
	}

	descs, err := extract(t)
	if err != nil {
		return nil, err
	}
	if e != nil && e.cache != nil {
		e.cache.Add(t, descs)
	}
	return cloneDescriptors(descs), nil
}

// cloneDescriptors copies descs down to their slices so callers never share
// backing arrays with the cache.
func cloneDescriptors(descs []Descriptor) []Descriptor {
	out := make([]Descriptor, len(descs))
	for i, d := range descs {
		d.Placeholders = append([]string(nil), d.Placeholders...)
		d.Bindings = append([]Binding(nil), d.Bindings...)
		d.Params = append([]reflect.Type(nil), d.Params...)
		out[i] = d
	}
	return out
}

// Len returns the number of cached contracts.
func (e *Extractor) Len() int {
	if e == nil || e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

func extract(t reflect.Type) ([]Descriptor, error) {
	id := Identity(t)
	if t.Kind() != reflect.Struct {
		return nil, clienterr.Contractf(id, "", "contract must be a struct type, got %s", t.Kind())
	}
	if t.Name() == "" {
		return nil, clienterr.Contractf(t.String(), "", "contract must be a named type")
	}

	var descs []Descriptor
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous || field.Type.Kind() != reflect.Func {
			continue
		}
		d, err := describe(id, i, field)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}

	if len(descs) == 0 {
		return nil, clienterr.Contractf(id, "", "declares no operations")
	}
	return descs, nil
}

func describe(id string, index int, field reflect.StructField) (Descriptor, error) {
	fail := func(format string, args ...any) (Descriptor, error) {
		return Descriptor{}, clienterr.Contractf(id, field.Name, format, args...)
	}

	route, ok := field.Tag.Lookup(TagRoute)
	if !ok || route == "" {
		return fail("missing %s tag (want \"METHOD /path\")", TagRoute)
	}
	method, path, err := parseRoute(route)
	if err != nil {
		return fail("%v", err)
	}
	placeholders, err := parsePlaceholders(path)
	if err != nil {
		return fail("%v", err)
	}

	ft := field.Type
	if ft.IsVariadic() {
		return fail("variadic operations are not supported")
	}
	if ft.NumIn() == 0 || ft.In(0) != contextType {
		return fail("first parameter must be context.Context")
	}

	var result reflect.Type
	switch ft.NumOut() {
	case 1:
		if ft.Out(0) != errorType {
			return fail("single result must be error")
		}
	case 2:
		if ft.Out(1) != errorType {
			return fail("second result must be error")
		}
		result = ft.Out(0)
	default:
		return fail("must return error or (T, error)")
	}

	params := make([]reflect.Type, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}

	specs, err := bindingSpecs(field, params, placeholders)
	if err != nil {
		return fail("%v", err)
	}
	bindings, err := validateBindings(method, params, placeholders, specs)
	if err != nil {
		return fail("%v", err)
	}

	return Descriptor{
		Contract:     id,
		Name:         field.Name,
		Field:        index,
		Method:       method,
		Path:         path,
		Placeholders: placeholders,
		Bindings:     bindings,
		Params:       params,
		Result:       result,
		Format:       normalizeFormat(field.Tag.Get(TagFormat)),
		Func:         ft,
	}, nil
}

// bindingSpecs reads the bind tag. Without one, parameters bind to the path
// placeholders in order when the counts agree.
func bindingSpecs(field reflect.StructField, params []reflect.Type, placeholders []string) ([]bindSpec, error) {
	tag, ok := field.Tag.Lookup(TagBind)
	if !ok || tag == "" {
		if len(params) == 0 {
			return nil, nil
		}
		if len(params) != len(placeholders) {
			return nil, fmt.Errorf("%s tag required: %d parameters but %d path placeholders", TagBind, len(params), len(placeholders))
		}
		specs := make([]bindSpec, len(placeholders))
		for i, name := range placeholders {
			specs[i] = bindSpec{kind: BindPath, name: name}
		}
		return specs, nil
	}

	specs, err := parseBindings(tag)
	if err != nil {
		return nil, err
	}
	if len(specs) != len(params) {
		return nil, fmt.Errorf("%s tag lists %d bindings for %d parameters", TagBind, len(specs), len(params))
	}
	return specs, nil
}

func validateBindings(method string, params []reflect.Type, placeholders []string, specs []bindSpec) ([]Binding, error) {
	known := make(map[string]bool, len(placeholders))
	for _, p := range placeholders {
		known[p] = true
	}

	pathBy := make(map[string]int)
	queryBy := make(map[string]int)
	headerBy := make(map[string]int)
	body := -1

	out := make([]Binding, len(specs))
	for i, spec := range specs {
		typ := params[i]
		switch spec.kind {
		case BindPath:
			if !known[spec.name] {
				return nil, fmt.Errorf("parameter %d binds unknown placeholder {%s}", i, spec.name)
			}
			if prev, dup := pathBy[spec.name]; dup {
				return nil, fmt.Errorf("placeholder {%s} bound by parameters %d and %d", spec.name, prev, i)
			}
			if !isScalar(typ) {
				return nil, fmt.Errorf("path parameter %d has non-scalar type %s", i, typ)
			}
			pathBy[spec.name] = i
		case BindQuery:
			if prev, dup := queryBy[spec.name]; dup {
				return nil, fmt.Errorf("query %q bound by parameters %d and %d", spec.name, prev, i)
			}
			if !isScalar(typ) && !isScalarSlice(typ) {
				return nil, fmt.Errorf("query parameter %d has unsupported type %s", i, typ)
			}
			queryBy[spec.name] = i
		case BindHeader:
			if prev, dup := headerBy[spec.name]; dup {
				return nil, fmt.Errorf("header %q bound by parameters %d and %d", spec.name, prev, i)
			}
			if !isScalar(typ) {
				return nil, fmt.Errorf("header parameter %d has non-scalar type %s", i, typ)
			}
			headerBy[spec.name] = i
		case BindBody:
			if body >= 0 {
				return nil, fmt.Errorf("parameters %d and %d both bind the body", body, i)
			}
			if method == http.MethodGet || method == http.MethodHead {
				return nil, fmt.Errorf("%s operations cannot carry a body", method)
			}
			body = i
		}
		out[i] = Binding{Kind: spec.kind, Name: spec.name, Param: i, Type: typ}
	}

	for _, p := range placeholders {
		if _, ok := pathBy[p]; !ok {
			return nil, fmt.Errorf("placeholder {%s} is not bound to any parameter", p)
		}
	}
	return out, nil
}

func isScalar(t reflect.Type) bool {
	if t.Implements(stringerType) || reflect.PointerTo(t).Implements(stringerType) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isScalarSlice(t reflect.Type) bool {
	return (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && isScalar(t.Elem())
}
