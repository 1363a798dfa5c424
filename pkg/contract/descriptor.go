// Package contract turns client contracts into endpoint descriptors.
//
// A contract is a named struct type whose exported func fields are remote
// operations. Each operation carries its route in a `feign` tag and, when
// needed, its parameter bindings in a `bind` tag:
//
//	type Client struct {
//		Get    func(ctx context.Context, id string) (*User, error)            `feign:"GET /users/{id}"`
//		Search func(ctx context.Context, q string, n int) ([]User, error)     `feign:"GET /users" bind:"query=q,query=limit"`
//		Create func(ctx context.Context, u User) (*User, error)               `feign:"POST /users" bind:"body"`
//	}
package contract

import (
	"context"
	"fmt"
	"reflect"
)

// BindingKind says where a call argument ends up in the outbound request.
type BindingKind string

const (
	BindPath   BindingKind = "path"
	BindQuery  BindingKind = "query"
	BindHeader BindingKind = "header"
	BindBody   BindingKind = "body"
)

const (
	TagRoute  = "feign"
	TagBind   = "bind"
	TagFormat = "format"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Binding maps one call parameter onto the request.
type Binding struct {
	Kind  BindingKind
	Name  string // placeholder, query key or canonical header key; empty for body
	Param int    // index into Descriptor.Params
	Type  reflect.Type
}

// Descriptor is the normalized description of one remote operation.
// Descriptors are shared between callers and must not be modified.
type Descriptor struct {
	Contract     string
	Name         string
	Field        int
	Method       string
	Path         string
	Placeholders []string
	Bindings     []Binding
	Params       []reflect.Type
	Result       reflect.Type // nil when the operation only returns error
	Format       string
	Func         reflect.Type
}

// BodyParam returns the parameter index bound to the body, or -1.
func (d Descriptor) BodyParam() int {
	for _, b := range d.Bindings {
		if b.Kind == BindBody {
			return b.Param
		}
	}
	return -1
}

// HasResult reports whether the operation returns a value besides error.
func (d Descriptor) HasResult() bool { return d.Result != nil }

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s", d.Method, d.Path)
}

// Identity returns the default identity of a contract type: its package path
// and type name joined by a dot.
func Identity(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
