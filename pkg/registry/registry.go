package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
)

var (
	// ErrNotRegistered is returned when no client exists for a lookup.
	ErrNotRegistered = errors.New("client not registered")
	// ErrAmbiguous is returned by Get when a type is registered more than once.
	ErrAmbiguous = errors.New("client type registered more than once")
)

// Registry maps contract identities to live clients. It is read-only after
// Build and needs no locking.
type Registry struct {
	entries map[string]*proxy.Instance
	byType  map[reflect.Type][]string
	ids     []string
}

func newRegistry(instances []*proxy.Instance) *Registry {
	r := &Registry{
		entries: make(map[string]*proxy.Instance, len(instances)),
		byType:  make(map[reflect.Type][]string),
		ids:     make([]string, 0, len(instances)),
	}
	for _, inst := range instances {
		r.entries[inst.Identity()] = inst
		r.byType[inst.Type()] = append(r.byType[inst.Type()], inst.Identity())
		r.ids = append(r.ids, inst.Identity())
	}
	sort.Strings(r.ids)
	return r
}

// Lookup returns the client registered under id.
func (r *Registry) Lookup(id string) (*proxy.Instance, bool) {
	if r == nil {
		return nil, false
	}
	inst, ok := r.entries[id]
	return inst, ok
}

// Identities returns the registered identities in sorted order.
func (r *Registry) Identities() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.ids...)
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}

// Each calls fn for every client in identity order.
func (r *Registry) Each(fn func(inst *proxy.Instance)) {
	if r == nil {
		return
	}
	for _, id := range r.ids {
		fn(r.entries[id])
	}
}

// Get returns the only client registered for contract type T.
func Get[T any](r *Registry) (*T, error) {
	typ := reflect.TypeFor[T]()
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, typ)
	}
	ids := r.byType[typ]
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, typ)
	case 1:
		return GetNamed[T](r, ids[0])
	default:
		return nil, fmt.Errorf("%w: %s as %v", ErrAmbiguous, typ, ids)
	}
}

// GetNamed returns the client registered under id as contract type T.
func GetNamed[T any](r *Registry, id string) (*T, error) {
	inst, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	client, ok := proxy.As[T](inst)
	if !ok {
		return nil, fmt.Errorf("client %s is %s, not %s", id, inst.Type(), reflect.TypeFor[T]())
	}
	return client, nil
}
