package registry

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
)

// MatchPolicy decides which package paths fall under a scan prefix.
type MatchPolicy string

const (
	// MatchSegment matches the prefix package and packages nested below it.
	MatchSegment MatchPolicy = "segment"
	// MatchPrefix matches any package path that starts with the prefix.
	MatchPrefix MatchPolicy = "prefix"
	// MatchExact matches the prefix package only.
	MatchExact MatchPolicy = "exact"
)

// ParseMatchPolicy parses a policy name; empty means MatchSegment.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch p := MatchPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MatchSegment, nil
	case MatchSegment, MatchPrefix, MatchExact:
		return p, nil
	default:
		return "", fmt.Errorf("unknown scan policy %q (expected segment, prefix or exact)", s)
	}
}

// Match reports whether pkgPath is selected by prefix. An empty prefix
// selects everything.
func (p MatchPolicy) Match(pkgPath, prefix string) bool {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return true
	}
	switch p {
	case MatchPrefix:
		return strings.HasPrefix(pkgPath, prefix)
	case MatchExact:
		return pkgPath == prefix
	default:
		return pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/")
	}
}

// Declaration marks one contract type for proxying.
type Declaration struct {
	Type         reflect.Type
	Name         string // identity and target id override
	TargetID     string
	URL          string
	Interceptors []proxy.Interceptor
}

// Package returns the Go package path declaring the contract.
func (d Declaration) Package() string {
	if d.Type == nil {
		return ""
	}
	return d.Type.PkgPath()
}

// Identity returns the registry key: Name when set, else the type identity.
func (d Declaration) Identity() string {
	if d.Name != "" {
		return d.Name
	}
	return contract.Identity(d.Type)
}

// Target returns the id looked up in the targets file.
func (d Declaration) Target() string {
	switch {
	case d.TargetID != "":
		return d.TargetID
	case d.Name != "":
		return d.Name
	case d.Type != nil:
		return strings.ToLower(d.Type.Name())
	default:
		return ""
	}
}

// Option customizes a declaration.
type Option func(*Declaration)

// WithName sets the registry identity and the default target id.
func WithName(name string) Option {
	return func(d *Declaration) { d.Name = strings.TrimSpace(name) }
}

// WithTarget sets the target id looked up in the targets file.
func WithTarget(id string) Option {
	return func(d *Declaration) { d.TargetID = strings.TrimSpace(id) }
}

// WithURL fixes the base URL, overriding the targets file.
func WithURL(baseURL string) Option {
	return func(d *Declaration) { d.URL = strings.TrimSpace(baseURL) }
}

// WithInterceptors adds request interceptors for this contract only.
func WithInterceptors(interceptors ...proxy.Interceptor) Option {
	return func(d *Declaration) { d.Interceptors = append(d.Interceptors, interceptors...) }
}

// Catalog is the explicit list of contracts available for registration.
type Catalog struct {
	mu    sync.Mutex
	decls []Declaration
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Declare adds contract type T to the catalog. Declaring *T is the same as
// declaring T.
func Declare[T any](c *Catalog, opts ...Option) {
	d := Declaration{Type: reflect.TypeFor[T]()}
	for _, opt := range opts {
		opt(&d)
	}
	c.Add(d)
}

// Add appends a declaration. Pointer types are reduced to the struct type.
func (c *Catalog) Add(d Declaration) {
	for d.Type != nil && d.Type.Kind() == reflect.Pointer {
		d.Type = d.Type.Elem()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decls = append(c.decls, d)
}

// Len returns the number of declarations.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.decls)
}

// Scan returns the declarations whose package matches prefix, in declaration order.
func (c *Catalog) Scan(prefix string, policy MatchPolicy) []Declaration {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Declaration
	for _, d := range c.decls {
		if policy.Match(d.Package(), prefix) {
			out = append(out, d)
		}
	}
	return out
}
