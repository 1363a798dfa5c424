package proxy

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/codec"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
)

// Target is the remote service a client talks to.
type Target struct {
	ID      string
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
	Format  string
}

// Config holds everything New needs to build a client.
type Config struct {
	Identity      string // defaults to contract.Identity(Type)
	Type          reflect.Type
	Descriptors   []contract.Descriptor
	Target        Target
	Formats       *codec.Formats
	DefaultFormat string
	Transport     httpclient.Client
	Observer      Observer
	Interceptors  []Interceptor
	Logger        Logger
}

// Instance is a live client for one contract. It is immutable after New and
// safe for concurrent use.
type Instance struct {
	identity string
	typ      reflect.Type
	target   Target
	descs    []contract.Descriptor
	calls    map[string]*call
	value    reflect.Value
}

// New builds a client whose func fields perform the described HTTP calls.
func New(cfg Config) (*Instance, error) {
	typ := cfg.Type
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	identity := cfg.Identity
	if identity == "" {
		identity = contract.Identity(typ)
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, clienterr.Contractf(identity, "", "contract type must be a struct")
	}
	if cfg.Transport == nil {
		return nil, clienterr.Contractf(identity, "", "no transport configured")
	}
	if len(cfg.Descriptors) == 0 {
		return nil, clienterr.Contractf(identity, "", "no descriptors supplied")
	}

	base, err := normalizeBaseURL(cfg.Target.BaseURL)
	if err != nil {
		return nil, &clienterr.ContractError{Contract: identity, Reason: fmt.Sprintf("invalid target %q", cfg.Target.ID), Err: err}
	}

	format := cfg.Target.Format
	if format == "" {
		format = cfg.DefaultFormat
	}
	cdc, err := codec.New(cfg.Formats, format)
	if err != nil {
		return nil, &clienterr.ContractError{Contract: identity, Reason: "body format", Err: err}
	}

	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}

	shared := &invoker{
		identity:     identity,
		target:       cfg.Target,
		base:         base,
		codec:        cdc,
		transport:    cfg.Transport,
		observer:     observer,
		interceptors: append([]Interceptor(nil), cfg.Interceptors...),
		log:          EnsureLogger(cfg.Logger),
	}

	inst := &Instance{
		identity: identity,
		typ:      typ,
		target:   cfg.Target,
		descs:    append([]contract.Descriptor(nil), cfg.Descriptors...),
		calls:    make(map[string]*call, len(cfg.Descriptors)),
		value:    reflect.New(typ),
	}
	inst.target.BaseURL = base

	for _, d := range inst.descs {
		if err := checkDescriptor(typ, d); err != nil {
			return nil, clienterr.Contractf(identity, d.Name, "%v", err)
		}
		if _, err := cdc.FormatFor(d); err != nil {
			return nil, clienterr.Contractf(identity, d.Name, "%v", err)
		}
		if _, dup := inst.calls[d.Name]; dup {
			return nil, clienterr.Contractf(identity, d.Name, "duplicate operation")
		}

		c := &call{desc: d, shared: shared}
		inst.calls[d.Name] = c
		inst.value.Elem().Field(d.Field).Set(reflect.MakeFunc(d.Func, c.typed))
	}

	return inst, nil
}

// Build is New for a statically known contract type.
func Build[T any](cfg Config) (*T, *Instance, error) {
	cfg.Type = reflect.TypeFor[T]()
	inst, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, _ := As[T](inst)
	return client, inst, nil
}

// As returns the typed client held by inst.
func As[T any](inst *Instance) (*T, bool) {
	if inst == nil {
		return nil, false
	}
	client, ok := inst.value.Interface().(*T)
	return client, ok
}

// Identity returns the registry key of the client.
func (i *Instance) Identity() string { return i.identity }

// Type returns the contract struct type.
func (i *Instance) Type() reflect.Type { return i.typ }

// Target returns the remote target with its normalized base URL.
func (i *Instance) Target() Target { return i.target }

// Value returns the typed client as a pointer to the contract struct.
func (i *Instance) Value() any { return i.value.Interface() }

// Descriptors returns the operations in declaration order.
func (i *Instance) Descriptors() []contract.Descriptor {
	return append([]contract.Descriptor(nil), i.descs...)
}

// Operations returns the operation names in declaration order.
func (i *Instance) Operations() []string {
	out := make([]string, len(i.descs))
	for idx, d := range i.descs {
		out[idx] = d.Name
	}
	return out
}

// Invoke calls an operation by name. Arguments exclude the context and are
// checked against the operation's parameter types. The result is nil for
// operations that only return an error.
func (i *Instance) Invoke(ctx context.Context, operation string, args ...any) (any, error) {
	c, ok := i.calls[operation]
	if !ok {
		return nil, &clienterr.InvocationError{
			Contract:  i.identity,
			Operation: operation,
			Err:       fmt.Errorf("%w: unknown operation", clienterr.ErrArgument),
		}
	}
	if err := checkArgs(c.desc, args); err != nil {
		return nil, &clienterr.InvocationError{Contract: i.identity, Operation: operation, Err: err}
	}

	v, err := c.invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func checkDescriptor(typ reflect.Type, d contract.Descriptor) error {
	if d.Field < 0 || d.Field >= typ.NumField() {
		return fmt.Errorf("field index %d out of range", d.Field)
	}
	field := typ.Field(d.Field)
	if field.Name != d.Name || field.Type != d.Func {
		return fmt.Errorf("descriptor does not match field %s", field.Name)
	}
	return nil
}

func checkArgs(d contract.Descriptor, args []any) error {
	if len(args) != len(d.Params) {
		return fmt.Errorf("%w: expected %d arguments, got %d", clienterr.ErrArgument, len(d.Params), len(args))
	}
	for i, arg := range args {
		want := d.Params[i]
		if arg == nil {
			switch want.Kind() {
			case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
				continue
			}
			return fmt.Errorf("%w: argument %d must be %s, got nil", clienterr.ErrArgument, i, want)
		}
		if got := reflect.TypeOf(arg); !got.AssignableTo(want) {
			return fmt.Errorf("%w: argument %d must be %s, got %s", clienterr.ErrArgument, i, want, got)
		}
	}
	return nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("base url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("base url %q must not carry a query or fragment", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
