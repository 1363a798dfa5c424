package registry

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/codec"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
)

// TargetResolver looks up the remote target for a client id.
type TargetResolver interface {
	Resolve(id string) (proxy.Target, bool)
}

// Builder turns catalog declarations into a Registry.
type Builder struct {
	Extractor     *contract.Extractor // defaults to a fresh extractor
	Targets       TargetResolver      // may be nil when every declaration uses WithURL
	Transport     httpclient.Client
	Formats       *codec.Formats
	DefaultFormat string
	Policy        MatchPolicy
	Observer      proxy.Observer
	Interceptors  []proxy.Interceptor
	Logger        proxy.Logger
}

type pending struct {
	decl   Declaration
	id     string
	descs  []contract.Descriptor
	target proxy.Target
}

// Build scans cat for contracts under prefix and builds one client per
// contract. It is all or nothing: any malformed contract, identity collision
// or missing target fails the whole build and no registry is returned.
// Contract problems are reported together, joined into one error.
func (b *Builder) Build(cat *Catalog, prefix string) (*Registry, error) {
	if cat == nil {
		return nil, errors.New("catalog is nil")
	}
	if b.Transport == nil {
		return nil, errors.New("builder has no transport")
	}
	log := proxy.EnsureLogger(b.Logger)

	ext := b.Extractor
	if ext == nil {
		var err error
		if ext, err = contract.NewExtractor(0); err != nil {
			return nil, fmt.Errorf("descriptor cache: %w", err)
		}
	}

	policy := b.Policy
	if policy == "" {
		policy = MatchSegment
	}
	decls := cat.Scan(prefix, policy)
	if len(decls) == 0 {
		log.WarnObj("no client contracts found", "scan", map[string]any{
			"prefix":   prefix,
			"policy":   policy,
			"declared": cat.Len(),
		})
	}

	items, err := b.prepare(ext, decls)
	if err != nil {
		return nil, err
	}

	instances := make([]*proxy.Instance, 0, len(items))
	var errs []error
	for _, it := range items {
		inst, err := proxy.New(proxy.Config{
			Identity:      it.id,
			Type:          it.decl.Type,
			Descriptors:   it.descs,
			Target:        it.target,
			Formats:       b.Formats,
			DefaultFormat: b.DefaultFormat,
			Transport:     b.Transport,
			Observer:      b.Observer,
			Interceptors:  append(append([]proxy.Interceptor(nil), b.Interceptors...), it.decl.Interceptors...),
			Logger:        log,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		instances = append(instances, inst)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	reg := newRegistry(instances)
	log.InfoObj("client registry built", "registry", map[string]any{
		"prefix":  prefix,
		"policy":  policy,
		"clients": reg.Identities(),
	})
	return reg, nil
}

// prepare checks identities, extracts descriptors and resolves targets for
// every declaration before any client is built.
func (b *Builder) prepare(ext *contract.Extractor, decls []Declaration) ([]pending, error) {
	var errs []error

	seen := make(map[string]Declaration, len(decls))
	for _, d := range decls {
		id := d.Identity()
		if prev, dup := seen[id]; dup {
			errs = append(errs, clienterr.Contractf(id, "", "identity collision between %s and %s", prev.Type, d.Type))
			continue
		}
		seen[id] = d
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	items := make([]pending, 0, len(decls))
	for _, d := range decls {
		id := d.Identity()
		if d.Type == nil {
			errs = append(errs, clienterr.Contractf(id, "", "declaration has no type"))
			continue
		}
		descs, err := ext.Extract(d.Type)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		target, err := b.resolveTarget(id, d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, pending{decl: d, id: id, descs: descs, target: target})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return items, nil
}

func (b *Builder) resolveTarget(id string, d Declaration) (proxy.Target, error) {
	targetID := d.Target()

	var (
		target proxy.Target
		found  bool
	)
	if b.Targets != nil {
		target, found = b.Targets.Resolve(targetID)
	}
	if d.URL != "" {
		if !found {
			target = proxy.Target{ID: targetID}
		}
		target.BaseURL = d.URL
		return target, nil
	}
	if !found {
		return proxy.Target{}, clienterr.Contractf(id, "", "no enabled target %q configured", targetID)
	}
	return target, nil
}
