package httpbin

import "github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"

// staticTargets resolves ids from a fixed map of base URLs.
type staticTargets map[string]string

func (s staticTargets) Resolve(id string) (proxy.Target, bool) {
	u, ok := s[id]
	if !ok {
		return proxy.Target{}, false
	}
	return proxy.Target{ID: id, BaseURL: u}, true
}
