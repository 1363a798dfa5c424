// Package httpbin declares a client for the httpbin.org request echo service.
package httpbin

import (
	"context"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
)

// TargetID is the clients file entry this client resolves against.
const TargetID = "httpbin"

// Echo is the request echo returned by most httpbin endpoints.
type Echo struct {
	Args    map[string]any    `json:"args" yaml:"args"`
	Headers map[string]string `json:"headers" yaml:"headers"`
	Origin  string            `json:"origin" yaml:"origin"`
	URL     string            `json:"url" yaml:"url"`
	JSON    any               `json:"json,omitempty" yaml:"json,omitempty"`
}

// UUID is the body of GET /uuid.
type UUID struct {
	UUID string `json:"uuid"`
}

// Client is the httpbin contract.
type Client struct {
	Get      func(ctx context.Context, show string) (Echo, error)              `feign:"GET /get" bind:"query=show"`
	Post     func(ctx context.Context, payload map[string]any) (Echo, error)   `feign:"POST /post" bind:"body"`
	Put      func(ctx context.Context, payload map[string]any) (*Echo, error)  `feign:"PUT /put" bind:"body"`
	Delete   func(ctx context.Context) error                                   `feign:"DELETE /delete"`
	Anything func(ctx context.Context, path, traceID string) (Echo, error)     `feign:"GET /anything/{path}" bind:"path=path,header=X-Trace-Id"`
	Status   func(ctx context.Context, code int) error                         `feign:"GET /status/{code}"`
	UUID     func(ctx context.Context) (UUID, error)                           `feign:"GET /uuid"`
	Bytes    func(ctx context.Context, n int) ([]byte, error)                  `feign:"GET /bytes/{n}"`
	Headers  func(ctx context.Context, tags []string) (map[string]any, error)  `feign:"GET /headers" bind:"query=tag"`
	YAMLEcho func(ctx context.Context, payload map[string]any) (string, error) `feign:"POST /anything/yaml" bind:"body" format:"yaml"`
}

// Declare adds the httpbin client to cat.
func Declare(cat *registry.Catalog) {
	registry.Declare[Client](cat, registry.WithName(TargetID))
}
