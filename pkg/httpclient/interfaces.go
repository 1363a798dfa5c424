package httpclient

import (
	"context"
	"net/http"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Request is a fully resolved outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// Implementations must be safe for concurrent use and must abort the request
// when ctx is cancelled.
type Client interface {
	Do(ctx context.Context, req *Request) (Response, error)
}
