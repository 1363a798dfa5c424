package httpbin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
)

// fakeHTTPBin answers the subset of httpbin the tests use.
func fakeHTTPBin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/status/"):
			code, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
			w.WriteHeader(code)
		case strings.HasPrefix(r.URL.Path, "/anything/"):
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Echo{
				URL:     r.URL.EscapedPath(),
				Headers: map[string]string{"X-Trace-Id": r.Header.Get("X-Trace-Id")},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeclaredClientWorksEndToEnd(t *testing.T) {
	srv := fakeHTTPBin(t)

	cat := registry.NewCatalog()
	Declare(cat)

	b := &registry.Builder{
		Targets:   staticTargets{TargetID: srv.URL},
		Transport: httpclient.NewRestyClient(5 * time.Second),
	}
	reg, err := b.Build(cat, "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	client, err := registry.Get[Client](reg)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	echo, err := client.Anything(context.Background(), "a b", "trace-1")
	if err != nil {
		t.Fatalf("Anything: %v", err)
	}
	if echo.URL != "/anything/a%20b" || echo.Headers["X-Trace-Id"] != "trace-1" {
		t.Fatalf("unexpected echo %+v", echo)
	}

	err = client.Status(context.Background(), http.StatusTeapot)
	if !clienterr.IsRemoteStatus(err, http.StatusTeapot) {
		t.Fatalf("expected 418 RemoteError, got %v", err)
	}
	var remote *clienterr.RemoteError
	if !errors.As(err, &remote) || remote.URL != srv.URL+"/status/418" {
		t.Fatalf("remote error should carry the URL, got %v", err)
	}
}
