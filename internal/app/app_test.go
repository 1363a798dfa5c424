package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samvad-hq/samvad-feign-proxy/internal/config"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
)

type greeting struct {
	Text string `json:"text"`
}

type greeterClient struct {
	Hello func(ctx context.Context, name string, lang string) (greeting, error) `feign:"GET /hello/{name}" bind:"path=name,query=lang"`
}

type brokenClient struct {
	Hello func(ctx context.Context, name string) error `feign:"GET /hello"`
}

func greeterServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		text := "hello " + strings.TrimPrefix(r.URL.Path, "/hello/") + " (" + r.URL.Query().Get("lang") + ") from " + r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"text":"` + text + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, clients string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte(clients), 0o644); err != nil {
		t.Fatalf("write clients file: %v", err)
	}
	return &config.Config{
		AppName:             "feignproxy-test",
		BasePackage:         reflect.TypeOf(greeterClient{}).PkgPath(),
		ScanPolicy:          string(registry.MatchExact),
		Policy:              registry.MatchExact,
		ClientsFile:         path,
		DefaultFormat:       "json",
		HTTPTimeout:         5 * time.Second,
		DescriptorCacheSize: 16,
	}
}

func TestNewBuildsRegistryAndCallsThrough(t *testing.T) {
	srv := greeterServer(t)
	cfg := testConfig(t, "clients:\n  - id: greeterclient\n    url: "+srv.URL+"\n")

	cat := registry.NewCatalog()
	registry.Declare[greeterClient](cat)

	a, err := New(cfg, cat, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	greeter, err := registry.Get[greeterClient](a.Registry())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := greeter.Hello(context.Background(), "ada", "en")
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if got.Text != "hello ada (en) from feignproxy-test" {
		t.Fatalf("unexpected greeting %q", got.Text)
	}

	if n := testutil.ToFloat64(a.Recorder().ClientsRegistered); n != 1 {
		t.Fatalf("clients gauge = %v", n)
	}
	if n := testutil.CollectAndCount(a.Recorder().CallsTotal); n != 1 {
		t.Fatalf("expected one calls series, got %d", n)
	}
}

func TestNewFailsOnMalformedContract(t *testing.T) {
	cfg := testConfig(t, "clients:\n  - id: greeterclient\n    url: http://localhost:1\n")

	cat := registry.NewCatalog()
	registry.Declare[greeterClient](cat)
	registry.Declare[brokenClient](cat, registry.WithURL("http://localhost:1"))

	_, err := New(cfg, cat, nil, Options{})
	var contractErr *clienterr.ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected ContractError, got %v", err)
	}
}

func TestDescribeAndRun(t *testing.T) {
	cfg := testConfig(t, "clients:\n  - id: greeterclient\n    url: http://greeter.local/\n    format: yaml\n")
	cfg.MetricsAddr = "127.0.0.1:0"

	cat := registry.NewCatalog()
	registry.Declare[greeterClient](cat)

	a, err := New(cfg, cat, nil, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := a.WriteDescription(&buf); err != nil {
		t.Fatalf("WriteDescription: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"base_url: http://greeter.local",
		"format: yaml",
		"route: GET /hello/{name}",
		"- path:name",
		"- query:lang",
		"result: app.greeting",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("description missing %q:\n%s", want, out)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
