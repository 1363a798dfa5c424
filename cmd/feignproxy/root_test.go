package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
)

func writeClients(t *testing.T, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write clients file: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(catalog())
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDescribePrintsRegisteredClients(t *testing.T) {
	clients := writeClients(t, "clients:\n  - id: httpbin\n    url: https://httpbin.org\n")

	out, err := execute(t, "describe", "--clients-file", clients, "--log-level", "error")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"identity: httpbin", "base_url: https://httpbin.org", "route: GET /anything/{path}", "- header:X-Trace-Id"} {
		if !strings.Contains(out, want) {
			t.Fatalf("describe output missing %q:\n%s", want, out)
		}
	}
}

func TestDescribeFailsWithoutTarget(t *testing.T) {
	clients := writeClients(t, "clients:\n  - id: other\n    url: https://example.com\n")

	_, err := execute(t, "describe", "--clients-file", clients, "--log-level", "error")
	var contractErr *clienterr.ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected ContractError, got %v", err)
	}
}

func TestScanOutsideSamplesRegistersNothing(t *testing.T) {
	clients := writeClients(t, "clients:\n  - id: other\n    url: https://example.com\n")

	out, err := execute(t, "describe",
		"--clients-file", clients,
		"--log-level", "error",
		"--base-package", "github.com/samvad-hq/samvad-feign-proxy/pkg",
	)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if strings.Contains(out, "identity:") {
		t.Fatalf("no client should be registered:\n%s", out)
	}
}

func TestRejectsUnknownScanPolicy(t *testing.T) {
	_, err := execute(t, "describe", "--scan-policy", "glob")
	if err == nil || !strings.Contains(err.Error(), "scan_policy") {
		t.Fatalf("expected scan policy error, got %v", err)
	}
}
