package targets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
)

const defaultTimeoutSeconds = 10

// configFile represents the structure of the clients configuration file.
type configFile struct {
	Clients []ClientConfig `json:"clients" yaml:"clients"`
}

// ClientConfig is one remote target declared in the clients file.
type ClientConfig struct {
	ID             string            `json:"id" yaml:"id"`
	URL            string            `json:"url" yaml:"url"`
	Enabled        *bool             `json:"enabled" yaml:"enabled"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Format         string            `json:"format" yaml:"format"`
}

// Registry materializes target definitions loaded from config files.
type Registry struct {
	mu      sync.RWMutex
	clients []ClientConfig
	idx     map[string]ClientConfig
}

// LoadRegistry loads the target registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("clients file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clients file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read clients file: %w", err)
	}

	fileReg, err := parseClientsFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Clients) == 0 {
		return nil, errors.New("clients file contains no clients entries")
	}
	return NewRegistry(fileReg.Clients...)
}

// NewRegistry validates cfgs and indexes them by id.
func NewRegistry(cfgs ...ClientConfig) (*Registry, error) {
	reg := &Registry{
		clients: make([]ClientConfig, len(cfgs)),
		idx:     make(map[string]ClientConfig, len(cfgs)),
	}

	for i := range cfgs {
		cfg := sanitizeClientConfig(cfgs[i])
		if err := validateClientConfig(cfg); err != nil {
			return nil, fmt.Errorf("clients[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate client id %q", cfg.ID)
		}
		reg.clients[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseClientsFile attempts to decode the clients file content.
func parseClientsFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg configFile
		if err := d.fn(data, &reg); err != nil {
			lastErr = fmt.Errorf("decode %s clients: %w", d.name, err)
			continue
		}
		return reg, nil
	}
	if lastErr != nil {
		return configFile{}, lastErr
	}

	return configFile{}, errors.New("clients file format not recognized (expected YAML or JSON)")
}

// sanitizeClientConfig trims and normalizes the client config fields.
func sanitizeClientConfig(cfg ClientConfig) ClientConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	cfg.Headers = sanitizeHeaders(cfg.Headers)

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	return cfg
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateClientConfig checks that required fields are present.
func validateClientConfig(cfg ClientConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.URL == "" {
		return fmt.Errorf("url is required for client %q", cfg.ID)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid url for client %q: %w", cfg.ID, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url for client %q must use http or https", cfg.ID)
	}
	if u.Host == "" {
		return fmt.Errorf("url for client %q has no host", cfg.ID)
	}
	return nil
}

// ByID returns the client config by id.
func (r *Registry) ByID(id string) (ClientConfig, bool) {
	if r == nil {
		return ClientConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return ClientConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured clients.
func (r *Registry) All() []ClientConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ClientConfig, len(r.clients))
	copy(out, r.clients)
	return out
}

// Enabled returns clients that are enabled.
func (r *Registry) Enabled() []ClientConfig {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]ClientConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// Resolve returns the proxy target for an enabled client id.
func (r *Registry) Resolve(id string) (proxy.Target, bool) {
	cfg, ok := r.ByID(id)
	if !ok || !cfg.EnabledValue() {
		return proxy.Target{}, false
	}
	return cfg.Target(), true
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg ClientConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}

// Target converts the config entry into a proxy target.
func (cfg ClientConfig) Target() proxy.Target {
	var headers map[string]string
	if len(cfg.Headers) > 0 {
		headers = make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			headers[k] = v
		}
	}
	return proxy.Target{
		ID:      cfg.ID,
		BaseURL: cfg.URL,
		Headers: headers,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Format:  cfg.Format,
	}
}
