package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-feign-proxy/internal/config"
	"github.com/samvad-hq/samvad-feign-proxy/internal/logger"
	"github.com/samvad-hq/samvad-feign-proxy/internal/metrics"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/codec"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/proxy"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/targets"
)

const shutdownTimeout = 5 * time.Second

// Application owns the client registry built at startup and the optional
// metrics listener.
type Application struct {
	cfg      *config.Config
	registry *registry.Registry
	recorder *metrics.Recorder
	metrics  *metrics.Server
	log      logger.Logger
}

// Options carries collaborators that tests may replace.
type Options struct {
	Transport httpclient.Client // defaults to a pooled resty client
}

// New builds every declared client under cfg.BasePackage. Any contract,
// target or format problem aborts startup.
func New(cfg *config.Config, cat *registry.Catalog, log logger.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	var targetReg registry.TargetResolver
	if cfg.ClientsFile != "" {
		reg, err := targets.LoadRegistry(cfg.ClientsFile)
		if err != nil {
			return nil, fmt.Errorf("load clients registry: %w", err)
		}
		enabled := reg.Enabled()
		ids := make([]string, 0, len(enabled))
		for _, c := range enabled {
			ids = append(ids, c.ID)
		}
		log.InfoObj("clients registry loaded", "clients_meta", map[string]any{
			"count":   len(ids),
			"enabled": ids,
			"file":    cfg.ClientsFile,
		})
		targetReg = reg
	}

	ext, err := contract.NewExtractor(cfg.DescriptorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init descriptor cache: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = httpclient.NewRestyClient(cfg.HTTPTimeout)
	}

	recorder := metrics.NewRecorder()
	builder := &registry.Builder{
		Extractor:     ext,
		Targets:       targetReg,
		Transport:     transport,
		Formats:       codec.DefaultFormats(),
		DefaultFormat: cfg.DefaultFormat,
		Policy:        cfg.Policy,
		Observer:      recorder,
		Interceptors:  []proxy.Interceptor{userAgent(cfg.AppName)},
		Logger:        log,
	}
	reg, err := builder.Build(cat, cfg.BasePackage)
	if err != nil {
		return nil, fmt.Errorf("register clients: %w", err)
	}
	recorder.ClientsRegistered.Set(float64(reg.Len()))

	a := &Application{
		cfg:      cfg,
		registry: reg,
		recorder: recorder,
		log:      log,
	}
	if cfg.MetricsAddr != "" {
		a.metrics = metrics.NewServer(cfg.MetricsAddr, recorder.Gatherer(), log)
	}
	return a, nil
}

// Registry returns the read-only client registry.
func (a *Application) Registry() *registry.Registry {
	return a.registry
}

// Recorder returns the call metrics recorder.
func (a *Application) Recorder() *metrics.Recorder {
	return a.recorder
}

// Run serves metrics when configured and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("application is not initialized")
	}

	if a.metrics != nil {
		if err := a.metrics.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer a.stopMetrics()
	}

	a.log.InfoObj("clients ready", "app_state", map[string]any{
		"clients":      a.registry.Identities(),
		"base_package": a.cfg.BasePackage,
		"scan_policy":  a.cfg.ScanPolicy,
	})

	<-ctx.Done()
	a.log.InfoObj("application exiting", "reason", ctx.Err().Error())
	return nil
}

func (a *Application) stopMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.metrics.Stop(ctx); err != nil {
		a.log.ErrorObj("metrics server stop failed", "error", err.Error())
	}
}

// userAgent sets a User-Agent header unless the call already carries one.
func userAgent(appName string) proxy.Interceptor {
	return func(_ context.Context, req *httpclient.Request) error {
		if appName != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", appName)
		}
		return nil
	}
}
