package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-feign-proxy/internal/app"
	"github.com/samvad-hq/samvad-feign-proxy/internal/config"
	"github.com/samvad-hq/samvad-feign-proxy/internal/logger"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
)

var version = "dev"

func newRootCmd(cat *registry.Catalog) *cobra.Command {
	root := &cobra.Command{
		Use:   "feignproxy",
		Short: "Declarative HTTP clients built from Go contracts",
		Long: `feignproxy builds one HTTP client per declared contract under a base
package, registers them at startup and aborts if any contract is malformed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, cat)
		},
	}

	pf := root.PersistentFlags()
	pf.String("base-package", "", "Go package path prefix to scan for client contracts")
	pf.String("scan-policy", "", "Prefix match policy: segment, prefix or exact")
	pf.String("clients-file", "", "Path to the clients YAML/JSON file")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("metrics-addr", "", "Listen address for /metrics and /health (disabled when empty)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Register clients and block until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd, cat)
			},
		},
		&cobra.Command{
			Use:   "describe",
			Short: "Register clients and print their operations as YAML",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDescribe(cmd, cat)
			},
		},
	)
	return root
}

func runServe(cmd *cobra.Command, cat *registry.Catalog) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("feignproxy starting", "config", cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, cat, log, app.Options{})
	if err != nil {
		logger.ErrorObj("failed to register clients", "error", err.Error())
		return err
	}

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("feignproxy run: %w", err)
	}
	return nil
}

func runDescribe(cmd *cobra.Command, cat *registry.Catalog) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.InitWriter(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	application, err := app.New(cfg, cat, log, app.Options{})
	if err != nil {
		return err
	}
	return application.WriteDescription(cmd.OutOrStdout())
}
