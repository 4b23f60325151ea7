// Command mcpd runs the adaptive-mcp daemon: it loads a YAML configuration,
// constructs the provider gateways, cache tier, SmartRouter, Executor, and
// Pipeline, then serves the HTTP façade until an interrupt signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/api"
	"github.com/adaptive-mcp/adaptive-mcp/internal/config"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/cache"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/events"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/executor"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/pipeline"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/provider"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/queue"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/router"
	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the daemon's YAML configuration file")
	envFile := flag.String("env-file", ".env", "path to an optional .env file loaded before the config file")
	flag.Parse()

	config.LoadEnvFiles([]string{*envFile})

	cfg, err := config.New(*configPath)
	if err != nil {
		fiberlog.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fiberlog.Fatalf("invalid configuration: %v", err)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	sink := events.NewLogSink()

	gateways, err := buildGateways(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider gateways: %w", err)
	}

	var store models.PersistentStore
	if cfg.Database != nil {
		gormStore, err := cache.NewGormStore(*cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer gormStore.Close()
		store = gormStore
	}

	tier, err := cache.NewTier(cfg.ExactCache, cfg.SemanticCache, store, sink)
	if err != nil {
		return fmt.Errorf("failed to build cache tier: %w", err)
	}
	defer tier.Close()

	smartRouter := router.New(cfg.DefaultModel)
	remote := router.NewRemoteOverride(cfg.RemoteOverride)

	exec := executor.New(cfg.Executor, tier, smartRouter, remote, gateways, sink, cfg.Fallback, cfg.CircuitBreaker)

	q := queue.New(cfg.Queue.Capacity)
	p := pipeline.New(q, exec, tier, smartRouter, cfg.Queue, cfg.Executor)
	p.SetStrategy(cfg.Strategy)
	defer p.Shutdown()

	server := api.NewServer(cfg, p)
	return server.Run()
}

// buildGateways constructs one ProviderGateway per configured provider credential.
func buildGateways(cfg *config.Config) (map[models.ProviderId]provider.Gateway, error) {
	gateways := make(map[models.ProviderId]provider.Gateway, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		switch id {
		case models.ProviderAnthropic:
			gateways[id] = provider.NewAnthropicGateway(pc)
		case models.ProviderOpenAI:
			gateways[id] = provider.NewOpenAIGateway(pc, id)
		case models.ProviderGemini:
			gw, err := provider.NewGeminiGateway(context.Background(), pc)
			if err != nil {
				return nil, err
			}
			gateways[id] = gw
		default:
			return nil, fmt.Errorf("unknown provider %q in configuration", id)
		}
	}
	return gateways, nil
}
