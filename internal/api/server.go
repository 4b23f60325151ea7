// Package api implements the MCP daemon's HTTP surface: a single completion
// endpoint, admin endpoints for the Pipeline's runtime-mutable settings, and a
// stats endpoint, all backed by a *pipeline.Pipeline. Adapted from the teacher's
// Proxy (pkg/config/proxy.go) — same fiber app construction, middleware stack, and
// graceful-shutdown sequencing — scoped down to MCP's single-pipeline surface with
// no auth, billing, or per-tenant routing.
package api

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apireq "github.com/adaptive-mcp/adaptive-mcp/internal/api/request"
	apiresp "github.com/adaptive-mcp/adaptive-mcp/internal/api/response"
	"github.com/adaptive-mcp/adaptive-mcp/internal/config"
	"github.com/adaptive-mcp/adaptive-mcp/internal/mcp/pipeline"
)

// Server wraps a fiber app around a Pipeline.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	app      *fiber.App
	request  *apireq.Service
	response *apiresp.Service
}

// NewServer builds a Server. cfg must already have passed Validate.
func NewServer(cfg *config.Config, p *pipeline.Pipeline) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: p,
		request:  apireq.NewService(),
		response: apiresp.NewService(),
	}
}

// Run builds the fiber app, wires routes and middleware, and blocks until an
// interrupt signal arrives, then shuts down gracefully.
func (s *Server) Run() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.cfg)

	port := s.cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.cfg)
	s.setupMiddleware()
	s.setupRoutes()

	fmt.Printf("adaptive-mcp daemon starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.cfg.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("received signal: %v, starting graceful shutdown", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("context cancelled, starting shutdown")
	}

	fiberlog.Info("shutting down pipeline and server")
	s.pipeline.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(30 * time.Second)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "adaptive-mcp v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "adaptive-mcp",
	})
}

func (s *Server) setupMiddleware() {
	app := s.app
	isProd := s.cfg.IsProduction()
	allowedOrigins := s.cfg.Server.AllowedOrigins

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fmt.Errorf("1000 requests per minute")
		},
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowHeaders:     strings.Join([]string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}, ", "),
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: allowedOrigins != "*",
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	switch cfg.GetNormalizedLogLevel() {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("unknown log level %q, defaulting to info", cfg.GetNormalizedLogLevel())
	}
}
