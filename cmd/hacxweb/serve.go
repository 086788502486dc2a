package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/hacxweb/internal/api"
	"github.com/ashureev/hacxweb/internal/chat"
	"github.com/ashureev/hacxweb/internal/config"
	"github.com/ashureev/hacxweb/internal/health"
	"github.com/ashureev/hacxweb/internal/identity"
	"github.com/ashureev/hacxweb/internal/launch"
	"github.com/ashureev/hacxweb/internal/middleware"
	"github.com/ashureev/hacxweb/internal/provider"
	"github.com/ashureev/hacxweb/internal/store"
	"github.com/ashureev/hacxweb/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	port  int
	host  string
	share bool
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&flags.port, "port", 7860, "Port to run the server on (retries upward when busy)")
	cmd.Flags().StringVar(&flags.host, "host", "127.0.0.1", "Host to bind")
	cmd.Flags().BoolVar(&flags.share, "share", false, "Listen on all interfaces")
	return cmd
}

// applyFlags lets explicit flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags serveFlags) {
	if cmd.Flags().Changed("port") {
		cfg.Port = flags.port
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = flags.host
	}
	if cmd.Flags().Changed("share") {
		cfg.Share = flags.share
	}
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func serve(parent context.Context, cfg *config.Config, out io.Writer) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger := setupLogger(cfg.LogLevel)
	slog.Info("Starting server", "port", cfg.Port, "host", cfg.BindHost(), "dev", cfg.IsDevelopment())

	reg, err := loadRegistry(cfg)
	if err != nil {
		slog.Error("Failed to load provider registry", "error", err, "path", cfg.ProvidersPath)
		return err
	}
	slog.Info("Provider registry loaded", "providers", reg.IDs())

	prompt, err := provider.LoadSystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		slog.Error("Failed to load system prompt", "error", err)
		return err
	}
	factory := provider.NewFactory(provider.Options{
		SystemPrompt: prompt,
		Verify:       cfg.VerifyOnConnect,
	}, logger)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	mgr := chat.NewManager(reg, factory, repo, chat.Options{
		StreamTimeout: cfg.StreamTimeout,
		Logger:        logger,
	})

	handler := api.NewHandler(mgr, reg, repo, api.Options{
		MaxRequestBodySize: cfg.RateLimit.MaxRequestBodySize,
		KeepaliveInterval:  cfg.SSE.KeepaliveInterval,
		RateLimit:          cfg.RateLimit.Requests,
		RateWindow:         cfg.RateLimit.Window,
		AllowedOrigins:     cfg.AllowedOrigins,
		IsDev:              cfg.IsDevelopment(),
		Logger:             logger,
	})
	defer handler.Close()

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(!cfg.IsDevelopment()))
	handler.RegisterRoutes(r)
	r.Handle("/*", web.SPAHandler())

	ln, err := launch.Listen(cfg.BindHost(), cfg.Port, config.MaxPort)
	if err != nil {
		slog.Error("Failed to bind listener", "error", err)
		return err
	}
	var hln net.Listener
	if cfg.GRPCHealthAddr != "" {
		hln, err = net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			_ = ln.Close()
			slog.Error("Failed to bind gRPC health listener", "error", err, "addr", cfg.GRPCHealthAddr)
			return fmt.Errorf("listen grpc health: %w", err)
		}
	}

	port := launch.Port(ln)
	if port != cfg.Port {
		slog.Warn("Configured port in use", "requested", cfg.Port, "port", port)
	}
	if cfg.Share {
		slog.Warn("Share mode enabled: console is reachable on every interface", "host", cfg.BindHost())
	}
	launch.Banner{Host: cfg.BindHost(), Port: port, RequestedPort: cfg.Port, Share: cfg.Share}.Render(out)

	// SSE connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	sweeperDone := chat.StartSweeper(ctx, mgr, repo, cfg.SessionTTL, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	if hln != nil {
		hs := health.NewServer(logger)
		g.Go(func() error { return hs.Serve(gctx, hln) })
	}

	err = g.Wait()
	cancel()
	<-sweeperDone
	if err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}
	fmt.Fprintln(out, "✓ Neural link terminated")
	slog.Info("Server stopped successfully")
	return nil
}
