package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/vidinsight/client/internal/config"
	"github.com/vidinsight/client/internal/handlers"
	"github.com/vidinsight/client/internal/httpserver"
	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/middleware"
)

const usage = "expected command: serve, migrate, login, signup, logout, whoami, oauth-url, preview, submit, list, show, watch, or credits"

// streams are the terminal handles a command reads from and writes to.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// Run bootstraps the VidInsight client and dispatches the subcommand in args.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func run(ctx context.Context, args []string, std streams) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(std.err, cfg.LogLevel, cfg.LogFormat)
	ctx = logging.WithLogger(ctx, logger)

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		return runMigrations(ctx, cfg, std.out, args[1:])
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	c, cleanup, err := buildClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return cmd(ctx, c, std, args[1:])
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)

	deps, err := buildEdge(cfg, time.Now())
	if err != nil {
		return err
	}

	handler := handlers.NewHandler(deps, middleware.DefaultGateConfig(cfg.PrivatePrefixes), middleware.RequestLogger(logger))
	srv := httpserver.New(":"+strconv.Itoa(cfg.AppPort), handler)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting http server", "port", cfg.AppPort, "api", cfg.APIBaseURL)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
