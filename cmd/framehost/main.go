package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/compiler"
	"github.com/GriffinCanCode/livedemo/internal/config"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/render"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

func main() {
	cfg := config.LoadOrDefault()

	server := flag.String("server", "ws://localhost:"+cfg.Server.Port, "Live demo server base URL")
	demoID := flag.String("demo", "", "Demo to host (required)")
	flag.StringVar(&cfg.Demo.Dir, "demos", cfg.Demo.Dir, "Demo manifest directory")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	if *demoID == "" || cfg.Demo.Dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	zap.ReplaceGlobals(logger.Logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *server, id.DemoID(*demoID), logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Frame host stopped", zap.Error(err))
	}
}

// run hosts one demo in a local frame and serves it to the server,
// reconnecting with backoff until ctx ends
func run(ctx context.Context, cfg *config.Config, server string, demoID id.DemoID, logger *logging.Logger) error {
	demos, err := demo.LoadDir(cfg.Demo.Dir, render.HostModules())
	if err != nil {
		return err
	}
	var d *demo.Demo
	for _, candidate := range demos {
		if candidate.ID == demoID {
			d = candidate
			break
		}
	}
	if d == nil {
		return fmt.Errorf("demo %q not found in %s", demoID, cfg.Demo.Dir)
	}

	var comp compiler.Compiler
	if cfg.Compiler.URL != "" {
		comp = compiler.NewRemote(compiler.RemoteConfig{
			URL:     cfg.Compiler.URL,
			Retries: cfg.Compiler.Retries,
			Timeout: cfg.Compiler.Timeout,
		})
	}
	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Demo.SandboxTimeout

	frame, err := bridge.NewLocalFrame(bridge.LocalConfig{
		ID:       d.ID.String(),
		Asset:    d.Asset,
		Context:  d.Context,
		Compiler: comp,
		Sandbox:  sandboxCfg,
		Logger:   logger.ForDemo(d.ID),
	})
	if err != nil {
		return err
	}
	defer frame.Close()

	endpoint, err := url.JoinPath(server, "api", "demos", d.ID.String(), "frame")
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	backoff := 500 * time.Millisecond
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			logger.Info("Serving demo frame", zap.String("endpoint", endpoint))
			backoff = 500 * time.Millisecond
			err = bridge.Serve(ctx, conn, frame)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Frame connection lost, retrying", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}
