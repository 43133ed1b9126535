package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/specto/internal/build"
	"github.com/conneroisu/specto/internal/coordinator"
	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/server"
	"github.com/conneroisu/specto/internal/watcher"
	"github.com/conneroisu/specto/internal/websocket"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if err := checkSetup(cfg); err != nil {
		return err
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info(ctx, "Shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	compiler := build.NewCompiler(cfg.Build, os.Stderr, logger)

	artifact, err := filepath.Abs(compiler.ArtifactPath())
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot resolve artifact path", err)
	}

	fsWatcher, err := watcher.NewFSWatcher(cfg.Watch.Root, logger)
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	hub := websocket.NewHub(logger)
	defer hub.Close()

	coord := coordinator.New(coordinator.Options{
		Builder: compiler,
		Hub:     hub,
		Source:  fsWatcher,
		Filter: watcher.Filter{
			Root:           fsWatcher.Root(),
			IncludeCreated: cfg.Watch.IncludeCreated,
			Ignore:         cfg.Watch.Ignore,
			Exclude:        []string{artifact},
		},
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})

	srv := server.New(server.Options{
		Address:      cfg.Server.Address,
		ArtifactPath: compiler.ArtifactPath(),
		Reload:       websocket.NewHandler(hub, cfg.Server.AllowedOrigins, logger),
		Status:       coord,
		Logger:       logger,
	})

	// Bind before building so a taken port fails fast.
	addr, err := srv.Listen()
	if err != nil {
		return err
	}

	if outcome := coord.InitialBuild(ctx); !outcome.Success {
		fmt.Fprintln(os.Stderr, "Initial build failed; serving will start anyway and pick up the next successful build.")
	}

	fmt.Printf("specto watching %s, serving http://%s\n", fsWatcher.Root(), addr)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	runErr := make(chan error, 1)
	go func() { runErr <- coord.Run(ctx) }()

	// Whichever side stops first takes the other down with it.
	select {
	case err = <-runErr:
		cancel()
		hub.Close()
		<-serveErr
	case err = <-serveErr:
		cancel()
		hub.Close()
		<-runErr
	}

	return err
}
