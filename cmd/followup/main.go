package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/followup/internal/config"
	"github.com/example/followup/internal/logging"
	"github.com/example/followup/internal/seed"
)

const usage = `usage: followup [serve | seed [-file path]]

serve   run the HTTP API and reminder dispatcher (default)
seed    store the demo events, or the events of a YAML seed file
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve", "seed":
	case "help", "-h", "--help":
		fmt.Fprint(stderr, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if command == "seed" {
		return runSeed(ctx, a, args, stderr)
	}
	return serve(ctx, a)
}

func runSeed(ctx context.Context, a *app, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "YAML seed file (default: built-in demo events)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := seed.Load(*file)
	if err != nil {
		return err
	}
	inputs, err := doc.Inputs(time.Now(), a.location)
	if err != nil {
		return err
	}

	result, err := seed.Run(ctx, a.events, inputs, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("seed complete", "created", result.Created, "skipped", result.Skipped)
	return nil
}

func serve(ctx context.Context, a *app) error {
	server := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("followup API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server encountered error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
		return nil
	})

	if a.dispatcher != nil {
		g.Go(func() error {
			return a.dispatcher.Run(ctx)
		})
	}

	return g.Wait()
}
