// notifytail connects to an organization's notification stream and prints
// every notification to the console, optionally archiving them to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/notifytail --config configs/notifytail.example.yaml
//	NOTIFY_SERVER_BASE_URL=http://localhost:8000 NOTIFY_ORGANIZATION=acme go run ./cmd/notifytail
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskhive/notify-client/internal/config"
	"github.com/taskhive/notify-client/internal/database"
	"github.com/taskhive/notify-client/internal/logger"
	"github.com/taskhive/notify-client/internal/realtime"
	"github.com/taskhive/notify-client/internal/router"
	"github.com/taskhive/notify-client/internal/version"
	"github.com/taskhive/notify-client/internal/writer"
)

var errGaveUp = errors.New("reconnection abandoned")

// Console feed sizing. At the ceiling the oldest unprinted envelope is dropped.
const (
	consoleBufferSize    = 256
	consoleMaxBufferSize = 16384
)

func main() {
	configPath := flag.String("config", "", "path to config file (environment only if empty)")
	org := flag.String("org", "", "organization id (overrides config)")
	types := flag.String("types", "", "comma-separated event types to print (default all)")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	statsEvery := flag.Duration("stats", 30*time.Second, "stats log interval (0 disables)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath, *org)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closer, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(log)

	log.Info("starting notifytail",
		"version", version.Version,
		"commit", version.Commit,
		"organization", cfg.Organization,
		"base_url", cfg.Server.BaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := tailOptions{
		types:      splitTypes(*types),
		verbose:    *verbose,
		statsEvery: *statsEvery,
		out:        os.Stdout,
	}
	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("notifytail exited", "error", err)
		closer.Close()
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

func loadConfig(path, org string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadWithDefaults(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if org != "" {
		cfg.Organization = org
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

type tailOptions struct {
	types      []string
	verbose    bool
	statsEvery time.Duration
	out        io.Writer
}

func run(ctx context.Context, cfg *config.Config, opts tailOptions, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	g, ctx := errgroup.WithContext(ctx)

	gaveUp := make(chan struct{}, 1)
	client := realtime.New(clientConfig(cfg),
		realtime.WithLogger(log),
		realtime.WithPolicy(policyFromConfig(cfg.Reconnect)),
		realtime.WithStateHook(func(s realtime.State) {
			// Disconnected while still running means the policy gave up.
			if s == realtime.StateDisconnected && ctx.Err() == nil {
				select {
				case gaveUp <- struct{}{}:
				default:
				}
			}
		}),
	)
	defer client.Close()

	// Console feed
	printBuf := newConsoleBuffer()
	if len(opts.types) == 0 {
		client.OnAll(router.BufferListener(printBuf))
	} else {
		wanted := make(map[string]bool, len(opts.types))
		for _, t := range opts.types {
			wanted[t] = true
		}
		client.OnAll(func(env realtime.Envelope) {
			if wanted[env.Type] {
				printBuf.Send(env)
			}
		})
	}

	// Archive feed
	var archive *writer.NotificationWriter
	if cfg.Archive.Enabled {
		pool, err := database.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			return fmt.Errorf("connect archive database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		archiveBuf := router.NewGrowableBuffer[realtime.Envelope](cfg.Archive.BufferSize, cfg.Archive.MaxBufferSize)
		client.OnAll(router.BufferListener(archiveBuf))

		archive = writer.NewNotificationWriter(writerConfig(cfg.Archive), cfg.Organization, archiveBuf, pool, log)
		if err := archive.Start(ctx); err != nil {
			return fmt.Errorf("start archive writer: %w", err)
		}
		log.Info("archiving notifications",
			"host", cfg.Archive.Database.Host,
			"database", cfg.Archive.Database.Name,
		)
	}

	g.Go(func() error {
		return client.Run(ctx, cfg.Organization)
	})

	g.Go(func() error {
		printLoop(ctx, printBuf, opts.verbose, opts.out)
		return nil
	})

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-gaveUp:
			return errGaveUp
		}
	})

	if opts.statsEvery > 0 {
		g.Go(func() error {
			statsLoop(ctx, client, archive, opts.statsEvery, log)
			return nil
		})
	}

	err := g.Wait()

	if archive != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if stopErr := archive.Stop(shutdownCtx); stopErr != nil {
			log.Warn("archive writer stop", "error", stopErr)
		}
	}

	return err
}

func newConsoleBuffer() *router.GrowableBuffer[realtime.Envelope] {
	return router.NewGrowableBuffer[realtime.Envelope](consoleBufferSize, consoleMaxBufferSize)
}

func printLoop(ctx context.Context, buf *router.GrowableBuffer[realtime.Envelope], verbose bool, out io.Writer) {
	for {
		env, ok := buf.Receive(ctx)
		if !ok {
			return
		}
		fmt.Fprintln(out, formatEnvelope(env, verbose))
	}
}

func formatEnvelope(env realtime.Envelope, verbose bool) string {
	if verbose {
		data, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return fmt.Sprintf("[%s] <unprintable: %v>", env.Type, err)
		}
		return string(data)
	}

	ts := env.Timestamp
	if ts == "" {
		ts = env.ReceivedAt.UTC().Format(time.RFC3339)
	}
	typ := env.Type
	if typ == "" {
		typ = "-"
	}
	if len(env.Data) == 0 {
		return fmt.Sprintf("%s [%s]", ts, typ)
	}
	return fmt.Sprintf("%s [%s] %s", ts, typ, env.Data)
}

func statsLoop(ctx context.Context, client *realtime.Client, archive *writer.NotificationWriter, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := client.Stats()
			attrs := []any{
				"state", s.State,
				"reconnects", s.Reconnects,
				"received", s.Registry.MessagesReceived,
				"routed", s.Registry.MessagesRouted,
				"parse_errors", s.Registry.ParseErrors,
				"listener_panics", s.Registry.ListenerPanics,
			}
			if archive != nil {
				w := archive.Stats()
				attrs = append(attrs,
					"archived", w.Inserts,
					"archive_errors", w.Errors,
				)
			}
			log.Info("stats", attrs...)
		}
	}
}

func splitTypes(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
