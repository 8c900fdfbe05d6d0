package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warcdex/internal/core/version"
	"warcdex/internal/modkit"
	"warcdex/internal/modkit/module"
	"warcdex/internal/platform/config"
	"warcdex/internal/platform/logger"

	relaymod "warcdex/internal/services/relay/module"
	"warcdex/internal/services/relay/service"
)

// warcdex-relay posts CDX shard lines to CORE_RELAY_ENDPOINT in batches
// Reads the files named as arguments (".gz" is decompressed) or stdin when none are given.
func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run returns once every deferred close has happened; errors are already logged
func run(args []string) error {
	root := config.New()
	fs := flag.NewFlagSet("warcdex-relay", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	build := version.Info("warcdex-relay")
	lopt := logger.FromEnv()
	lopt.Service = build.Service
	lopt.StaticFields = map[string]string{"version": build.Version, "commit": build.Commit}
	logger.Init(lopt)
	l := logger.Get()
	l.Info().Str("go", build.Go).Msg("warcdex-relay starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rm, err := relaymod.New(modkit.Deps{Cfg: root, Log: *l})
	if err != nil {
		l.Error().Err(err).Msg("relay module setup failed")
		return err
	}
	module.Register(rm.Name(), rm.Ports())
	relay := rm.Relay()

	start := time.Now()
	var n int
	if fs.NArg() == 0 {
		n, err = service.Feed(ctx, os.Stdin, relay)
	} else {
		n, err = service.FeedFiles(ctx, fs.Args(), relay)
	}
	// the tail batch is flushed even after a feed error
	closeErr := relay.Close(ctx)
	stats := relay.Stats()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		l.Error().Err(err).Int("read", n).Int64("sent", stats.Sent).Int("pending", stats.Pending).Msg("relay failed")
		return err
	}
	l.Info().
		Int("read", n).
		Int64("sent", stats.Sent).
		Int64("batches", stats.Batches).
		Int64("failures", stats.Failures).
		Dur("elapsed", time.Since(start)).
		Msg("relay complete")
	return nil
}
