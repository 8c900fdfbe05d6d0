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
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	phttp "warcdex/internal/platform/net/http"
	"warcdex/internal/platform/net/middleware"
	"warcdex/internal/platform/store"

	indexmod "warcdex/internal/services/index/module"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run returns once every deferred close has happened; errors are already logged
func run(args []string) error {
	root := config.New()
	pgCfg := root.Prefix("CORE_PG_")
	chCfg := root.Prefix("CORE_CH_")
	statusCfg := root.Prefix("CORE_STATUS_")

	fs := flag.NewFlagSet("warcdex-index", flag.ContinueOnError)
	var (
		fInputs = fs.String("inputs", "", "file listing container paths or URLs, one per line")
		fStatus = fs.Bool("status", statusCfg.MayBool("ENABLED", false), "serve /healthz and /status while indexing")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	build := version.Info("warcdex-index")
	lopt := logger.FromEnv()
	lopt.Service = build.Service
	lopt.StaticFields = map[string]string{"version": build.Version, "commit": build.Commit}
	logger.Init(lopt)
	l := logger.Get()
	l.Info().Str("go", build.Go).Msg("warcdex-index starting")

	paths, err := collectPaths(*fInputs, fs.Args())
	if err != nil {
		l.Error().Err(err).Msg("bad inputs")
		return err
	}
	if len(paths) == 0 {
		err := perr.InvalidArgf("no inputs: pass container paths as arguments or -inputs list.txt")
		l.Error().Err(err).Send()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgURL := pgCfg.MayString("URL", "")
	chURL := chCfg.MayString("URL", "")
	st, err := store.Open(ctx, store.Config{
		AppName: "warcdex",
		PG: store.PGConfig{
			Enabled:        pgURL != "",
			URL:            pgURL,
			MaxConns:       int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs:    pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:         pgCfg.MayBool("LOG_SQL", false),
			ConnectRetries: pgCfg.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pgCfg.MayDuration("PING_TIMEOUT", 5*time.Second),
		},
		CH: store.CHConfig{
			Enabled: chURL != "",
			URL:     chURL,
			Role:    "index",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, Log: *l, Ready: st.Guard}
	ix, err := indexmod.New(ctx, deps)
	if err != nil {
		l.Error().Err(err).Msg("index module setup failed")
		return err
	}
	module.Register(ix.Name(), ix.Ports())
	l.Debug().Strs("modules", module.Names()).Msg("modules registered")

	if *fStatus {
		srv := phttp.NewServer(statusCfg, middleware.Defaults(ix.Runner().RunID)...)
		ix.MountRoutes(srv.Router())
		phttp.MountProfiler(srv.Router(), "/debug", statusCfg.MayBool("PROFILER", false))
		go func() {
			if err := srv.Run(ctx); err != nil {
				l.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	rep, runErr := ix.Runner().Run(ctx, paths)
	if err := ix.Close(); err != nil {
		l.Error().Err(err).Msg("closing sinks failed")
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		l.Error().Err(runErr).Str("run_id", rep.RunID).Msg("index run failed")
		return runErr
	}
	l.Info().
		Str("run_id", rep.RunID).
		Int("files", rep.Files).
		Int("failed_files", rep.Failed).
		Int64("emitted", rep.Totals.Emitted).
		Dur("elapsed", rep.Elapsed).
		Msg("index run complete")
	return nil
}
