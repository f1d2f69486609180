package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/voyagen/ytarchive/internal/cache"
	"github.com/voyagen/ytarchive/internal/config"
	"github.com/voyagen/ytarchive/internal/download"
	"github.com/voyagen/ytarchive/internal/fetcher"
	"github.com/voyagen/ytarchive/internal/layout"
	"github.com/voyagen/ytarchive/internal/logging"
	"github.com/voyagen/ytarchive/internal/service"
	"github.com/voyagen/ytarchive/internal/store"
	"github.com/voyagen/ytarchive/internal/youtube"
)

// lockTTL bounds how long a crashed run can keep others out.
const lockTTL = 12 * time.Hour

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use YT_CH_ARCHIVER_* environment variables")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := lookup(args[0], args[1])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0]+" "+args[1])
		usage()
		os.Exit(2)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, closeEnv, err := setup(ctx, cfg, cmd.mutates, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		stop()
		os.Exit(1)
	}
	err = cmd.run(ctx, e, args[2:])
	closeEnv()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error().Err(err).Str("command", cmd.group+" "+cmd.name).Msg("command failed")
		}
		stop()
		os.Exit(1)
	}
}

// setup opens the cache (wrapped by Redis when configured), takes the run
// lock for mutating commands and wires the archiver. The returned func
// releases everything in reverse order.
func setup(ctx context.Context, cfg *config.Config, mutates bool, log zerolog.Logger) (*env, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sqlStore, err := store.Open(ctx, cfg.CachePath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: %w", err)
	}
	closers = append(closers, func() { sqlStore.Close() })

	var appStore store.Store = sqlStore
	var rds *cache.Redis
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { rds.Close() })
		if err := rds.Ping(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		appStore = store.NewCachedStore(sqlStore, rds, cfg.CachePath, log)
		log.Debug().Msg("redis connected (caching enabled)")

		key := cache.LockKey(cfg.CachePath)
		if mutates {
			unlock, err := cache.TryLock(ctx, rds, key, lockTTL)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, unlock)
		} else if cache.IsLocked(ctx, rds, key) {
			log.Warn().Msg("another run is updating this cache; results may be incomplete")
		}
	}

	api, err := youtube.New(ctx, cfg.APIKey)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	remote := fetcher.New(api, nil, log)
	probe := &download.FFProbe{Path: cfg.FfprobePath}
	pipeline := download.NewPipeline(appStore,
		&download.Ytdlp{Path: cfg.YtdlpPath, CookiesBrowser: cfg.CookiesBrowser},
		probe, layout.Layout{Root: cfg.RootPath}, log)

	e := &env{
		archiver: service.New(appStore, remote, pipeline, probe, cfg, os.Stdout, log),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	return e, closeAll, nil
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintln(w, "usage: ytarchive [-config file] <group> <command> [flags] [args]")
	fmt.Fprintln(w)
	printCommands(w)
}

func printCommands(w io.Writer) {
	group := ""
	for _, c := range commands {
		if c.group != group {
			group = c.group
			fmt.Fprintf(w, "%s:\n", group)
		}
		fmt.Fprintf(w, "  %-18s %s\n", c.name, c.summary)
	}
}
