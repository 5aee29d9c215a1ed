package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"tgrelay/internal/api"
	"tgrelay/internal/config"
	"tgrelay/internal/export"
	"tgrelay/internal/listener"
	"tgrelay/internal/logging"
	"tgrelay/internal/queue"
	"tgrelay/internal/redis"
	"tgrelay/internal/resolver"
	"tgrelay/internal/scraper"
	"tgrelay/internal/stats"
	"tgrelay/internal/telegram"
	"tgrelay/internal/worker"
)

func main() {
	os.Exit(run())
}

// run wires and starts the relay and blocks until shutdown. It returns the
// process exit code so deferred cleanup always runs.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		boot.Error().Err(err).Msg("failed to load config")
		return 1
	}

	log := logging.New(cfg.Log)
	log.Info().Msg("starting relay and loading configuration")

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	rules, err := listener.NewRules(cfg)
	if err != nil {
		log.Error().Err(err).Msg("invalid filter or routing configuration")
		return 1
	}
	log.Debug().Ints64("source_ids", cfg.Subscriptions()).Msg("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tg := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.RequestTimeout)
	me, err := tg.Connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to start telegram client")
		return 1
	}
	log.Info().Str("username", me.Username).Msg("client successfully started")

	var (
		cache resolver.Cache    = resolver.NewMemoryCache()
		seen  worker.SeenStore = worker.NewMemorySeen()
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(cfg.Redis.Addr, cfg.Redis.SeenTTL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to redis")
			return 1
		}
		defer rdb.Close()
		cache, seen = rdb, rdb
	}
	names := resolver.NewCached(tg, cache, cfg.Resolver.CacheTTL, log)

	if cfg.Export.Enabled {
		chats := append(cfg.Subscriptions(), rules.Routes().Chats()...)
		if _, err := export.GroupIDs(ctx, tg, dedupe(chats), cfg.Export.Path, log); err != nil {
			log.Error().Err(err).Msg("group id export failed")
		}
	}

	overflow, _ := queue.ParseOverflow(cfg.Queue.Overflow)
	q := queue.NewMemory(cfg.Queue.Capacity, overflow, log)
	defer q.Close()

	counters := &stats.Counters{}
	l := listener.New(rules, q, counters, log)

	var (
		server      *api.Server
		broadcaster worker.Broadcaster
	)
	if cfg.Server.Port != "" {
		server = api.NewServer(rules, q, counters)
		broadcaster = server
	}

	w := worker.NewConsumer(q, names, tg, broadcaster, worker.ParseRestartPolicy(cfg.Worker.Restart), counters, log)

	workerErr := make(chan error, 1)
	go func() {
		log.Info().Msg("starting message processing task")
		workerErr <- w.Start(ctx)
	}()

	poller := telegram.NewPoller(tg, cfg.Subscriptions(), cfg.Telegram.PollTimeout, log)
	go func() {
		if err := poller.Run(ctx, l); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("poller stopped")
		}
	}()

	feeds := scraper.NewFeed()
	for _, fc := range cfg.Feeds {
		go worker.NewFeed(feeds, seen, l, fc, log).Start(ctx)
	}

	if server != nil {
		go func() {
			log.Info().Str("addr", cfg.Server.Port).Msg("server starting")
			if err := server.Start(cfg.Server.Port); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("server error")
			}
		}()
	}

	log.Info().Msg("relay started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		log.Info().Msg("shutting down")
	case err := <-workerErr:
		if err != nil {
			log.Error().Err(err).Msg("forward worker stopped")
			exitCode = 1
		}
	}

	cancel()
	if server != nil {
		server.Shutdown()
	}
	log.Info().Msg("client disconnected")

	return exitCode
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
