package cmd

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/config"
	"github.com/jimger/wizz-aycf-route-finder/internal/crawler"
	"github.com/jimger/wizz-aycf-route-finder/internal/export"
	"github.com/jimger/wizz-aycf-route-finder/internal/matcher"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/internal/pagebridge"
	"github.com/jimger/wizz-aycf-route-finder/internal/provider"
	"github.com/jimger/wizz-aycf-route-finder/internal/session"
	"github.com/jimger/wizz-aycf-route-finder/pkg/limiter"
	"github.com/jimger/wizz-aycf-route-finder/pkg/retry"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
	"gopkg.in/natefinch/lumberjack.v2"
)

// app is one run's object graph. Every command builds exactly one.
type app struct {
	cfg         config.Config
	recorder    *metadata.Recorder
	logger      *lumberjack.Logger
	clock       timeutil.Clock
	cache       *cache.TTLCache
	bridge      session.Collaborator
	resolver    *session.Resolver
	rateLimiter *limiter.ConcurrentRateLimiter
	gateway     *provider.HTTPGateway
	crawler     *crawler.Crawler
	matcher     *matcher.Matcher
	exporter    *export.Exporter
	purged      int
}

func newApp(cfg config.Config, errOut io.Writer) (*app, error) {
	logger := &lumberjack.Logger{
		Filename:   cfg.LogFile(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	var sinkWriter io.Writer = logger
	if verbose {
		sinkWriter = io.MultiWriter(logger, errOut)
	}
	recorder := metadata.NewRecorder(sinkWriter, uuid.NewString())

	store, err := cache.NewFileStore(cfg.CacheDir())
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	clock := timeutil.SystemClock{}
	ttlCache := cache.NewTTLCache(store, clock, cache.TTLs{
		Session: cfg.SessionTTL(),
		Results: cfg.ResultsTTL(),
	}, recorder)

	// expired results are dropped at startup so listings never show them
	purged, purgeErr := ttlCache.PurgeExpired()
	if purgeErr != nil {
		recorder.RecordError(time.Now(), "cli", "newApp", metadata.CauseStorageFailure, purgeErr.Error(), nil)
	}

	bridge := newBridge(cfg)
	resolver := session.NewResolver(bridge, ttlCache, clock, recorder, cfg.ProviderPage())

	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	seed := cfg.RandomSeed()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.BaseDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(seed)
	rateLimiter.SetBackoffParam(backoff)

	sleeper := timeutil.RealSleeper{}
	gateway := provider.NewHTTPGateway(
		recorder,
		resolver,
		cfg.Timeout(),
		retry.NewRetryParam(cfg.Jitter(), seed, cfg.MaxAttempt(), backoff),
		sleeper,
		cfg.UserAgent(),
	)

	return &app{
		cfg:         cfg,
		recorder:    recorder,
		logger:      logger,
		clock:       clock,
		cache:       ttlCache,
		bridge:      bridge,
		resolver:    resolver,
		rateLimiter: rateLimiter,
		gateway:     gateway,
		crawler: crawler.NewCrawler(
			recorder,
			recorder,
			resolver,
			gateway,
			ttlCache,
			rateLimiter,
			clock,
			sleeper,
			crawler.NewSweepParam(cfg.CooldownEvery(), cfg.Cooldown(), cfg.Pacing()),
		),
		matcher: matcher.NewMatcher(
			recorder,
			gateway,
			ttlCache,
			rateLimiter,
			clock,
			sleeper,
			matcher.NewMatchParam(cfg.ReturnWindowDays(), cfg.ReturnPacing(), cfg.MinLayover()),
		),
		exporter: export.NewExporter(recorder),
		purged:   purged,
	}, nil
}

func newBridge(cfg config.Config) session.Collaborator {
	if cfg.SnapshotPath() != "" {
		host := ""
		if u, err := url.Parse(cfg.ProviderPage()); err == nil {
			host = u.Hostname()
		}
		return pagebridge.NewSnapshotBridge(cfg.SnapshotPath(), host)
	}
	return pagebridge.NewWebSocketBridge(cfg.BridgeURL(), cfg.BridgeTimeout())
}

func (a *app) Close() error {
	if closer, ok := a.bridge.(io.Closer); ok {
		_ = closer.Close()
	}
	return a.logger.Close()
}

// lastOrigin is the origin of the most recent search, if still cached.
func (a *app) lastOrigin() (string, bool) {
	return cache.GetAs[string](a.cache, cache.LastAirportKey)
}
