package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/galaxyguard/warden/automod"
	"github.com/galaxyguard/warden/automod/cachestore"
	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/countstore"
	"github.com/galaxyguard/warden/automod/engine"
	"github.com/galaxyguard/warden/automod/historystore"
	"github.com/galaxyguard/warden/automod/messagestore"
	"github.com/galaxyguard/warden/automod/oracle"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/setstore"
	"github.com/galaxyguard/warden/automod/settingsstore"
	"github.com/galaxyguard/warden/util/cliutil"

	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
)

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "policy",
			Usage:   "scoring policy: tiered or cumulative",
			Value:   string(engine.PolicyTiered),
			EnvVars: []string{"WARDEN_POLICY"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for histories and user settings (sqlite:// or postgres://); takes precedence over redis for histories",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit OpenTelemetry spans for database queries",
			EnvVars: []string{"WARDEN_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL: redis://<user>:<pass>@<hostname>:6379/<db>; in-process state when empty",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static sets (eg, sensitive-channels)",
			EnvVars: []string{"WARDEN_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "API key for the OpenAI moderation endpoint",
			EnvVars: []string{"OPENAI_API_KEY", "OPENAI_KEY"},
		},
		&cli.StringFlag{
			Name:    "openai-host",
			Usage:   "method, hostname, and port of the moderation API",
			Value:   oracle.DefaultOpenAIHost,
			EnvVars: []string{"OPENAI_HOST"},
		},
		&cli.StringFlag{
			Name:    "openai-model",
			Usage:   "moderation model name (service default when empty)",
			EnvVars: []string{"OPENAI_MODERATION_MODEL"},
		},
		&cli.Float64Flag{
			Name:    "oracle-rate-limit",
			Usage:   "max oracle requests per second (0 for no limit)",
			Value:   20,
			EnvVars: []string{"WARDEN_ORACLE_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "static-scores-path",
			Usage:   "JSON file of category scores returned for every message, instead of calling the moderation API (offline testing)",
			EnvVars: []string{"WARDEN_STATIC_SCORES_PATH"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for ban-level notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.DurationFlag{
			Name:    "settings-cache-ttl",
			Usage:   "how long per-user settings are cached",
			Value:   5 * time.Minute,
			EnvVars: []string{"WARDEN_SETTINGS_CACHE_TTL"},
		},
	}
}

func buildOracle(cctx *cli.Context, logger *slog.Logger) (oracle.Oracle, error) {
	if p := cctx.String("static-scores-path"); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var scores scoring.ScoreMap
		if err := json.Unmarshal(raw, &scores); err != nil {
			return nil, fmt.Errorf("parsing static scores: %w", err)
		}
		logger.Warn("using static oracle scores; the moderation API will not be called", "path", p)
		return &oracle.Static{Scores: scores}, nil
	}
	key := cctx.String("openai-api-key")
	if key == "" {
		return nil, fmt.Errorf("an OpenAI API key (or a static scores file) is required")
	}
	oc := oracle.NewOpenAIClient(cctx.String("openai-host"), key, cctx.Float64("oracle-rate-limit"))
	oc.Model = cctx.String("openai-model")
	oc.UserAgent = "warden/" + cctx.App.Version
	return oc, nil
}

// Assembles the engine and its stores from flags. The returned cleanup closes connections.
//
// Histories go to the database if one is configured, otherwise to redis, otherwise in-process memory. User settings
// go to the database or memory, cached in redis or memory. Channel counters use redis when available. Captured
// messages need the database.
func buildEngine(cctx *cli.Context, cfg config.Config, logger *slog.Logger) (*automod.Engine, func(), error) {
	policy, err := engine.ParsePolicy(cctx.String("policy"))
	if err != nil {
		return nil, nil, err
	}
	orc, err := buildOracle(cctx, logger)
	if err != nil {
		return nil, nil, err
	}
	st, err := buildStores(cctx, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := st.cleanup

	sets := setstore.NewMemSetStore()
	if p := cctx.String("sets-json-path"); p != "" {
		if err := sets.LoadFromFileJSON(p); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", p)
	}

	eng := &automod.Engine{
		Logger:   logger,
		Config:   cfg,
		Policy:   policy,
		Oracle:   orc,
		History:  st.history,
		Settings: st.settings,
		Counters: st.counters,
		Sets:     sets,
		Messages: st.messages,
	}
	if u := cctx.String("slack-webhook-url"); u != "" {
		eng.Notifier = &automod.SlackNotifier{SlackWebhookURL: u}
	}
	return eng, cleanup, nil
}

type stores struct {
	history  historystore.HistoryStore
	settings settingsstore.SettingsStore
	counters countstore.CountStore
	// nil (message capture disabled) without a database
	messages messagestore.MessageStore
	cleanup  func()
}

func buildStores(cctx *cli.Context, logger *slog.Logger) (*stores, error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("error closing store connection", "err", err)
			}
		}
	}
	fail := func(err error) (*stores, error) {
		cleanup()
		return nil, err
	}

	st := stores{cleanup: cleanup}
	var settings settingsstore.SettingsStore
	var cache cachestore.CacheStore
	ttl := cctx.Duration("settings-cache-ttl")

	if u := cctx.String("redis-url"); u != "" {
		opt, err := redis.ParseURL(u)
		if err != nil {
			return fail(fmt.Errorf("parsing redis URL: %v", err))
		}
		rdb := redis.NewClient(opt)
		closers = append(closers, rdb.Close)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return fail(fmt.Errorf("redis ping failed: %v", err))
		}
		st.history = &historystore.RedisHistoryStore{Client: rdb, Now: time.Now}
		st.counters = countstore.NewRedisCountStoreFromClient(rdb)
		cache = cachestore.NewRedisCacheStoreFromClient(rdb, ttl)
		logger.Info("using redis for histories, counters, and cache")
	} else {
		st.history = historystore.NewMemHistoryStore()
		st.counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(10_000, ttl)
		logger.Warn("redis not configured; state is kept in-process only")
	}

	if u := cctx.String("database-url"); u != "" {
		db, err := cliutil.SetupDatabase(u, cctx.Int("max-db-connections"), logger, cctx.Bool("db-tracing"))
		if err != nil {
			return fail(fmt.Errorf("setting up database: %w", err))
		}
		sqldb, err := db.DB()
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sqldb.Close)

		ghs, err := historystore.NewGormHistoryStore(db)
		if err != nil {
			return fail(err)
		}
		st.history = ghs
		gss, err := settingsstore.NewGormSettingsStore(db)
		if err != nil {
			return fail(err)
		}
		settings = gss
		gms, err := messagestore.NewGormMessageStore(db)
		if err != nil {
			return fail(err)
		}
		st.messages = gms
		logger.Info("using database for histories, settings, and captured messages")
	} else {
		settings = settingsstore.NewMemSettingsStore()
		logger.Info("database not configured; message capture is disabled")
	}

	st.settings = settingsstore.NewCachedSettingsStore(settings, cache, logger)
	return &st, nil
}
