// Package app wires all application dependencies: configuration, logging,
// storage, providers, the resolution pipeline, and the Discord surface.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/muhammadzakizn/sonora/bot/buffer"
	"github.com/muhammadzakizn/sonora/bot/config"
	"github.com/muhammadzakizn/sonora/bot/db"
	"github.com/muhammadzakizn/sonora/bot/discord"
	"github.com/muhammadzakizn/sonora/bot/enrich"
	logpkg "github.com/muhammadzakizn/sonora/bot/logger"
	"github.com/muhammadzakizn/sonora/bot/platform"
	platformplugins "github.com/muhammadzakizn/sonora/bot/platform/plugins"
	"github.com/muhammadzakizn/sonora/bot/player"
	"github.com/muhammadzakizn/sonora/bot/queue"
	"github.com/muhammadzakizn/sonora/bot/resolve"
	"github.com/muhammadzakizn/sonora/bot/verify"
	"github.com/muhammadzakizn/sonora/bot/worker"
)

// App holds the wired application container.
type App struct {
	Config    *config.Config
	Logger    *logpkg.Logger
	DB        *db.Repository
	Pool      *worker.Pool
	Providers *platform.Manager
	Resolver  *resolve.Resolver
	Players   *player.Registry
	Queues    *queue.Registry
	Discord   *discord.Bot
	Build     BuildInfo
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// New builds the application container.
func New(ctx context.Context, configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logpkg.New(conf.GetString("LogLevel"), conf.GetString("LogFormat"), conf.GetBool("LogAddSource"))
	if err != nil {
		return nil, err
	}

	gormLogger := logpkg.NewGormLogger(log.Slog(), mapLogLevel(conf.GetString("LogLevel")))
	databasePath := strings.TrimSpace(conf.GetString("Database"))
	if databasePath == "" {
		databasePath = "sonora.db"
	}

	repo, err := db.NewSQLiteRepository(databasePath, gormLogger)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := repo.ConfigurePool(
		conf.GetInt("DBMaxOpenConns"),
		conf.GetInt("DBMaxIdleConns"),
		time.Duration(conf.GetInt("DBConnMaxLifetimeSec"))*time.Second,
	); err != nil {
		return nil, fmt.Errorf("configure db pool: %w", err)
	}
	repo.SetDefaultVolume(conf.GetInt("DefaultVolume"))

	pool := worker.New(conf.GetInt("WorkerPoolSize"))

	providers, err := platformplugins.BuildManager(conf, log, conf.ProviderOrder())
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	if len(providers.Names()) == 0 {
		return nil, fmt.Errorf("no providers configured; check provider_order")
	}

	cacheDir := strings.TrimSpace(conf.GetString("CacheDir"))
	if cacheDir == "" {
		cacheDir = "./cache"
	}

	verifier := verify.New(verify.Options{
		TitleSimilarity:  conf.GetFloat64("TitleSimilarity"),
		ArtistSimilarity: conf.GetFloat64("ArtistSimilarity"),
	}, log)

	resolver := resolve.New(providers, verifier, resolve.Options{
		MaxRetries:      conf.GetInt("MaxRetries"),
		DownloadTimeout: time.Duration(conf.GetInt("DownloadTimeoutSec")) * time.Second,
		CacheDir:        cacheDir,
	}, log)

	bot, err := discord.New(conf.GetString("DiscordToken"), log)
	if err != nil {
		return nil, fmt.Errorf("init discord: %w", err)
	}
	session := bot.Session()

	limiter := discord.NewRateLimiter(rateOrDefault(conf.GetFloat64("RateLimitPerSecond"), 1),
		intOrDefault(conf.GetInt("RateLimitBurst"), 3))
	emitter := discord.NewProgressEmitter(session, limiter, log)

	enricher := enrich.New(providers, enrich.Options{
		StepTimeout:    8 * time.Second,
		ArtworkMaxEdge: conf.GetInt("ArtworkMaxEdge"),
		CacheDir:       cacheDir,
		EnableLyrics:   conf.GetBool("EnableLyrics"),
		EnableArtwork:  conf.GetBool("EnableArtwork"),
	}, log)

	queues := queue.NewRegistry(conf.GetInt("QueueMaxSize"))

	playerOpts := player.Options{
		TickInterval: time.Duration(conf.GetInt("TickIntervalMs")) * time.Millisecond,
		EmitInterval: time.Duration(conf.GetInt("EmitIntervalMs")) * time.Millisecond,
		LyricsGap:    time.Duration(conf.GetFloat64("LyricsGapSeconds") * float64(time.Second)),
		Volume:       conf.GetInt("DefaultVolume"),
	}
	bufferOpts := buffer.Options{
		Size:              conf.GetInt("BufferSize"),
		EvictionThreshold: int64(conf.GetInt("EvictionThresholdMB")) << 20,
	}

	players := player.NewRegistry(func(guildID string) *player.Session {
		guildLog := log.With("guild_id", guildID)
		opts := playerOpts
		if settings, err := repo.GetGuildSettings(ctx, guildID); err == nil && settings.DefaultVolume > 0 {
			opts.Volume = settings.DefaultVolume
		}
		return player.NewSession(player.Deps{
			GuildID: guildID,
			Queue:   queues.Get(guildID),
			Buffer:  buffer.New(resolver, bufferOpts, guildLog),
			Sink:    discord.NewVoiceSink(session, guildID, guildLog),
			Members: discord.NewGuildMembers(session, guildID),
			Emitter: emitter,
			Enrich:  enricher,
			History: repo,
			Pool:    pool,
			Logger:  guildLog,
		}, opts)
	})

	handler := discord.NewHandler(players, queues, providers, repo, emitter, log, discord.HandlerOptions{
		Prefix:        conf.GetString("CommandPrefix"),
		SearchLimit:   conf.GetInt("SearchLimit"),
		SearchTimeout: time.Duration(conf.GetInt("SearchTimeoutSec")) * time.Second,
	})
	bot.SetHandler(handler)

	return &App{
		Config:    conf,
		Logger:    log,
		DB:        repo,
		Pool:      pool,
		Providers: providers,
		Resolver:  resolver,
		Players:   players,
		Queues:    queues,
		Discord:   bot,
		Build:     build,
	}, nil
}

// Start opens the gateway and begins serving commands.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("starting",
		"version", a.Build.BinVersion,
		"commit", a.Build.CommitSHA,
		"runtime", a.Build.RuntimeVer,
		"providers", strings.Join(a.Providers.Names(), ","))

	if err := a.Discord.Start(); err != nil {
		return fmt.Errorf("start discord: %w", err)
	}

	if days := a.Config.GetInt("HistoryRetentionDays"); days > 0 {
		retention := time.Duration(days) * 24 * time.Hour
		if pruned, err := a.DB.PruneHistory(ctx, retention); err != nil {
			a.Logger.Warn("prune history failed", "error", err)
		} else if pruned > 0 {
			a.Logger.Info("pruned play history", "rows", pruned)
		}
	}
	return nil
}

// Shutdown stops all sessions and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	a.Players.StopAll()

	if err := a.Discord.Stop(); err != nil {
		a.Logger.Error("failed to close discord session", "error", err)
		if firstErr == nil {
			firstErr = fmt.Errorf("close discord: %w", err)
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("failed to close database", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close logger: %w", err)
		}
	}

	return firstErr
}

func mapLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return gormlogger.Info
	case "warn", "warning":
		return gormlogger.Warn
	case "error", "fatal", "panic":
		return gormlogger.Error
	default:
		return gormlogger.Info
	}
}

func rateOrDefault(v float64, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
