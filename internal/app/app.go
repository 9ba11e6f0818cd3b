package app

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/fpl-pulse/external/fplapi"
	"github.com/riskibarqy/fpl-pulse/internal/config"
	"github.com/riskibarqy/fpl-pulse/internal/domain/snapshot"
	"github.com/riskibarqy/fpl-pulse/internal/infrastructure/notify/discord"
	"github.com/riskibarqy/fpl-pulse/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fpl-pulse/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
	"github.com/riskibarqy/fpl-pulse/internal/platform/resilience"
	"github.com/riskibarqy/fpl-pulse/internal/usecase"
)

// App owns the fully wired monitor and the resources behind it.
type App struct {
	Monitor *usecase.Monitor

	db     *sqlx.DB
	logger *logging.Logger
}

// New wires the monitoring pipeline from configuration. With DB_URL set
// the snapshot, dedup, marker, and change log stores are Postgres-backed;
// without it everything runs in memory and state resets on restart.
func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		db        *sqlx.DB
		store     snapshot.Store
		dedup     usecase.DedupRepository
		changeLog usecase.ChangeLogRepository
		markers   usecase.MarkerRepository
	)

	if cfg.DBURL != "" {
		opened, err := otelsqlx.Connect("postgres", cfg.DBURL,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db = opened
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)

		store = postgres.NewSnapshotRepository(db)
		dedup = postgres.NewDedupRepository(db)
		changeLog = postgres.NewChangeLogRepository(db)
		markers = postgres.NewMarkerRepository(db)

		logger.Info("storage configured", "backend", "postgres", "db", dbNameFromURL(cfg.DBURL))
	} else {
		store = memory.NewSnapshotStore()
		dedup = memory.NewDedupRepository()
		changeLog = memory.NewChangeLogRepository()
		markers = memory.NewMarkerRepository()

		logger.Warn("storage configured", "backend", "memory", "note", "state resets on restart")
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)

	fetcher := fplapi.NewClient(fplapi.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.FPLTimeout, Transport: transport},
		BaseURL:    cfg.FPLBaseURL,
		MaxRetries: cfg.FPLMaxRetries,
		Logger:     logger.Named("fplapi"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FPLCircuitEnabled,
			FailureThreshold: cfg.FPLCircuitFailureCount,
			OpenTimeout:      cfg.FPLCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FPLCircuitHalfOpenMaxReq,
		},
	})

	dispatcher, err := discord.NewWebhook(discord.WebhookConfig{
		HTTPClient:     &http.Client{Timeout: cfg.DiscordTimeout, Transport: transport},
		WebhookURL:     cfg.DiscordWebhookURL,
		URLByHint:      cfg.DiscordWebhookByHint,
		Logger:         logger.Named("discord"),
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("build discord dispatcher: %w", err)
	}

	detector, err := usecase.NewGameStateDetector(cfg.UpcomingLookahead, cfg.PriceWindowStart, cfg.PriceWindowEnd)
	if err != nil {
		return nil, fmt.Errorf("build game state detector: %w", err)
	}

	scheduler, err := usecase.NewScheduler(cfg.Categories, cfg.SleepFloor, cfg.SleepCeiling, cfg.PreKickoffLead)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	diff := usecase.NewDiffEngine(store, logger.Named("diff"))
	bonus := usecase.NewBonusEngine(store, markers, logger.Named("bonus"))

	notifier, err := usecase.NewNotifier(dedup, changeLog, dispatcher, cfg.DedupWindow, cfg.BonusNotifyCap, logger.Named("notifier"))
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	ownership, err := usecase.NewOwnershipTracker(fetcher, cfg.LeagueID, cfg.OwnershipWorkers, cfg.OwnershipRefresh, logger.Named("ownership"))
	if err != nil {
		return nil, fmt.Errorf("build ownership tracker: %w", err)
	}

	monitor, err := usecase.NewMonitor(
		fetcher,
		detector,
		scheduler,
		diff,
		bonus,
		notifier,
		ownership,
		store,
		cfg.CycleBackoff,
		logger.Named("monitor"),
	)
	if err != nil {
		return nil, fmt.Errorf("build monitor: %w", err)
	}

	return &App{
		Monitor: monitor,
		db:      db,
		logger:  logger,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
