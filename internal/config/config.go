package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Category names are the scheduler's unit of work.
const (
	CategoryLivePerformance = "live_performance"
	CategoryStatusChanges   = "status_changes"
	CategoryPriceChanges    = "price_changes"
	CategoryFinalBonus      = "final_bonus"
)

// CategoryConfig is one immutable row of the monitoring table: how
// often a category refreshes and during which game states it is active.
type CategoryConfig struct {
	Name             string        `validate:"required"`
	Interval         time.Duration `validate:"gt=0"`
	States           []string      `validate:"min=1,dive,oneof=idle upcoming live price_window"`
	FixtureDependent bool
}

// Config stores runtime configuration for the monitor.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	DBURL string

	FPLBaseURL               string
	FPLTimeout               time.Duration
	FPLMaxRetries            int
	FPLCircuitEnabled        bool
	FPLCircuitFailureCount   int
	FPLCircuitOpenTimeout    time.Duration
	FPLCircuitHalfOpenMaxReq int

	DiscordWebhookURL    string
	DiscordWebhookByHint map[string]string
	DiscordTimeout       time.Duration

	LeagueID         int64
	OwnershipRefresh time.Duration
	OwnershipWorkers int

	Categories []CategoryConfig

	UpcomingLookahead time.Duration
	PreKickoffLead    time.Duration
	SleepFloor        time.Duration
	SleepCeiling      time.Duration
	CycleBackoff      time.Duration

	PriceWindowStart string // "HH:MM", UTC
	PriceWindowEnd   string

	DedupWindow    time.Duration
	BonusNotifyCap int

	PprofEnabled bool
	PprofAddr    string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	UptraceEnabled bool
	UptraceDSN     string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))

	fplTimeout, err := getEnvAsDuration("FPL_TIMEOUT", "20s")
	if err != nil {
		return Config{}, err
	}
	fplMaxRetries, err := getEnvAsInt("FPL_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, err
	}
	if fplMaxRetries < 0 {
		return Config{}, fmt.Errorf("FPL_MAX_RETRIES must be >= 0")
	}

	fplCircuitEnabled, err := getEnvAsBool("FPL_CIRCUIT_ENABLED", "true")
	if err != nil {
		return Config{}, err
	}
	fplCircuitFailureCount, err := getEnvAsInt("FPL_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, err
	}
	fplCircuitOpenTimeout, err := getEnvAsDuration("FPL_CIRCUIT_OPEN_TIMEOUT", "30s")
	if err != nil {
		return Config{}, err
	}
	fplCircuitHalfOpenMaxReq, err := getEnvAsInt("FPL_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, err
	}

	discordWebhookURL := strings.TrimSpace(getEnv("DISCORD_WEBHOOK_URL", ""))
	if discordWebhookURL == "" {
		return Config{}, fmt.Errorf("DISCORD_WEBHOOK_URL is required")
	}
	discordWebhookByHint, err := parseHintMap(getEnv("DISCORD_WEBHOOK_ROUTES", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse DISCORD_WEBHOOK_ROUTES: %w", err)
	}
	discordTimeout, err := getEnvAsDuration("DISCORD_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}

	leagueID, err := getEnvAsInt64("FPL_LEAGUE_ID", 0)
	if err != nil {
		return Config{}, err
	}
	ownershipRefresh, err := getEnvAsDuration("OWNERSHIP_REFRESH_INTERVAL", "30m")
	if err != nil {
		return Config{}, err
	}
	ownershipWorkers, err := getEnvAsInt("OWNERSHIP_WORKERS", 8)
	if err != nil {
		return Config{}, err
	}
	if ownershipWorkers < 1 {
		return Config{}, fmt.Errorf("OWNERSHIP_WORKERS must be >= 1")
	}

	liveInterval, err := getEnvAsDuration("LIVE_PERFORMANCE_INTERVAL", "60s")
	if err != nil {
		return Config{}, err
	}
	statusInterval, err := getEnvAsDuration("STATUS_CHANGES_INTERVAL", "1h")
	if err != nil {
		return Config{}, err
	}
	priceInterval, err := getEnvAsDuration("PRICE_CHANGES_INTERVAL", "5m")
	if err != nil {
		return Config{}, err
	}
	finalBonusInterval, err := getEnvAsDuration("FINAL_BONUS_INTERVAL", "1h")
	if err != nil {
		return Config{}, err
	}

	upcomingLookahead, err := getEnvAsDuration("UPCOMING_LOOKAHEAD", "15m")
	if err != nil {
		return Config{}, err
	}
	preKickoffLead, err := getEnvAsDuration("PRE_KICKOFF_LEAD", "2m")
	if err != nil {
		return Config{}, err
	}
	sleepFloor, err := getEnvAsDuration("SLEEP_FLOOR", "60s")
	if err != nil {
		return Config{}, err
	}
	sleepCeiling, err := getEnvAsDuration("SLEEP_CEILING", "1h")
	if err != nil {
		return Config{}, err
	}
	if sleepFloor <= 0 || sleepCeiling < sleepFloor {
		return Config{}, fmt.Errorf("SLEEP_FLOOR/SLEEP_CEILING must satisfy 0 < floor <= ceiling")
	}
	cycleBackoff, err := getEnvAsDuration("CYCLE_BACKOFF", "60s")
	if err != nil {
		return Config{}, err
	}

	priceWindowStart := strings.TrimSpace(getEnv("PRICE_WINDOW_START", "01:30"))
	priceWindowEnd := strings.TrimSpace(getEnv("PRICE_WINDOW_END", "02:30"))
	for _, raw := range []string{priceWindowStart, priceWindowEnd} {
		if _, err := time.Parse("15:04", raw); err != nil {
			return Config{}, fmt.Errorf("parse price window bound %q: %w", raw, err)
		}
	}

	dedupWindow, err := getEnvAsDuration("DEDUP_WINDOW", "24h")
	if err != nil {
		return Config{}, err
	}
	bonusNotifyCap, err := getEnvAsInt("BONUS_NOTIFY_CAP", 10)
	if err != nil {
		return Config{}, err
	}
	if bonusNotifyCap < 1 {
		return Config{}, fmt.Errorf("BONUS_NOTIFY_CAP must be >= 1")
	}

	pprofEnabled, err := getEnvAsBool("PPROF_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := getEnvAsBool("PYROSCOPE_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := getEnvAsBool("UPTRACE_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	serviceName := strings.TrimSpace(getEnv("SERVICE_NAME", "fpl-pulse"))

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    serviceName,
		ServiceVersion: strings.TrimSpace(getEnv("SERVICE_VERSION", "dev")),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),

		DBURL: dbURL,

		FPLBaseURL:               strings.TrimSpace(getEnv("FPL_BASE_URL", "")),
		FPLTimeout:               fplTimeout,
		FPLMaxRetries:            fplMaxRetries,
		FPLCircuitEnabled:        fplCircuitEnabled,
		FPLCircuitFailureCount:   fplCircuitFailureCount,
		FPLCircuitOpenTimeout:    fplCircuitOpenTimeout,
		FPLCircuitHalfOpenMaxReq: fplCircuitHalfOpenMaxReq,

		DiscordWebhookURL:    discordWebhookURL,
		DiscordWebhookByHint: discordWebhookByHint,
		DiscordTimeout:       discordTimeout,

		LeagueID:         leagueID,
		OwnershipRefresh: ownershipRefresh,
		OwnershipWorkers: ownershipWorkers,

		Categories: []CategoryConfig{
			{
				Name:             CategoryLivePerformance,
				Interval:         liveInterval,
				States:           []string{"live", "upcoming"},
				FixtureDependent: true,
			},
			{
				Name:     CategoryStatusChanges,
				Interval: statusInterval,
				States:   []string{"idle", "upcoming", "live", "price_window"},
			},
			{
				Name:     CategoryPriceChanges,
				Interval: priceInterval,
				States:   []string{"price_window"},
			},
			{
				Name:     CategoryFinalBonus,
				Interval: finalBonusInterval,
				States:   []string{"idle", "upcoming", "price_window"},
			},
		},

		UpcomingLookahead: upcomingLookahead,
		PreKickoffLead:    preKickoffLead,
		SleepFloor:        sleepFloor,
		SleepCeiling:      sleepCeiling,
		CycleBackoff:      cycleBackoff,

		PriceWindowStart: priceWindowStart,
		PriceWindowEnd:   priceWindowEnd,

		DedupWindow:    dedupWindow,
		BonusNotifyCap: bonusNotifyCap,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAppName:           strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", serviceName)),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,
	}

	if err := validateCategories(cfg.Categories); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateCategories(categories []CategoryConfig) error {
	seen := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		if err := validate.Struct(category); err != nil {
			return fmt.Errorf("invalid monitoring category %q: %w", category.Name, err)
		}
		if _, dup := seen[category.Name]; dup {
			return fmt.Errorf("duplicate monitoring category %q", category.Name)
		}
		seen[category.Name] = struct{}{}
	}
	return nil
}

func parseAppEnv(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case EnvDev:
		return EnvDev, nil
	case EnvProd:
		return EnvProd, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q (expected %s or %s)", raw, EnvDev, EnvProd)
	}
}

func parseLogLevel(raw string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// parseHintMap parses "hint=url,hint=url" routing overrides.
func parseHintMap(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q (expected hint=url)", pair)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return nil, fmt.Errorf("invalid pair %q (empty hint or url)", pair)
		}
		out[key] = value
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsInt64(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsBool(key, fallback string) (bool, error) {
	value, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}
