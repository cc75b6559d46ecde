// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Port string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	VaultCacheTTL time.Duration

	MorphoGraphQLURL     string
	MerklAPIURL          string
	MorphoRewardsAPIURL  string
	UpstreamTimeout      time.Duration
	HistoryRetentionDays int

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTTL         int

	ResendAPIKey string
	EmailFrom    string
	WelcomeFrom  string
	DashboardURL string

	CronSecret  string
	AdminSecret string
	DailyCron   string

	NotifyBatchSize  int
	NotifyBatchDelay time.Duration

	APIRateLimit float64
	APIRateBurst int
	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix

	LogLevel       string
	LogDevelopment bool
}

// LoadDotEnv reads .env into the process environment. It reports whether a
// file was found; a missing file is not an error.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:                 getenv("PORT", "8080"),
		DatabaseURL:          firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("POSTGRES_URL")),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		MorphoGraphQLURL:     getenv("MORPHO_GRAPHQL_URL", "https://api.morpho.org/graphql"),
		MerklAPIURL:          getenv("MERKL_API_URL", "https://api.merkl.xyz"),
		MorphoRewardsAPIURL:  getenv("MORPHO_REWARDS_API_URL", "https://rewards.morpho.org"),
		VAPIDPublicKey:       firstNonEmpty(os.Getenv("VAPID_PUBLIC_KEY"), os.Getenv("NEXT_PUBLIC_VAPID_PUBLIC_KEY")),
		VAPIDPrivateKey:      os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:         getenv("VAPID_SUBJECT", "mailto:admin@morpho-yield-monitor.com"),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		EmailFrom:            getenv("EMAIL_FROM", "Morpho Yield Monitor <onboarding@resend.dev>"),
		WelcomeFrom:          getenv("EMAIL_WELCOME_FROM", "Morpho Yield Portal <onboarding@resend.dev>"),
		DashboardURL:         getenv("DASHBOARD_URL", "https://morpho-yield-portal.vercel.app"),
		CronSecret:           os.Getenv("CRON_SECRET"),
		AdminSecret:          os.Getenv("ADMIN_SECRET"),
		DailyCron:            getenv("DAILY_CRON", "0 9 * * *"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		HistoryRetentionDays: 90,
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.VaultCacheTTL, err = durationEnv("VAULT_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HistoryRetentionDays, err = intEnv("HISTORY_RETENTION_DAYS", 90); err != nil {
		return Config{}, err
	}
	if cfg.PushTTL, err = intEnv("PUSH_TTL", 86400); err != nil {
		return Config{}, err
	}
	if cfg.NotifyBatchSize, err = intEnv("NOTIFY_BATCH_SIZE", 5); err != nil {
		return Config{}, err
	}
	if cfg.NotifyBatchDelay, err = durationEnv("NOTIFY_BATCH_DELAY", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.APIRateLimit, err = floatEnv("API_RATE_LIMIT", 10); err != nil {
		return Config{}, err
	}
	if cfg.APIRateBurst, err = intEnv("API_RATE_BURST", 20); err != nil {
		return Config{}, err
	}
	if cfg.TrustedProxies, err = prefixesEnv("TRUSTED_PROXIES"); err != nil {
		return Config{}, err
	}
	if cfg.LogDevelopment, err = boolEnv("LOG_DEVELOPMENT", false); err != nil {
		return Config{}, err
	}

	if cfg.NotifyBatchSize < 1 {
		return Config{}, errors.Errorf("NOTIFY_BATCH_SIZE must be positive, got %d", cfg.NotifyBatchSize)
	}
	return cfg, nil
}

// UsesDatabase reports whether a Postgres URL was configured. Without one the
// service keeps subscriptions and history in memory.
func (c Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func (c Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

func (c Config) EmailEnabled() bool {
	return c.ResendAPIKey != ""
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", key)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

// prefixesEnv reads a comma separated list of IPs or CIDR ranges.
func prefixesEnv(key string) ([]netip.Prefix, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	var out []netip.Prefix
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s", key)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", key)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}
