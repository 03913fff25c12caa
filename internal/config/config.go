package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	applog "quickbite/internal/log"
	"quickbite/internal/orderflow"
)

type Config struct {
	Env      string
	Port     string
	DBDSN    string
	LogFile  string
	LogLevel string

	JWTSecret      []byte
	AccessTokenTTL time.Duration
	CookieSecure   bool

	KafkaBrokers []string
	KafkaTopic   string

	GeocoderURL string
	GeocoderKey string

	CancelFeeThreshold int64
	CancelFlatFee      int64
	PointsRatePercent  int64
}

// Load reads the environment, preloading a .env file when one exists.
func Load() Config {
	_ = godotenv.Load()
	fees := orderflow.DefaultPolicy()

	cfg := Config{
		Env:      envDefault("APP_ENV", "dev"),
		Port:     envDefault("PORT", "8080"),
		DBDSN:    envDefault("DB_DSN", "quickbite.db"),
		LogFile:  os.Getenv("LOG_FILE"),
		LogLevel: envDefault("LOG_LEVEL", "info"),

		JWTSecret:      []byte(os.Getenv("JWT_SECRET")),
		AccessTokenTTL: envDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		CookieSecure:   envBool("COOKIE_SECURE", false),

		KafkaBrokers: csv(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envDefault("KAFKA_TOPIC", "order-events"),

		GeocoderURL: envDefault("GEOCODER_URL", "https://dapi.kakao.com"),
		GeocoderKey: os.Getenv("GEOCODER_KEY"),

		CancelFeeThreshold: int64(envAmount("CANCEL_FEE_THRESHOLD", int(fees.FeeThreshold))),
		CancelFlatFee:      int64(envAmount("CANCEL_FLAT_FEE", int(fees.FlatFee))),
		PointsRatePercent:  int64(envInt("POINTS_RATE_PERCENT", 1)),
	}

	if len(cfg.JWTSecret) == 0 {
		if cfg.Env != "dev" {
			applog.L().Fatal("missing required env JWT_SECRET")
		}
		cfg.JWTSecret = []byte("dev-only-secret")
	}

	return cfg
}

// LogFields describes the effective config for the startup log. Secrets are
// left out.
func (c Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("env", c.Env),
		zap.String("port", c.Port),
		zap.String("db_dsn", c.DBDSN),
		zap.String("log_file", c.LogFile),
		zap.String("log_level", c.LogLevel),
		zap.Strings("kafka_brokers", c.KafkaBrokers),
		zap.String("geocoder_url", c.GeocoderURL),
		zap.Bool("geocoder_key_set", c.GeocoderKey != ""),
		zap.Int64("cancel_fee_threshold", c.CancelFeeThreshold),
		zap.Int64("cancel_flat_fee", c.CancelFlatFee),
	}
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envAmount is envInt for money settings; zero is allowed, negatives are not.
func envAmount(key string, def int) int {
	n := envInt(key, def)
	if n < 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
