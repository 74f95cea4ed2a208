package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode   `mapstructure:"MODE"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	PublicURL string `mapstructure:"PUBLIC_URL"`
	SiteID    string `mapstructure:"SITE_ID"`

	DBDriver string `mapstructure:"DB_DRIVER"` // sqlite|postgres|memory
	DBDSN    string `mapstructure:"DB_DSN"`

	// Profile photos go to BlobBasePath unless MinIOEndpoint is set.
	BlobBasePath   string `mapstructure:"BLOB_BASE_PATH"`
	MinIOEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket    string `mapstructure:"MINIO_BUCKET"`
	MinIOUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	AuthHMACSecret string        `mapstructure:"AUTH_HMAC_SECRET"`
	TokenTTL       time.Duration `mapstructure:"TOKEN_TTL"`
	TeacherCode    string        `mapstructure:"TEACHER_CODE"` // empty: teachers register freely

	CORSOriginsOnline  []string `mapstructure:"CORS_ORIGINS_ONLINE"`
	CORSOriginsOffline []string `mapstructure:"CORS_ORIGINS_OFFLINE"`

	// Attempt locks are process-local unless RedisAddr is set.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	SeedFile       string        `mapstructure:"SEED_FILE"`
	MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`
	AttemptRetain  time.Duration `mapstructure:"ATTEMPT_RETAIN"`
}

var defaults = map[string]any{
	"MODE":                 string(ModeOffline),
	"HTTP_ADDR":            ":8080",
	"PUBLIC_URL":           "",
	"SITE_ID":              "local",
	"DB_DRIVER":            "sqlite",
	"DB_DSN":               "",
	"BLOB_BASE_PATH":       "./data",
	"MINIO_ENDPOINT":       "",
	"MINIO_ACCESS_KEY":     "",
	"MINIO_SECRET_KEY":     "",
	"MINIO_BUCKET":         "edutest-photos",
	"MINIO_USE_SSL":        false,
	"AUTH_HMAC_SECRET":     "supersecret-dev-key",
	"TOKEN_TTL":            "8h",
	"TEACHER_CODE":         "",
	"CORS_ORIGINS_ONLINE":  "",
	"CORS_ORIGINS_OFFLINE": "http://localhost:3000,http://localhost:5173",
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"AMQP_URL":             "",
	"AMQP_EXCHANGE":        "edutest.events",
	"SEED_FILE":            "",
	"METRICS_ENABLED":      true,
	"ATTEMPT_RETAIN":       "15m",
}

// Load reads, in increasing precedence: defaults, edutest.yaml (or file when
// non-empty), a .env file and EDUTEST_* environment variables.
func Load(file string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("edutest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
	}
	v.SetEnvPrefix("EDUTEST")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOriginsOnline = trimAll(cfg.CORSOriginsOnline)
	cfg.CORSOriginsOffline = trimAll(cfg.CORSOriginsOffline)
	switch cfg.Mode {
	case ModeOffline, ModeOnline:
	default:
		return Config{}, fmt.Errorf("config: unknown mode %q", cfg.Mode)
	}
	return cfg, nil
}

// CORSOrigins returns the allow-list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		for _, s := range strings.Split(p, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
