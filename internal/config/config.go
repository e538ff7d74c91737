package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Database      DatabaseConfig
	OpenAI        OpenAIConfig
	Qdrant        QdrantConfig
	Digest        DigestConfig
	Chat          ChatConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	EmbedModel  string
	EnrichModel string
	SQLModel    string
	Temperature float64
	Timeout     time.Duration
}

type QdrantConfig struct {
	Host       string
	Port       int
	UseTLS     bool
	Collection string
}

type DigestConfig struct {
	CacheDir   string
	IgnoreFile string
	SampleRows int
}

type ChatConfig struct {
	TopK          int
	RowLimit      int
	TablesPerCall int
}

type ArchiveConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsAddr string
}

// LoadFromEnv reads an optional .env file before consulting the process
// environment.
func LoadFromEnv(serviceName string) (Config, error) {
	_ = godotenv.Load()
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SCHEMAPILOT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SCHEMAPILOT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "DATABASE_URL", &cfg.Database.URL); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SCHEMAPILOT_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SCHEMAPILOT_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SCHEMAPILOT_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SCHEMAPILOT_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "OPENAI_API_KEY", &cfg.OpenAI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_AI_BASE_URL", &cfg.OpenAI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_EMBED_MODEL", &cfg.OpenAI.EmbedModel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ENRICH_MODEL", &cfg.OpenAI.EnrichModel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_SQL_MODEL", &cfg.OpenAI.SQLModel); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SCHEMAPILOT_AI_TEMPERATURE", &cfg.OpenAI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SCHEMAPILOT_AI_TIMEOUT", &cfg.OpenAI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "QDRANT_URL", &cfg.Qdrant.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "QDRANT_PORT", &cfg.Qdrant.Port); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SCHEMAPILOT_QDRANT_TLS", &cfg.Qdrant.UseTLS); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_COLLECTION", &cfg.Qdrant.Collection); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_CACHE_DIR", &cfg.Digest.CacheDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_IGNORE_FILE", &cfg.Digest.IgnoreFile); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SCHEMAPILOT_SAMPLE_ROWS", &cfg.Digest.SampleRows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SCHEMAPILOT_TOP_K", &cfg.Chat.TopK); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SCHEMAPILOT_ROW_LIMIT", &cfg.Chat.RowLimit); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SCHEMAPILOT_TABLES_PER_CALL", &cfg.Chat.TablesPerCall); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SCHEMAPILOT_ARCHIVE_ENABLED", &cfg.Archive.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ARCHIVE_REGION", &cfg.Archive.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ARCHIVE_BUCKET", &cfg.Archive.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ARCHIVE_ACCESS_KEY", &cfg.Archive.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ARCHIVE_SECRET_KEY", &cfg.Archive.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SCHEMAPILOT_ARCHIVE_USE_SSL", &cfg.Archive.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_ARCHIVE_PREFIX", &cfg.Archive.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SCHEMAPILOT_ARCHIVE_AUTO_CREATE_BUCKET", &cfg.Archive.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SCHEMAPILOT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SCHEMAPILOT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SCHEMAPILOT_METRICS_ADDR", &cfg.Observability.MetricsAddr); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.Qdrant.Port <= 0 || cfg.Qdrant.Port > 65535 {
		return Config{}, fmt.Errorf("invalid QDRANT_PORT: %d", cfg.Qdrant.Port)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "schemapilot"},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com",
			EmbedModel:  "text-embedding-3-small",
			EnrichModel: "gpt-3.5-turbo",
			SQLModel:    "gpt-4",
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6333,
			Collection: "schema_embeddings",
		},
		Digest: DigestConfig{
			CacheDir:   ".cache",
			IgnoreFile: ".schemapilotignore",
			SampleRows: 0,
		},
		Chat: ChatConfig{
			TopK:          3,
			RowLimit:      200,
			TablesPerCall: 5,
		},
		Archive: ArchiveConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "schemapilot",
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogJSON = true
		cfg.Archive.UseSSL = true
		cfg.Archive.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
