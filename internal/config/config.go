package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Database    DatabaseConfig    `koanf:"database"`
	Supabase    SupabaseConfig    `koanf:"supabase"`
	MongoDB     MongoDBConfig     `koanf:"mongodb"`
	Redis       RedisConfig       `koanf:"redis"`
	Cloudinary  CloudinaryConfig  `koanf:"cloudinary"`
	Media       MediaConfig       `koanf:"media"`
	Geo         GeoConfig         `koanf:"geo"`
	Interaction InteractionConfig `koanf:"interaction"`
}

type ServerConfig struct {
	Port         string        `koanf:"port"`
	Environment  string        `koanf:"environment"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	CORSOrigins  []string      `koanf:"cors_origins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DatabaseConfig struct {
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
}

type SupabaseConfig struct {
	URL            string `koanf:"url"`
	AnonKey        string `koanf:"anon_key"`
	ServiceRoleKey string `koanf:"service_role_key"`
	JWTSecret      string `koanf:"jwt_secret"`
	JWKSURL        string `koanf:"jwks_url"`
}

type MongoDBConfig struct {
	URI      string `koanf:"uri"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type CloudinaryConfig struct {
	CloudName string `koanf:"cloud_name"`
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

type MediaConfig struct {
	Bucket          string        `koanf:"bucket"`
	SignedURLTTL    time.Duration `koanf:"signed_url_ttl"`
	SafetyMargin    time.Duration `koanf:"safety_margin"`
	CachePurge      time.Duration `koanf:"cache_purge_interval"`
	Uploader        string        `koanf:"uploader"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type GeoConfig struct {
	LocationStore string        `koanf:"location_store"`
	LocationTTL   time.Duration `koanf:"location_ttl"`
	CountryName   string        `koanf:"country_name"`
	CountryLat    float64       `koanf:"country_lat"`
	CountryLng    float64       `koanf:"country_lng"`
}

type InteractionConfig struct {
	GracePeriod      time.Duration `koanf:"grace_period"`
	ImageQuota       int           `koanf:"image_quota"`
	CommentMaxLength int           `koanf:"comment_max_length"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Environment:  "development",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:8081"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "",
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		MongoDB: MongoDBConfig{
			Database: "eventradar",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Media: MediaConfig{
			Bucket:          "event-images",
			SignedURLTTL:    time.Hour,
			SafetyMargin:    30 * time.Second,
			CachePurge:      5 * time.Minute,
			Uploader:        "supabase",
			MaxUploadBytes:  10 << 20,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Geo: GeoConfig{
			LocationStore: "memory",
			LocationTTL:   24 * time.Hour,
			CountryName:   "Slovenia",
			CountryLat:    46.1512,
			CountryLng:    14.9955,
		},
		Interaction: InteractionConfig{
			GracePeriod:      7 * 24 * time.Hour,
			ImageQuota:       5,
			CommentMaxLength: 1000,
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment,
// in increasing priority.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variables onto config keys. Unlisted
// variables are ignored.
var envMappings = map[string]string{
	"port":                      "server.port",
	"environment":               "server.environment",
	"cors_origins":              "server.cors_origins",
	"log_level":                 "log.level",
	"log_format":                "log.format",
	"database_driver":           "database.driver",
	"database_url":              "database.dsn",
	"database_max_open_conns":   "database.max_open_conns",
	"database_max_idle_conns":   "database.max_idle_conns",
	"supabase_url":              "supabase.url",
	"supabase_url_anon_key":     "supabase.anon_key",
	"supabase_anon_key":         "supabase.anon_key",
	"supabase_service_role_key": "supabase.service_role_key",
	"supabase_jwt_secret":       "supabase.jwt_secret",
	"supabase_jwks_url":         "supabase.jwks_url",
	"mongodb_uri":               "mongodb.uri",
	"mongodb_password":          "mongodb.password",
	"mongodb_database":          "mongodb.database",
	"redis_enabled":             "redis.enabled",
	"redis_addr":                "redis.addr",
	"redis_password":            "redis.password",
	"redis_db":                  "redis.db",
	"cloudinary_cloud_name":     "cloudinary.cloud_name",
	"cloudinary_api_key":        "cloudinary.api_key",
	"cloudinary_api_secret":     "cloudinary.api_secret",
	"media_bucket":              "media.bucket",
	"media_signed_url_ttl":      "media.signed_url_ttl",
	"media_uploader":            "media.uploader",
	"media_max_upload_bytes":    "media.max_upload_bytes",
	"location_store":            "geo.location_store",
	"location_ttl":              "geo.location_ttl",
	"interaction_grace_period":  "interaction.grace_period",
	"interaction_image_quota":   "interaction.image_quota",
	"comment_max_length":        "interaction.comment_max_length",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// splitList turns a comma-separated env value into a slice.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if c.Supabase.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_URL_ANON_KEY is required"))
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case "sqlite":
		if c.Database.DSN == "" {
			c.Database.DSN = "file::memory:?cache=shared"
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Geo.LocationStore {
	case "memory":
	case "mongo":
		if c.MongoDB.URI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when LOCATION_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown location store %q", c.Geo.LocationStore))
	}
	switch c.Media.Uploader {
	case "supabase":
	case "cloudinary":
		if c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "" {
			errs = append(errs, errors.New("cloudinary credentials are required when MEDIA_UPLOADER=cloudinary"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media uploader %q", c.Media.Uploader))
	}
	if c.Interaction.ImageQuota <= 0 {
		errs = append(errs, errors.New("interaction.image_quota must be positive"))
	}
	if c.Interaction.GracePeriod <= 0 {
		errs = append(errs, errors.New("interaction.grace_period must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
