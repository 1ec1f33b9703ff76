// Package connect opens the external clients the API depends on.
package connect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/supabase-community/supabase-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joshua-takyi/eventradar/internal/config"
)

const connectTimeout = 10 * time.Second

// OpenDatabase returns a bun handle for the configured relational store.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	var db *bun.DB
	switch cfg.Driver {
	case "sqlite":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if strings.Contains(cfg.DSN, ":memory:") {
			// every connection to :memory: is a separate database
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case "postgres":
		pgcfg, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		sqldb := stdlib.OpenDB(*pgcfg)
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func InitSupabase(cfg config.SupabaseConfig) (*supabase.Client, error) {
	key := cfg.AnonKey
	if cfg.ServiceRoleKey != "" {
		// server-side calls bypass row level security
		key = cfg.ServiceRoleKey
	}
	client, err := supabase.NewClient(cfg.URL, key, nil)
	if err != nil {
		return nil, fmt.Errorf("init supabase: %w", err)
	}
	return client, nil
}

func MongoDBConnect(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	uri := strings.Replace(cfg.URI, "<password>", cfg.Password, 1)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func MongoDBDisconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	return nil
}

func RedisConnect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func CloudinaryCredentials(cfg config.CloudinaryConfig) (*cloudinary.Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return cld, nil
}

// Clients bundles everything Open connected, so shutdown can release it.
type Clients struct {
	DB         *bun.DB
	Supabase   *supabase.Client
	Mongo      *mongo.Client
	Redis      *redis.Client
	Cloudinary *cloudinary.Cloudinary
}

// Open connects every client the configuration asks for. Optional backends
// are only dialled when selected.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Clients, error) {
	c := &Clients{}
	var err error

	if c.DB, err = OpenDatabase(ctx, cfg.Database); err != nil {
		return nil, err
	}
	logger.Info("database connected", "driver", cfg.Database.Driver)

	if cfg.Supabase.URL != "" {
		if c.Supabase, err = InitSupabase(cfg.Supabase); err != nil {
			c.Close()
			return nil, err
		}
		logger.Info("supabase client ready")
	}

	if cfg.Geo.LocationStore == "mongo" {
		if c.Mongo, err = MongoDBConnect(ctx, cfg.MongoDB); err != nil {
			c.Close()
			return nil, err
		}
		logger.Info("mongodb connected", "database", cfg.MongoDB.Database)
	}

	if cfg.Redis.Enabled {
		if c.Redis, err = RedisConnect(ctx, cfg.Redis); err != nil {
			c.Close()
			return nil, err
		}
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	if cfg.Media.Uploader == "cloudinary" {
		if c.Cloudinary, err = CloudinaryCredentials(cfg.Cloudinary); err != nil {
			c.Close()
			return nil, err
		}
		logger.Info("cloudinary configured")
	}
	return c, nil
}

func (c *Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Mongo != nil {
		_ = MongoDBDisconnect(c.Mongo)
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
