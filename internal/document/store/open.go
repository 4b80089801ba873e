package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coursepilot/go-services/internal/kv"
)

// Engine names accepted by Config.Engine.
const (
	EngineBolt   = "bolt"
	EngineRedis  = "redis"
	EngineMongo  = "mongo"
	EngineMemory = "memory"
)

// Config selects and configures the engine behind a Store.
type Config struct {
	Engine string

	// bolt
	Path             string
	CompressionLevel int
	OpenTimeout      time.Duration

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// mongo
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration
}

// OpenError reports that the store could not be opened. Callers treat it as
// fatal; nothing is repaired or recreated.
type OpenError struct {
	Engine string
	Target string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s store at %q: %v", e.Engine, e.Target, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Open opens the configured engine and returns a Store over its documents
// table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	engine, target, err := openEngine(ctx, cfg)
	if err != nil {
		return nil, &OpenError{Engine: cfg.Engine, Target: target, Err: err}
	}
	return &Store{kv: engine, engine: cfg.Engine}, nil
}

func openEngine(ctx context.Context, cfg Config) (kv.Store, string, error) {
	switch cfg.Engine {
	case EngineBolt:
		b, err := kv.OpenBolt(cfg.Path, kv.BoltOptions{
			Bucket:           Table,
			CompressionLevel: cfg.CompressionLevel,
			OpenTimeout:      cfg.OpenTimeout,
		})
		if err != nil {
			return nil, cfg.Path, err
		}
		return b, cfg.Path, nil
	case EngineRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, openTimeout(cfg.OpenTimeout))
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, cfg.RedisAddr, fmt.Errorf("redis ping: %w", err)
		}
		return kv.NewRedis(client, Table+":"), cfg.RedisAddr, nil
	case EngineMongo:
		m, err := kv.DialMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, Table, openTimeout(cfg.MongoTimeout))
		if err != nil {
			return nil, cfg.MongoDatabase, err
		}
		return m, cfg.MongoDatabase, nil
	case EngineMemory:
		return kv.NewMemory(), "memory", nil
	default:
		return nil, "", fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func openTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
