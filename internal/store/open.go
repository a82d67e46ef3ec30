package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// Options selects and configures a Backend.
type Options struct {
	Backend     string // memory, file, sqlite, postgres, redis, pebble
	DataDir     string
	SQLitePath  string
	PebblePath  string
	DatabaseURL string
	RedisURL    string
}

// Open creates the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	switch opts.Backend {
	case "memory":
		return NewMemoryStore(0), nil
	case "", "file":
		return NewFileStore(dataDir)
	case "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(dataDir, "chatsim.db")
		}
		return NewSQLiteStore(ctx, path)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		pg, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return pg, nil
	case "redis":
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires REDIS_URL")
		}
		return NewRedisStore(ctx, opts.RedisURL)
	case "pebble":
		path := opts.PebblePath
		if path == "" {
			path = filepath.Join(dataDir, "pebble")
		}
		return NewPebbleStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
