package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func stubPostgresHooks(t *testing.T) {
	t.Helper()
	origParse := parsePGConfig
	origNew := newPGPool
	origPing := pingPGPool
	origClose := closePGPool
	t.Cleanup(func() {
		parsePGConfig = origParse
		newPGPool = origNew
		pingPGPool = origPing
		closePGPool = origClose
	})
}

func TestNewPostgresDB_ParseError(t *testing.T) {
	stubPostgresHooks(t)
	parsePGConfig = func(string) (*pgxpool.Config, error) {
		return nil, errors.New("bad dsn")
	}

	_, err := NewPostgresDB("bad", DefaultPoolOptions())
	if err == nil || !strings.Contains(err.Error(), "parsing database config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestNewPostgresDB_NewPoolError(t *testing.T) {
	stubPostgresHooks(t)
	parsePGConfig = func(string) (*pgxpool.Config, error) {
		return &pgxpool.Config{}, nil
	}
	newPGPool = func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("new pool error")
	}

	_, err := NewPostgresDB("dsn", DefaultPoolOptions())
	if err == nil || !strings.Contains(err.Error(), "creating connection pool") {
		t.Fatalf("expected pool error, got %v", err)
	}
}

func TestNewPostgresDB_PingErrorClosesPool(t *testing.T) {
	stubPostgresHooks(t)
	parsePGConfig = func(string) (*pgxpool.Config, error) {
		return &pgxpool.Config{}, nil
	}
	pool := &pgxpool.Pool{}
	newPGPool = func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return pool, nil
	}
	pingPGPool = func(context.Context, *pgxpool.Pool) error {
		return errors.New("ping failed")
	}
	var closed *pgxpool.Pool
	closePGPool = func(p *pgxpool.Pool) { closed = p }

	_, err := NewPostgresDB("dsn", DefaultPoolOptions())
	if err == nil || !strings.Contains(err.Error(), "pinging database") {
		t.Fatalf("expected ping error, got %v", err)
	}
	if closed != pool {
		t.Fatal("expected pool to be closed after failed ping")
	}
}

func TestNewPostgresDB_AppliesPoolOptions(t *testing.T) {
	stubPostgresHooks(t)
	cfg := &pgxpool.Config{}
	parsePGConfig = func(string) (*pgxpool.Config, error) {
		return cfg, nil
	}
	pool := &pgxpool.Pool{}
	var deadlineSet bool
	newPGPool = func(ctx context.Context, _ *pgxpool.Config) (*pgxpool.Pool, error) {
		_, deadlineSet = ctx.Deadline()
		return pool, nil
	}
	pingPGPool = func(context.Context, *pgxpool.Pool) error { return nil }
	closePGPool = func(*pgxpool.Pool) {}

	opts := PoolOptions{
		MaxConns:          7,
		MinConns:          1,
		MaxConnLifetime:   2 * time.Hour,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
	db, err := NewPostgresDB("dsn", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Pool != pool {
		t.Fatal("expected returned pool to match stubbed pool")
	}
	if !deadlineSet {
		t.Fatal("expected connect context to carry a deadline")
	}
	if cfg.MaxConns != 7 || cfg.MinConns != 1 {
		t.Fatalf("unexpected conns: max=%d min=%d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.MaxConnLifetime != 2*time.Hour {
		t.Fatalf("expected MaxConnLifetime 2h, got %v", cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime != 5*time.Minute {
		t.Fatalf("expected MaxConnIdleTime 5m, got %v", cfg.MaxConnIdleTime)
	}
	if cfg.HealthCheckPeriod != 30*time.Second {
		t.Fatalf("expected HealthCheckPeriod 30s, got %v", cfg.HealthCheckPeriod)
	}
}

func TestDefaultPoolOptions(t *testing.T) {
	opts := DefaultPoolOptions()
	if opts.MaxConns != 20 || opts.MinConns != 2 {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.ConnectTimeout != 10*time.Second {
		t.Fatalf("expected 10s connect timeout, got %v", opts.ConnectTimeout)
	}
}

func TestPostgresDB_Health(t *testing.T) {
	stubPostgresHooks(t)

	var nilDB *PostgresDB
	if err := nilDB.Health(context.Background()); err == nil {
		t.Fatal("expected error for nil db")
	}

	pingPGPool = func(context.Context, *pgxpool.Pool) error { return errors.New("down") }
	db := &PostgresDB{Pool: &pgxpool.Pool{}}
	if err := db.Health(context.Background()); err == nil {
		t.Fatal("expected health error")
	}

	pingPGPool = func(context.Context, *pgxpool.Pool) error { return nil }
	if err := db.Health(context.Background()); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}
}

func TestPostgresDB_Close(t *testing.T) {
	stubPostgresHooks(t)
	called := false
	closePGPool = func(*pgxpool.Pool) { called = true }

	(&PostgresDB{}).Close()
	if called {
		t.Fatal("did not expect close on nil pool")
	}

	(&PostgresDB{Pool: &pgxpool.Pool{}}).Close()
	if !called {
		t.Fatal("expected closePGPool to be called")
	}
}
