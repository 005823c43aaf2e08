package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/config"
)

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite},
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "tickets.db")},
	}
	store, closeFn, err := OpenStore(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeFn()

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "oracle"}}
	if _, _, err := OpenStore(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNewRedisDisabledWithoutAddr(t *testing.T) {
	if r := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop()); r != nil {
		t.Fatal("expected nil redis without address")
	}
	var r *Redis
	if err := r.Ping(context.Background()); err == nil {
		t.Fatal("nil redis ping should fail")
	}
}
