// Package testutil builds the in-process stores used by package tests:
// gorm on in-memory SQLite and go-redis on miniredis.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/renewal/internal/platform/db"
	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/gormlog"
)

// NewDB opens a private in-memory SQLite database with every model migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlog.New(zap.NewNop().Sugar(), time.Second, gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// A single connection keeps the in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t *testing.T) (goredis.UniversalClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// Config returns a valid configuration with the production defaults.
func Config() *config.Config {
	return &config.Config{
		Env:      config.EnvDev,
		Redis:    config.RedisConfig{KeyPrefix: "test:", LockTTL: 5 * time.Second, LockWait: 200 * time.Millisecond},
		Executor: config.ExecutorConfig{Secret: "s3cret", Header: "X-Executor-Secret"},
		PlanChange: config.PlanChangeConfig{
			BaseDelay:       time.Minute,
			MaxDelay:        6 * time.Hour,
			OverdueMaxDelay: 15 * time.Minute,
			MinDelay:        30 * time.Second,
			MaxRetries:      10,
			AlertAttempts:   []int{3, 6, 9},
		},
		Alert: config.AlertConfig{Timeout: time.Second},
		Feed:  config.FeedConfig{DefaultLimit: 100, MaxLimit: 500},
	}
}

// Clock is a settable time source for services taking a now func.
type Clock struct{ T time.Time }

func NewClock(t time.Time) *Clock { return &Clock{T: t} }

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Set(t time.Time) { c.T = t }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
