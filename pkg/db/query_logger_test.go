package db

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/goldvault-backend/pkg/logger"
)

func newLoggedDB(t *testing.T, slow time.Duration) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newQueryLogger(logg, slow),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	buf.Reset()
	return conn, &buf
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	conn, buf := newLoggedDB(t, 0)
	if err := conn.Exec("SELECT * FROM missing_table").Error; err == nil {
		t.Fatalf("expected query error")
	}
	out := buf.String()
	if !strings.Contains(out, "query failed") || !strings.Contains(out, "missing_table") {
		t.Fatalf("expected failed query to be logged, got %s", out)
	}
}

func TestQueryLoggerIgnoresRecordNotFound(t *testing.T) {
	conn, buf := newLoggedDB(t, 0)
	var row testModel
	if err := conn.First(&row, "name = ?", "nobody").Error; err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("record not found should not be logged, got %s", buf.String())
	}
}

func TestQueryLoggerReportsSlowQueries(t *testing.T) {
	conn, buf := newLoggedDB(t, time.Nanosecond)
	if err := conn.Create(&testModel{Name: "slow"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.Contains(buf.String(), "slow query") {
		t.Fatalf("expected slow query warning, got %s", buf.String())
	}
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	if _, ok := newQueryLogger(nil, time.Second).(*queryLogger); ok {
		t.Fatalf("nil logger should fall back to the discard logger")
	}
	q := newQueryLogger(logger.Nop(), time.Second)
	q.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
}
