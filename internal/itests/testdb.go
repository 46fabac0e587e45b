package itests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"CrudAPI/internal"
	"CrudAPI/internal/logger"
)

const testDBName = "crudapi_test"

// errNoPostgres marks a setup failure caused by an unreachable server, so the
// suite can be skipped instead of failed.
var errNoPostgres = errors.New("postgres not reachable")

// DeriveTestDSN points baseDSN at the test database and at the maintenance
// database used to create and drop it. Only local servers are accepted.
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN string, err error) {
	u, err := url.Parse(baseDSN)
	if err != nil {
		return "", "", fmt.Errorf("parse DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", errors.New("only URL DSN supported: postgres://...")
	}
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	u.Path = "/" + testDBName
	testDSN = u.String()
	u.Path = "/postgres"
	adminDSN = u.String()
	return testDSN, adminDSN, nil
}

func withAdmin(adminDSN string, timeout time.Duration, fn func(context.Context, *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", errNoPostgres, err)
	}
	return fn(ctx, conn)
}

// RecreateTestDatabase drops a leftover test database and creates an empty one.
func RecreateTestDatabase(adminDSN string) error {
	if err := DropTestDatabase(adminDSN); err != nil {
		return err
	}
	return withAdmin(adminDSN, 10*time.Second, func(ctx context.Context, conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, `CREATE DATABASE `+quoteIdent(testDBName))
		return err
	})
}

// DropTestDatabase terminates open sessions and drops the test database.
func DropTestDatabase(adminDSN string) error {
	return withAdmin(adminDSN, 15*time.Second, func(ctx context.Context, conn *sql.DB) error {
		_, _ = conn.ExecContext(ctx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, testDBName)
		_, err := conn.ExecContext(ctx, `DROP DATABASE IF EXISTS `+quoteIdent(testDBName))
		return err
	})
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func applyMigrations(testDSN string) error {
	root, err := internal.FindRepoRoot()
	if err != nil {
		return fmt.Errorf("repo root not found: %w", err)
	}
	// file:// needs an absolute path with forward slashes
	src := "file://" + filepath.ToSlash(filepath.Join(root, "migrations"))

	m, err := migrate.New(src, testDSN)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SetupTestDB creates and migrates the test database, then hands its DSN to
// initFunc. The returned teardown drops it again.
func SetupTestDB(baseDSN string, initFunc func(dsn string) error) (teardown func() error, err error) {
	testDSN, adminDSN, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return nil, err
	}
	if os.Getenv("APP_ENV") == "production" {
		return nil, errors.New("APP_ENV=production, aborting tests")
	}

	if err := RecreateTestDatabase(adminDSN); err != nil {
		return nil, fmt.Errorf("create DB %q via %s: %w", testDBName, redactDSN(adminDSN), err)
	}
	logger.Info("test_db_created", map[string]any{"db": testDBName})

	if err := applyMigrations(testDSN); err != nil {
		_ = DropTestDatabase(adminDSN)
		return nil, err
	}
	if initFunc != nil {
		if err := initFunc(testDSN); err != nil {
			_ = DropTestDatabase(adminDSN)
			return nil, fmt.Errorf("init postgres: %w", err)
		}
	}
	return func() error { return DropTestDatabase(adminDSN) }, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil || u.User.Username() == "" {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "******")
	return u.String()
}
