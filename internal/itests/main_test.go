package itests

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CrudAPI/internal"
	"CrudAPI/internal/cache"
	"CrudAPI/internal/config"
	"CrudAPI/internal/db"
	"CrudAPI/internal/model"
	"CrudAPI/internal/query"
	"CrudAPI/internal/resource"
	"CrudAPI/internal/router"
	"CrudAPI/internal/serializer"
	"CrudAPI/internal/store"
)

var (
	testBaseURL string
	registry    *model.Registry
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	cfg := config.LoadConfig()

	teardown, err := SetupTestDB(cfg.PostgresDSN, func(dsn string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.InitPostgres(ctx, dsn)
	})
	if errors.Is(err, errNoPostgres) {
		fmt.Println("skipping integration tests:", err)
		return 0
	}
	if err != nil {
		fmt.Println("setup test DB failed:", err)
		return 1
	}
	defer func() {
		db.ClosePostgres()
		if err := teardown(); err != nil {
			fmt.Println("drop test DB failed:", err)
		}
	}()

	if err := seed(context.Background()); err != nil {
		fmt.Println("seed failed:", err)
		return 1
	}

	root, err := internal.FindRepoRoot()
	if err != nil {
		fmt.Println("repo root not found:", err)
		return 1
	}
	if registry, err = model.InitRegistry(filepath.Join(root, "db")); err != nil {
		fmt.Println("InitRegistry failed:", err)
		return 1
	}
	sers, err := serializer.NewSet(registry.Models, serializer.DefaultRules())
	if err != nil {
		fmt.Println("serializers failed:", err)
		return 1
	}

	db.InitRedis(cfg.CountCache.Addr)
	defer db.CloseRedis()

	h := resource.New(registry, sers, store.New(db.Pool), resource.Options{
		Paging: query.ParamConfig{DefaultPerPage: 20, MaxPerPage: 50},
		Counts: cache.NewCountCache(db.RDB, time.Minute),
	})
	srv := httptest.NewServer(router.New(h, "/api", cfg.CORS))
	defer srv.Close()
	testBaseURL = srv.URL + "/api"

	return m.Run()
}

// seed inserts the fixture rows every read test relies on. Write tests create
// their own rows.
func seed(ctx context.Context) error {
	stmts := []string{
		`INSERT INTO addresses (street, city) VALUES ('Main st 1', 'Springfield'), ('Harbor 5', 'Shelbyville')`,
		`INSERT INTO companies (name, kind, founded_at, headquarters_id) VALUES
			('Acme', 'public', '1990-05-01 08:30:00', (SELECT id FROM addresses WHERE street = 'Main st 1')),
			('Globex', 'private', NULL, (SELECT id FROM addresses WHERE street = 'Harbor 5')),
			('Initech', 'private', '2001-02-03 00:00:00', NULL),
			('Umbrella', 'public', NULL, NULL)`,
		`INSERT INTO employees (name, email, salary, hired_at, shift_start, active, company_id) VALUES
			('Alice', 'alice@acme.test', 5000.50, '2020-01-15 09:00:00', '09:00', TRUE, (SELECT id FROM companies WHERE name = 'Acme')),
			('bob', 'bob@acme.test', 4200.00, '2021-06-01 10:00:00', '10:30', TRUE, (SELECT id FROM companies WHERE name = 'Acme')),
			('Carol', 'carol@globex.test', 6100.00, '2019-03-20 12:00:00', NULL, TRUE, (SELECT id FROM companies WHERE name = 'Globex')),
			('Dave', 'dave@globex.test', NULL, '2022-11-11 08:00:00', NULL, FALSE, (SELECT id FROM companies WHERE name = 'Globex')),
			('Eve', NULL, 3900.00, NULL, NULL, TRUE, (SELECT id FROM companies WHERE name = 'Initech')),
			('Frank', 'frank@nowhere.test', NULL, NULL, NULL, FALSE, NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
