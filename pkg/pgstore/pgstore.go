package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pershin-daniil/Events/pkg/metrics"
	"github.com/pershin-daniil/Events/pkg/models"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

//go:embed migrations
var migrations embed.FS

const uniqueViolation = "23505"

type Store struct {
	log *logrus.Entry
	db  *sqlx.DB
}

func New(ctx context.Context, log *logrus.Logger, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	return NewWithDB(log, db), nil
}

// NewWithDB wraps an already opened connection pool.
func NewWithDB(log *logrus.Logger, db *sqlx.DB) *Store {
	return &Store{
		log: log.WithField("component", "pgstore"),
		db:  db,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies (migrate.Up) or reverts (migrate.Down) the embedded migrations.
// limit caps the number of steps; 0 means all of them.
func (s *Store) Migrate(direction migrate.MigrationDirection, limit int) (int, error) {
	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, er := migrations.ReadDir(path)
			if er != nil {
				return nil, er
			}
			entries := make([]string, 0)
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()
	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}
	n, err := migrate.ExecMax(s.db.DB, "postgres", asset, direction, limit)
	if err != nil {
		return n, fmt.Errorf("err migrating: %w", err)
	}
	s.log.Infof("applied %d migrations", n)
	return n, nil
}

func (s *Store) ResetTables(ctx context.Context, tables []string) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE TABLE `+strings.Join(tables, `, `)+` RESTART IDENTITY CASCADE`)
	return err
}

func observe(method string, start time.Time, err error) {
	metrics.PgDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrDuplicate) {
		metrics.PgErrCount.WithLabelValues(method).Inc()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// orderBy builds an ORDER BY clause from a whitelist of sortable columns.
func orderBy(columns map[string]string, opts models.ListOptions) (string, error) {
	field := opts.Sort
	if field == "" {
		field = "id"
	}
	column, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("unknown sort field %q", field)
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	if column == "id" {
		return fmt.Sprintf(" ORDER BY id %s", dir), nil
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", column, dir, dir), nil
}

func limitOffset(opts models.ListOptions) (string, []any) {
	if opts.Limit > 0 {
		return ` LIMIT $1 OFFSET $2`, []any{opts.Limit, opts.Offset}
	}
	return ` OFFSET $1`, []any{opts.Offset}
}
