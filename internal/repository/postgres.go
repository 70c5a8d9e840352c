// Package repository содержит журнал действий над подписками в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var defaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

var (
	// ErrActionExists возвращается при повторной записи действия с тем же идентификатором.
	ErrActionExists = errors.New("action log entry already exists")
	// ErrActionNotFound возвращается, если запись журнала не найдена.
	ErrActionNotFound = errors.New("action log entry not found")
)

// PostgresRepository хранит журнал действий над подписками в PostgreSQL.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	retryDelays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, retryDelays: defaultRetryDelays}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := r.retryDelays

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Ошибки контекста не повторяются.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[i]):
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// SaveAction записывает действие над подпиской в журнал.
func (r *PostgresRepository) SaveAction(ctx context.Context, entry model.ActionLogEntry) error {
	payload := entry.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}

	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO action_log (id, sid, action, payload, succeeded, error, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.ID, entry.SID, entry.Action, string(payload), entry.Succeeded, entry.Error, entry.CreatedAt,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrActionExists, entry.ID)
		}
		return fmt.Errorf("insert action log: %w", err)
	}
	return nil
}

// GetAction возвращает запись журнала по идентификатору.
func (r *PostgresRepository) GetAction(ctx context.Context, id string) (*model.ActionLogEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, sid, action, payload, succeeded, error, created_at FROM action_log WHERE id = $1`,
		id,
	)

	var e model.ActionLogEntry
	err := row.Scan(&e.ID, &e.SID, &e.Action, &e.Payload, &e.Succeeded, &e.Error, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("get action log: %w", err)
	}
	return &e, nil
}

// ListActions возвращает последние limit записей журнала по подписке, новые первыми.
func (r *PostgresRepository) ListActions(ctx context.Context, sid string, limit int) ([]model.ActionLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sid, action, payload, succeeded, error, created_at
		 FROM action_log
		 WHERE sid = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select action log: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ActionLogEntry, 0)
	for rows.Next() {
		var e model.ActionLogEntry
		if err := rows.Scan(&e.ID, &e.SID, &e.Action, &e.Payload, &e.Succeeded, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
