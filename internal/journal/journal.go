// Package journal mirrors confirmed transaction saves into PostgreSQL
// for auditing. The spreadsheet stays the backend of record; losing a
// journal row never blocks a save.
package journal

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danuarif/duitbot/pkg/api"
	"github.com/danuarif/duitbot/pkg/config"
)

//go:embed 001_create_journal.sql
var migrationSQL string

// Journal records confirmed saves. A nil *Journal is valid and drops
// every record, so callers never branch on whether journaling is on.
type Journal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the journal database and applies the schema. It
// returns (nil, nil) when cfg.Host is empty: journaling disabled.
func Open(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*Journal, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("journal connected",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	return &Journal{pool: pool, logger: logger}, nil
}

// Record writes one confirmed save. Failures are logged and swallowed.
func (j *Journal) Record(ctx context.Context, userID, source string, tx *api.Transaction) {
	if j == nil {
		return
	}

	var occurredAt *time.Time
	if tx.Date != "" {
		datetime := tx.Date + " " + tx.Time
		if tx.Time == "" {
			datetime = tx.Date + " 00:00:00"
		}
		if parsed, err := time.Parse("02/01/2006 15:04:05", datetime); err == nil {
			occurredAt = &parsed
		}
	}

	_, err := j.pool.Exec(ctx, `
		INSERT INTO journal_entries (
			user_id, title, amount, is_income, account,
			category, subcategory, merchant_type, order_number,
			occurred_at, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		userID,
		tx.Title,
		tx.Amount,
		tx.IsIncome,
		tx.Account,
		tx.Category,
		tx.Subcategory,
		tx.MerchantType,
		tx.OrderNumber,
		occurredAt,
		source,
	)
	if err != nil {
		j.logger.Warn("journal write failed", "user_id", userID, "error", err)
	}
}

// Close releases the connection pool.
func (j *Journal) Close() {
	if j == nil || j.pool == nil {
		return
	}
	j.pool.Close()
	j.logger.Info("journal closed")
}
