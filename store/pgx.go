package store

import (
	"context"
	"fmt"
	"time"

	"churn-prediction-api/config"
	"churn-prediction-api/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// predictionColumns is the COPY column list; id is assigned by the database.
var predictionColumns = []string{
	"customer_id", "batch_id", "tenure", "monthly_charges", "contract",
	"payment_method", "churn_probability", "prediction_label", "explanation",
	"schema_version", "created_at",
}

// PgxSaver bulk-loads predictions with COPY. It is used by the standalone
// binaries, which talk to Postgres directly instead of through gorm.
type PgxSaver struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPgxSaver(pool *pgxpool.Pool) *PgxSaver {
	return &PgxSaver{pool: pool, now: time.Now}
}

// OpenPool connects a pgx pool to the configured Postgres database.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.Driver != "postgres" {
		return nil, fmt.Errorf("pgx requires the postgres driver, got %q", cfg.Driver)
	}
	pool, err := pgxpool.New(ctx, cfg.GetURL())
	if err != nil {
		return nil, fmt.Errorf("db pool init: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// SaveAll copies every row in a single COPY statement, which either stores
// all rows or none.
func (s *PgxSaver) SaveAll(ctx context.Context, rows []models.Prediction) error {
	if len(rows) == 0 {
		return nil
	}
	now := s.now().UTC()
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{models.Prediction{}.TableName()},
		predictionColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return copyRow(rows[i], now), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy predictions: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d predictions", n, len(rows))
	}
	return nil
}

func copyRow(p models.Prediction, now time.Time) []any {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	version := p.SchemaVersion
	if version == 0 {
		version = models.CurrentSchemaVersion
	}
	return []any{
		p.CustomerID, p.BatchID, p.Tenure, p.MonthlyCharges, p.Contract,
		p.PaymentMethod, p.Probability, p.Label, p.Explanation,
		version, createdAt,
	}
}
