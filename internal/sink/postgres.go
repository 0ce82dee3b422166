package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricepally/demandcast/internal/api"
)

// PostgresSink writes forecast records into a table with idempotent
// inserts: the primary key covers (run_id, series key, step) and conflicts
// are ignored, so a retried run never duplicates rows.
//
// Schema:
//
//	CREATE TABLE forecast_records (
//	  run_id        VARCHAR(64)  NOT NULL,
//	  product_name  VARCHAR(255) NOT NULL,
//	  product_uom   VARCHAR(64)  NOT NULL,
//	  sales_type    VARCHAR(32)  NOT NULL,
//	  year          INT          NOT NULL,
//	  month         INT          NOT NULL,
//	  week_no       INT          NOT NULL,
//	  step          INT          NOT NULL,
//	  forecast_qty  DOUBLE PRECISION NOT NULL,
//	  method        VARCHAR(32)  NOT NULL,
//	  created_at    TIMESTAMP DEFAULT NOW(),
//	  PRIMARY KEY (run_id, product_name, product_uom, sales_type, step)
//	);
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects a pool and verifies the connection.
func NewPostgresSink(connStr string) (*PostgresSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) WriteForecasts(ctx context.Context, runID string, records []api.ForecastRecord) error {
	query := `
		INSERT INTO forecast_records
			(run_id, product_name, product_uom, sales_type, year, month, week_no, step, forecast_qty, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, product_name, product_uom, sales_type, step) DO NOTHING
	`

	for _, r := range records {
		_, err := p.pool.Exec(ctx, query,
			runID, r.Key.ProductName, r.Key.UOM, r.Key.SalesType,
			r.Week.Year, r.Week.Month, r.Week.WeekNo,
			r.Step, r.Qty, string(r.Method),
		)
		if err != nil {
			return fmt.Errorf("postgres insert failed for %s: %w", r.Key, err)
		}
	}
	return nil
}

func (p *PostgresSink) Close() error {
	p.pool.Close()
	return nil
}
