package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// Execer is extracted from *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresSink stores each event as a row.
type PostgresSink struct {
	db     Execer
	table  string
	now    func() time.Time
	closer func()
}

// NewPostgresSink writes into table through db.
func NewPostgresSink(db Execer, table string) *PostgresSink {
	return &PostgresSink{db: db, table: pgx.Identifier{table}.Sanitize(), now: time.Now}
}

// DialPostgres opens a pool on dsn and creates the table when missing.
func DialPostgres(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewValidationError("monitor.postgres.dsn", err.Error(), "<redacted>")
	}
	s := NewPostgresSink(pool, table)
	s.closer = pool.Close
	if err := s.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id              BIGSERIAL PRIMARY KEY,
	pu_location_id  INTEGER NOT NULL,
	do_location_id  INTEGER NOT NULL,
	trip_distance   DOUBLE PRECISION NOT NULL,
	passenger_count DOUBLE PRECISION NOT NULL,
	fare_amount     DOUBLE PRECISION NOT NULL,
	total_amount    DOUBLE PRECISION NOT NULL,
	prediction      DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
)`, s.table)
}

func (s *PostgresSink) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s
	(pu_location_id, do_location_id, trip_distance, passenger_count, fare_amount, total_amount, prediction, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)
}

// EnsureTable creates the predictions table if it does not exist.
func (s *PostgresSink) EnsureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.createTableSQL()); err != nil {
		return errors.Wrapf(err, "create table %s", s.table)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Forward(ctx context.Context, e Event) error {
	tag, err := s.db.Exec(ctx, s.insertSQL(),
		e.PULocationID, e.DOLocationID, e.TripDistance, e.PassengerCount,
		e.FareAmount, e.TotalAmount, e.Prediction, s.now().UTC())
	if err != nil {
		return errors.Wrapf(err, "insert into %s", s.table)
	}
	if tag.RowsAffected() != 1 {
		return errors.Newf("insert into %s: %d rows affected", s.table, tag.RowsAffected())
	}
	return nil
}

func (s *PostgresSink) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}
