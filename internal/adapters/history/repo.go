package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/flightmesh/flightmesh/internal/domain"
)

// Repo writes price observations to MySQL: a thin wrapper around *sql.DB
// with one method per write/read shape and the raw SQL kept in sql.go.
type Repo struct{ db *sql.DB }

func Open(dsn string) (*Repo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) RecordObservation(ctx context.Context, row domain.PriceHistoryRow) error {
	_, err := r.db.ExecContext(ctx, upsertObservationSQL,
		row.QueryKey, row.Fingerprint, row.SourceID, row.Price.Amount, row.Price.Currency, row.ObservedAt,
	)
	return err
}

func (r *Repo) PriceHistory(ctx context.Context, origin, dest string, from, to time.Time) ([]domain.PriceHistoryRow, error) {
	prefix := origin + ":" + dest + ":%"
	rows, err := r.db.QueryContext(ctx, priceHistorySQL, prefix, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceHistoryRow
	for rows.Next() {
		var row domain.PriceHistoryRow
		if err := rows.Scan(&row.QueryKey, &row.Fingerprint, &row.SourceID, &row.Price.Amount, &row.Price.Currency, &row.ObservedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
