package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertObservationSQL = `INSERT INTO observations (
        observed_at,
        price,
        currency,
        outbound_date,
        return_date,
        google_link,
        skyscanner_link
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, created_at;`

	topCheapestSQL = `SELECT
        id,
        observed_at,
        price,
        currency,
        outbound_date,
        return_date,
        google_link,
        skyscanner_link,
        created_at
    FROM observations
    ORDER BY price ASC, id ASC
    LIMIT $1;`

	bestBetweenSQL = `SELECT
        id,
        observed_at,
        price,
        currency,
        outbound_date,
        return_date,
        google_link,
        skyscanner_link,
        created_at
    FROM observations
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY price ASC, id ASC
    LIMIT 1;`

	listBetweenSQL = `SELECT
        id,
        observed_at,
        price,
        currency,
        outbound_date,
        return_date,
        google_link,
        skyscanner_link,
        created_at
    FROM observations
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY observed_at;`

	listRecentSQL = `SELECT
        id,
        observed_at,
        price,
        currency,
        outbound_date,
        return_date,
        google_link,
        skyscanner_link,
        created_at
    FROM observations
    ORDER BY observed_at DESC
    LIMIT $1;`

	countObservationsSQL = `SELECT COUNT(*) FROM observations;`

	loadCursorSQL = `SELECT next_update_id FROM consumer_offset WHERE id = 1;`

	saveCursorSQL = `INSERT INTO consumer_offset (id, next_update_id)
    VALUES (1, $1)
    ON CONFLICT (id) DO UPDATE
    SET next_update_id = EXCLUDED.next_update_id,
        updated_at     = now();`
)

// ObservationStore defines operations over the price history relation.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs Observation) (Observation, error)
	TopCheapest(ctx context.Context, limit int) ([]Observation, error)
	BestBetween(ctx context.Context, from, to time.Time) (Observation, bool, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Observation, error)
	ListRecent(ctx context.Context, limit int) ([]Observation, error)
	CountObservations(ctx context.Context) (int64, error)
}

// CursorStore persists the inbound-update consumption cursor. The cursor is
// the next update identifier expected; loading reports found=false before the
// first save.
type CursorStore interface {
	LoadCursor(ctx context.Context) (int64, bool, error)
	SaveCursor(ctx context.Context, nextUpdateID int64) error
}

// Store aggregates access to observations and the consumption cursor.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertObservation appends one observation and returns it with the assigned
// id and created_at.
func (s *Store) InsertObservation(ctx context.Context, obs Observation) (Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return Observation{}, err
	}

	var retDate, gLink, sLink interface{}
	if obs.ReturnDate != nil {
		retDate = *obs.ReturnDate
	}
	if obs.GoogleLink != nil {
		gLink = *obs.GoogleLink
	}
	if obs.SkyscannerLink != nil {
		sLink = *obs.SkyscannerLink
	}

	row := pool.QueryRow(ctx, insertObservationSQL,
		obs.ObservedAt,
		obs.Price.String(),
		obs.Currency,
		obs.OutboundDate,
		retDate,
		gLink,
		sLink,
	)

	if scanErr := row.Scan(&obs.ID, &obs.CreatedAt); scanErr != nil {
		return Observation{}, fmt.Errorf("insert observation: %w", scanErr)
	}
	return obs, nil
}

// TopCheapest returns up to limit observations ordered by ascending price;
// price ties keep insertion order.
func (s *Store) TopCheapest(ctx context.Context, limit int) ([]Observation, error) {
	return s.queryObservations(ctx, topCheapestSQL, limit)
}

// BestBetween returns the minimum-price observation whose timestamp falls in
// [from, to). found is false when the range holds no records.
func (s *Store) BestBetween(ctx context.Context, from, to time.Time) (Observation, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Observation{}, false, err
	}

	rows, queryErr := pool.Query(ctx, bestBetweenSQL, from, to)
	if queryErr != nil {
		return Observation{}, false, fmt.Errorf("best between: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		return Observation{}, false, rows.Err()
	}

	obs, scanErr := scanObservation(rows)
	if scanErr != nil {
		return Observation{}, false, scanErr
	}
	return obs, true, nil
}

// ListBetween lists observations within a time window ordered by timestamp.
func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]Observation, error) {
	return s.queryObservations(ctx, listBetweenSQL, from, to)
}

// ListRecent lists the most recent observations, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Observation, error) {
	return s.queryObservations(ctx, listRecentSQL, limit)
}

// CountObservations counts stored observations.
func (s *Store) CountObservations(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// LoadCursor reads the durable consumption cursor.
func (s *Store) LoadCursor(ctx context.Context) (int64, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, false, err
	}

	var next int64
	scanErr := pool.QueryRow(ctx, loadCursorSQL).Scan(&next)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if scanErr != nil {
		return 0, false, fmt.Errorf("load cursor: %w", scanErr)
	}
	return next, true, nil
}

// SaveCursor durably records the next update identifier expected.
func (s *Store) SaveCursor(ctx context.Context, nextUpdateID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, saveCursorSQL, nextUpdateID); execErr != nil {
		return fmt.Errorf("save cursor: %w", execErr)
	}
	return nil
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...interface{}) ([]Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query observations: %w", queryErr)
	}
	defer rows.Close()

	observations := make([]Observation, 0)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanObservation(rows pgx.Rows) (Observation, error) {
	var (
		id         int64
		observedAt time.Time
		priceStr   string
		currency   string
		outbound   string
		returnDate sql.NullString
		gLink      sql.NullString
		sLink      sql.NullString
		createdAt  time.Time
	)

	if err := rows.Scan(
		&id,
		&observedAt,
		&priceStr,
		&currency,
		&outbound,
		&returnDate,
		&gLink,
		&sLink,
		&createdAt,
	); err != nil {
		return Observation{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return Observation{}, fmt.Errorf("parse price: %w", err)
	}

	obs := Observation{
		ID:           id,
		ObservedAt:   observedAt,
		Price:        price,
		Currency:     currency,
		OutboundDate: outbound,
		CreatedAt:    createdAt,
	}

	if returnDate.Valid {
		value := returnDate.String
		obs.ReturnDate = &value
	}
	if gLink.Valid {
		value := gLink.String
		obs.GoogleLink = &value
	}
	if sLink.Valid {
		value := sLink.String
		obs.SkyscannerLink = &value
	}

	return obs, nil
}
