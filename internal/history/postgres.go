package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const schema = `
CREATE TABLE IF NOT EXISTS ride_offers (
	id             UUID PRIMARY KEY,
	platform       TEXT NOT NULL,
	format         TEXT NOT NULL,
	fare           DOUBLE PRECISION,
	total_miles    DOUBLE PRECISION NOT NULL,
	total_minutes  DOUBLE PRECISION NOT NULL,
	price_per_mile DOUBLE PRECISION NOT NULL,
	price_per_hour DOUBLE PRECISION NOT NULL,
	recommendation TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT '',
	offer          JSONB NOT NULL,
	assessment     JSONB NOT NULL,
	seen_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ride_offers_seen_at_idx ON ride_offers (seen_at DESC);`

const insertSQL = `
INSERT INTO ride_offers (id, platform, format, fare, total_miles, total_minutes,
	price_per_mile, price_per_hour, recommendation, status, offer, assessment, seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO NOTHING`

const selectColumns = `SELECT id, recommendation, status, offer, assessment, seen_at FROM ride_offers`

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// PostgresStore keeps the full offer history in Postgres.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table and index if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageFailed, "ensure schema")
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r Record) error {
	return s.SaveBatch(ctx, []Record{r})
}

// SaveBatch inserts records in one round trip. Records already stored are skipped.
func (s *PostgresStore) SaveBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		args, err := insertArgs(r)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "encode record").
				WithMetadata("id", r.ID.String())
		}
		batch.Queue(insertSQL, args...)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorageFailed, "insert records")
		}
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	rows, err := s.db.Query(ctx, selectColumns+` ORDER BY seen_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "query recent")
	}
	return scanRecords(rows)
}

func (s *PostgresStore) Since(ctx context.Context, t time.Time) ([]Record, error) {
	rows, err := s.db.Query(ctx, selectColumns+` WHERE seen_at >= $1 ORDER BY seen_at ASC`, t)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "query since")
	}
	return scanRecords(rows)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return errInvalidStatus(status)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE ride_offers
		 SET status = $1, offer = jsonb_set(offer, '{status}', to_jsonb($1::text))
		 WHERE id = $2`,
		status, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageFailed, "update status")
	}
	if tag.RowsAffected() == 0 {
		return errNotFound(id)
	}
	return nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM ride_offers WHERE seen_at < $1`, t)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeStorageFailed, "prune records")
	}
	return tag.RowsAffected(), nil
}

func insertArgs(r Record) ([]any, error) {
	offerJSON, err := json.Marshal(r.Offer)
	if err != nil {
		return nil, err
	}
	assessmentJSON, err := json.Marshal(r.Assessment)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID,
		string(r.Offer.Platform),
		r.Offer.Format,
		r.Offer.Fare,
		r.Assessment.TotalMiles,
		r.Assessment.TotalMinutes,
		r.Assessment.PricePerMile,
		r.Assessment.PricePerHour,
		r.Recommendation.String(),
		r.Status,
		offerJSON,
		assessmentJSON,
		r.SeenAt,
	}, nil
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r                         Record
			recommendation            string
			offerJSON, assessmentJSON []byte
		)
		if err := rows.Scan(&r.ID, &recommendation, &r.Status, &offerJSON, &assessmentJSON, &r.SeenAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "scan record")
		}
		if err := decodeRecord(&r, recommendation, offerJSON, assessmentJSON); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "decode record").
				WithMetadata("id", r.ID.String())
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailed, "iterate records")
	}
	return records, nil
}

func decodeRecord(r *Record, recommendation string, offerJSON, assessmentJSON []byte) error {
	if err := json.Unmarshal(offerJSON, &r.Offer); err != nil {
		return fmt.Errorf("offer: %w", err)
	}
	if err := json.Unmarshal(assessmentJSON, &r.Assessment); err != nil {
		return fmt.Errorf("assessment: %w", err)
	}
	r.Recommendation = economics.ParseLevel(recommendation)
	r.Offer.Status = r.Status
	return nil
}
