package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/ncprobe/internal/domain"
	"github.com/hamed0406/ncprobe/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate applies the embedded schema; every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("postgres_schema_applied")
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = repo.NewID(time.Now())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO targets (id, destination, port, proxy, proxy_mode, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING`,
		string(t.ID), t.Destination, t.Port, t.Proxy, t.ProxyMode, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrDuplicate
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, destination, port, proxy, proxy_mode, created_at
		   FROM targets
		  ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		var (
			t  domain.Target
			id string
		)
		if err := rows.Scan(&id, &t.Destination, &t.Port, &t.Proxy, &t.ProxyMode, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.ID = domain.TargetID(id)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, cr *domain.CheckResult) error {
	if cr.CheckedAt.IsZero() {
		cr.CheckedAt = time.Now().UTC()
	}
	var statusPtr *int
	if cr.HTTPStatus != 0 {
		statusPtr = &cr.HTTPStatus
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results
		   (target_id, up, outcome, http_status, latency_ms, reason, via_proxy, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(cr.TargetID), cr.Up, cr.Outcome, statusPtr, cr.LatencyMS, cr.Reason, cr.ViaProxy, cr.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (r.target_id)
       r.target_id,
       t.destination,
       r.up,
       r.outcome,
       r.http_status,
       r.latency_ms,
       r.reason,
       r.via_proxy,
       r.checked_at
  FROM results r
  JOIN targets t ON t.id = r.target_id
 ORDER BY r.target_id, r.checked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []repo.LatestRow
	for rows.Next() {
		var (
			row     repo.LatestRow
			latency float64
		)
		if err := rows.Scan(&row.TargetID, &row.Destination, &row.Up, &row.Outcome,
			&row.HTTPStatus, &latency, &row.Reason, &row.ViaProxy, &row.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		row.LatencyMS = &latency
		out = append(out, row)
	}
	return out, rows.Err()
}
