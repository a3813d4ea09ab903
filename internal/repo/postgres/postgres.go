package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/domain"
	"github.com/hamed0406/uptimeprobe/internal/repo"
)

var _ repo.SiteStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)

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
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const siteColumns = `id, name, url, check_interval_ms, is_active, created_at, updated_at`

// ---- SiteStore ----

func (s *Store) Create(ctx context.Context, site domain.Site) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sites (`+siteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(site.ID), site.Name, site.URL, site.CheckInterval, site.IsActive, site.CreatedAt, site.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.SiteID) (domain.Site, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, string(id))
	site, err := scanSite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Site{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Site{}, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+siteColumns+`
		   FROM sites
		  ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return collectSites(rows)
}

func (s *Store) Update(ctx context.Context, site domain.Site) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sites
		    SET name = $2, url = $3, check_interval_ms = $4, is_active = $5, updated_at = $6
		  WHERE id = $1`,
		string(site.ID), site.Name, site.URL, site.CheckInterval, site.IsActive, site.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.SiteID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SetActiveForAll(ctx context.Context, active bool, at time.Time) ([]domain.Site, error) {
	rows, err := s.pool.Query(ctx, `
WITH changed AS (
  UPDATE sites
     SET is_active = $1,
         updated_at = GREATEST($2::timestamptz, updated_at + interval '1 microsecond')
   WHERE is_active <> $1
  RETURNING `+siteColumns+`
)
SELECT `+siteColumns+` FROM changed ORDER BY created_at, id`, active, at)
	if err != nil {
		return nil, fmt.Errorf("set active for all: %w", err)
	}
	return collectSites(rows)
}

func scanSite(row pgx.Row) (domain.Site, error) {
	var (
		site domain.Site
		id   string
	)
	if err := row.Scan(&id, &site.Name, &site.URL, &site.CheckInterval, &site.IsActive, &site.CreatedAt, &site.UpdatedAt); err != nil {
		return domain.Site{}, err
	}
	site.ID = domain.SiteID(id)
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()
	return site, nil
}

func collectSites(rows pgx.Rows) ([]domain.Site, error) {
	defer rows.Close()
	var out []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, r domain.CheckResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_results
		   (site_id, url, status, response_time_ms, status_code, error_message, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.SiteID), r.URL, string(r.Status), r.ResponseTimeMS, r.StatusCode, r.ErrorMessage, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Zero bounds are passed as NULL so the range stays open on that side.
const rangeFilter = `site_id = $1
   AND ($2::timestamptz IS NULL OR checked_at >= $2)
   AND ($3::timestamptz IS NULL OR checked_at <= $3)`

func (s *Store) Query(ctx context.Context, q repo.ResultQuery) ([]domain.CheckResult, error) {
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	var status any
	if q.Status != "" {
		status = string(q.Status)
	}
	rows, err := s.pool.Query(ctx, `
SELECT site_id, url, status, response_time_ms, status_code, error_message, checked_at
  FROM check_results
 WHERE `+rangeFilter+`
   AND ($4::text IS NULL OR status = $4)
 ORDER BY checked_at DESC, id DESC
 LIMIT $5 OFFSET $6`,
		string(q.SiteID), bound(q.Range.From), bound(q.Range.To), status, limit, max(q.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var (
			r      domain.CheckResult
			siteID string
			st     string
			code   *int32
		)
		if err := rows.Scan(&siteID, &r.URL, &st, &r.ResponseTimeMS, &code, &r.ErrorMessage, &r.Timestamp); err != nil {
			s.log.Warn("scan_result_failed", zap.String("site_id", string(q.SiteID)), zap.Error(err))
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.SiteID = domain.SiteID(siteID)
		r.Status = domain.Status(st)
		r.Timestamp = r.Timestamp.UTC()
		if code != nil {
			v := int(*code)
			r.StatusCode = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Aggregate reads totals and hourly buckets from one repeatable-read
// snapshot so both cover the same rows while appends continue.
func (s *Store) Aggregate(ctx context.Context, id domain.SiteID, rng repo.TimeRange) (repo.Aggregate, error) {
	var agg repo.Aggregate
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		agg, err = aggregateTx(ctx, tx, id, rng)
		return err
	})
	if err != nil {
		s.log.Warn("aggregate_failed", zap.String("site_id", string(id)), zap.Error(err))
		return repo.Aggregate{}, err
	}
	return agg, nil
}

func aggregateTx(ctx context.Context, tx pgx.Tx, id domain.SiteID, rng repo.TimeRange) (repo.Aggregate, error) {
	args := []any{string(id), bound(rng.From), bound(rng.To)}
	agg := repo.Aggregate{ByStatus: map[domain.Status]int64{}}

	var up, down int64
	err := tx.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE status = 'up'),
       count(*) FILTER (WHERE status = 'down'),
       COALESCE(min(response_time_ms), 0),
       COALESCE(max(response_time_ms), 0),
       COALESCE(avg(response_time_ms), 0)::float8
  FROM check_results
 WHERE `+rangeFilter, args...).Scan(&agg.Total, &up, &down, &agg.MinMS, &agg.MaxMS, &agg.AvgMS)
	if err != nil {
		return repo.Aggregate{}, fmt.Errorf("aggregate results: %w", err)
	}
	agg.ByStatus[domain.StatusUp] = up
	agg.ByStatus[domain.StatusDown] = down
	if agg.Total == 0 {
		return agg, nil
	}

	rows, err := tx.Query(ctx, `
SELECT date_trunc('hour', checked_at AT TIME ZONE 'UTC') AS hour,
       count(*),
       avg(response_time_ms)::float8,
       count(*) FILTER (WHERE status = 'up'),
       count(*) FILTER (WHERE status = 'down')
  FROM check_results
 WHERE `+rangeFilter+`
 GROUP BY hour
 ORDER BY hour`, args...)
	if err != nil {
		return repo.Aggregate{}, fmt.Errorf("aggregate hours: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h repo.HourAggregate
		if err := rows.Scan(&h.Start, &h.Count, &h.AvgMS, &up, &down); err != nil {
			return repo.Aggregate{}, fmt.Errorf("scan hour: %w", err)
		}
		h.Start = time.Date(h.Start.Year(), h.Start.Month(), h.Start.Day(), h.Start.Hour(), 0, 0, 0, time.UTC)
		h.ByStatus = map[domain.Status]int64{domain.StatusUp: up, domain.StatusDown: down}
		agg.Hours = append(agg.Hours, h)
	}
	if err := rows.Err(); err != nil {
		return repo.Aggregate{}, fmt.Errorf("aggregate hours: %w", err)
	}
	return agg, nil
}

func bound(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
