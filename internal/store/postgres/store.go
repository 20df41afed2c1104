// Package postgres provides the Postgres-backed Store implementation.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainboard/jobs-crawler/internal/ingest"
)

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// db is the pool surface the store uses; pgxmock satisfies it in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes canonical jobs and crawl logs into Postgres.
//
// Expected schema:
//
//	CREATE TABLE jobs (
//		id UUID PRIMARY KEY,
//		title TEXT NOT NULL,
//		company TEXT NOT NULL,
//		url TEXT NOT NULL UNIQUE,
//		location TEXT NOT NULL DEFAULT '',
//		employment_type TEXT NOT NULL DEFAULT '',
//		category TEXT NOT NULL DEFAULT '',
//		description TEXT NOT NULL DEFAULT '',
//		salary_min INT NOT NULL DEFAULT 0,
//		salary_max INT NOT NULL DEFAULT 0,
//		salary_currency TEXT NOT NULL DEFAULT '',
//		tags TEXT[] NOT NULL DEFAULT '{}',
//		source TEXT NOT NULL,
//		badges TEXT[] NOT NULL DEFAULT '{}',
//		backers TEXT[] NOT NULL DEFAULT '{}',
//		sector TEXT NOT NULL DEFAULT '',
//		office_location TEXT NOT NULL DEFAULT '',
//		has_token BOOLEAN NOT NULL DEFAULT FALSE,
//		stage TEXT NOT NULL DEFAULT '',
//		company_logo TEXT NOT NULL DEFAULT '',
//		company_website TEXT NOT NULL DEFAULT '',
//		is_active BOOLEAN NOT NULL DEFAULT TRUE,
//		posted_date TIMESTAMPTZ NOT NULL,
//		crawled_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL,
//		last_validated_at TIMESTAMPTZ
//	);
//
//	CREATE TABLE crawl_logs (
//		id BIGSERIAL PRIMARY KEY,
//		source TEXT NOT NULL,
//		domain TEXT NOT NULL,
//		kind TEXT NOT NULL,
//		message TEXT NOT NULL,
//		occurred_at TIMESTAMPTZ NOT NULL
//	);
type Store struct {
	pool db
}

// NewStore connects a pgx pool using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (tests).
func NewStoreWithPool(pool db) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const jobColumns = `id, title, company, url, location, employment_type, category, description,
salary_min, salary_max, salary_currency, tags, source, badges, backers, sector,
office_location, has_token, stage, company_logo, company_website, is_active,
posted_date, crawled_at, updated_at, last_validated_at`

const upsertQuery = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
        $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	employment_type = EXCLUDED.employment_type,
	category = EXCLUDED.category,
	description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE jobs.description END,
	salary_min = EXCLUDED.salary_min,
	salary_max = EXCLUDED.salary_max,
	salary_currency = EXCLUDED.salary_currency,
	tags = EXCLUDED.tags,
	source = EXCLUDED.source,
	has_token = EXCLUDED.has_token,
	stage = EXCLUDED.stage,
	company_logo = EXCLUDED.company_logo,
	company_website = EXCLUDED.company_website,
	is_active = EXCLUDED.is_active,
	crawled_at = EXCLUDED.crawled_at,
	updated_at = EXCLUDED.updated_at,
	last_validated_at = EXCLUDED.last_validated_at
RETURNING id, (xmax = 0) AS is_new`

// UpsertByURL inserts or updates the record keyed by URL in a single
// conditional statement. posted_date is written only on insert and the
// stored description survives an empty incoming one, so the preservation
// rules hold even under concurrent re-crawls.
func (s *Store) UpsertByURL(ctx context.Context, job ingest.CanonicalJob) (ingest.UpsertResult, error) {
	var result ingest.UpsertResult
	err := s.pool.QueryRow(ctx, upsertQuery,
		job.ID,
		job.Title,
		job.Company,
		job.URL,
		job.Location,
		job.EmploymentType,
		job.Category,
		job.Description,
		job.SalaryMin,
		job.SalaryMax,
		job.SalaryCurrency,
		job.Tags,
		job.Source,
		badgeStrings(job.Badges),
		job.Backers,
		job.Sector,
		job.OfficeLocation,
		job.HasToken,
		job.Stage,
		job.CompanyLogo,
		job.CompanyWebsite,
		job.IsActive,
		job.PostedDate,
		job.CrawledAt,
		job.UpdatedAt,
		job.LastValidatedAt,
	).Scan(&result.ID, &result.IsNew)
	if err != nil {
		return ingest.UpsertResult{}, fmt.Errorf("upsert job: %w", err)
	}
	return result, nil
}

// FindByURL loads the record stored under an exact URL.
func (s *Store) FindByURL(ctx context.Context, url string) (ingest.CanonicalJob, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE url = $1`, url)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return ingest.CanonicalJob{}, false, nil
	}
	if err != nil {
		return ingest.CanonicalJob{}, false, fmt.Errorf("find job by url: %w", err)
	}
	return job, true, nil
}

// likeEscaper makes LIKE metacharacters in a company name match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindActiveByCompany returns active records whose company contains the
// substring, case-insensitive.
func (s *Store) FindActiveByCompany(ctx context.Context, companySubstring string) ([]ingest.CanonicalJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE is_active AND company ILIKE '%' || $1 || '%'`,
		likeEscaper.Replace(companySubstring),
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs by company: %w", err)
	}
	defer rows.Close()

	var out []ingest.CanonicalJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}

// UpdateEnrichment writes derived fields for one record.
func (s *Store) UpdateEnrichment(
	ctx context.Context,
	id string,
	badges []ingest.Badge,
	backers []string,
	sector, officeLocation string,
) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET badges = $2, backers = $3, sector = $4, office_location = $5, updated_at = NOW() WHERE id = $1`,
		id, badgeStrings(badges), backers, sector, officeLocation,
	)
	if err != nil {
		return fmt.Errorf("update enrichment: %w", err)
	}
	return nil
}

// Deactivate marks one record inactive.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivate job: %w", err)
	}
	return nil
}

// AppendCrawlLog inserts one attributed fetch failure.
func (s *Store) AppendCrawlLog(ctx context.Context, entry ingest.CrawlLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_logs (source, domain, kind, message, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.Source, entry.Domain, entry.Kind, entry.Message, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append crawl log: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (ingest.CanonicalJob, error) {
	var (
		job    ingest.CanonicalJob
		badges []string
	)
	err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Company,
		&job.URL,
		&job.Location,
		&job.EmploymentType,
		&job.Category,
		&job.Description,
		&job.SalaryMin,
		&job.SalaryMax,
		&job.SalaryCurrency,
		&job.Tags,
		&job.Source,
		&badges,
		&job.Backers,
		&job.Sector,
		&job.OfficeLocation,
		&job.HasToken,
		&job.Stage,
		&job.CompanyLogo,
		&job.CompanyWebsite,
		&job.IsActive,
		&job.PostedDate,
		&job.CrawledAt,
		&job.UpdatedAt,
		&job.LastValidatedAt,
	)
	if err != nil {
		return ingest.CanonicalJob{}, err
	}
	job.Badges = make([]ingest.Badge, 0, len(badges))
	for _, b := range badges {
		job.Badges = append(job.Badges, ingest.Badge(b))
	}
	return job, nil
}

func badgeStrings(badges []ingest.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, string(b))
	}
	return out
}
