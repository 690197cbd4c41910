package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	status     TEXT NOT NULL,
	notes      TEXT NOT NULL DEFAULT '',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at DESC, id DESC);
`

const pgUniqueViolation = "23505"

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(ctx context.Context, databaseURL string) (*PostgresJobsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure pg schema: %w", err)
	}
	return &PostgresJobsRepository{pool: pool}, nil
}

func (r *PostgresJobsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresJobsRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.AnalysisJob) error {
	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analyses (id, url, status, notes, result, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		job.ID,
		job.SourceURL,
		string(job.Status),
		job.StageNote,
		result,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	result, err := encodeResult(update.Result)
	if err != nil {
		return err
	}

	command, err := r.pool.Exec(ctx, `
		UPDATE analyses
		SET status = $2,
			notes = $3,
			result = COALESCE($4::jsonb, result),
			updated_at = $5
		WHERE id = $1 AND status = ANY($6::text[])
	`, jobID, string(update.Status), update.StageNote, result, update.At, statusStrings(update.Status.Predecessors()))
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if command.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1`, jobID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("query analysis status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, update.Status)
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	var (
		job    domain.AnalysisJob
		status string
		result []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, url, status, notes, result, created_at, updated_at
		FROM analyses
		WHERE id = $1
	`, jobID).Scan(
		&job.ID,
		&job.SourceURL,
		&status,
		&job.StageNote,
		&result,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query analysis: %w", err)
	}

	job.Status = domain.JobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	if len(result) > 0 {
		job.Result = &domain.AnalysisResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("decode analysis result: %w", err)
		}
	}
	return &job, nil
}

func (r *PostgresJobsRepository) GetJobStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error) {
	var (
		view   domain.JobStatusView
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, status, notes, created_at, updated_at
		FROM analyses
		WHERE id = $1
	`, jobID).Scan(&view.ID, &status, &view.StageNote, &view.CreatedAt, &view.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query analysis status: %w", err)
	}
	view.Status = domain.JobStatus(status)
	view.CreatedAt = view.CreatedAt.UTC()
	view.UpdatedAt = view.UpdatedAt.UTC()
	return &view, nil
}

func (r *PostgresJobsRepository) ListRecent(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, url, status, created_at, result->'product'->>'name', result->'sentiment_summary'
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	items := make([]domain.JobSummary, 0, limit)
	for rows.Next() {
		var (
			item        domain.JobSummary
			status      string
			productName *string
			sentiment   []byte
		)
		if err := rows.Scan(&item.ID, &item.SourceURL, &status, &item.CreatedAt, &productName, &sentiment); err != nil {
			return nil, fmt.Errorf("scan analysis summary: %w", err)
		}
		item.Status = domain.JobStatus(status)
		item.CreatedAt = item.CreatedAt.UTC()
		if productName != nil {
			item.ProductName = *productName
		}
		if len(sentiment) > 0 {
			item.SentimentSummary = &domain.SentimentSummary{}
			if err := json.Unmarshal(sentiment, item.SentimentSummary); err != nil {
				return nil, fmt.Errorf("decode sentiment summary: %w", err)
			}
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate analyses: %w", rows.Err())
	}
	return items, nil
}

func (r *PostgresJobsRepository) FailUnfinished(ctx context.Context, note string, at time.Time) (int, error) {
	command, err := r.pool.Exec(ctx, `
		UPDATE analyses
		SET status = $1, notes = $2, updated_at = $3
		WHERE status = ANY($4::text[])
	`, string(domain.JobStatusFailed), note, at, statusStrings(domain.JobStatusFailed.Predecessors()))
	if err != nil {
		return 0, fmt.Errorf("fail unfinished analyses: %w", err)
	}
	return int(command.RowsAffected()), nil
}

func encodeResult(result *domain.AnalysisResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode analysis result: %w", err)
	}
	return encoded, nil
}

func statusStrings(statuses []domain.JobStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
