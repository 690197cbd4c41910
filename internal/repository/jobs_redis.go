package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisJobsRepository stores each analysis as a hash and keeps a sorted set
// scored by creation time for the recent listing.
type RedisJobsRepository struct {
	client *redis.Client
	prefix string
}

const (
	fieldID          = "id"
	fieldURL         = "url"
	fieldStatus      = "status"
	fieldNotes       = "notes"
	fieldResult      = "result"
	fieldProductName = "product_name"
	fieldSentiment   = "sentiment_summary"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

func NewRedisJobsRepository(ctx context.Context, cfg RedisConfig) (*RedisJobsRepository, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "reviewradar:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisJobsRepository{client: client, prefix: cfg.KeyPrefix}, nil
}

func (r *RedisJobsRepository) Close() error {
	return r.client.Close()
}

func (r *RedisJobsRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisJobsRepository) jobKey(jobID string) string {
	return r.prefix + "analysis:" + jobID
}

func (r *RedisJobsRepository) indexKey() string {
	return r.prefix + "analyses:by_created_at"
}

func (r *RedisJobsRepository) CreateJob(ctx context.Context, job *domain.AnalysisJob) error {
	key := r.jobKey(job.ID)
	fields := map[string]any{
		fieldID:        job.ID,
		fieldURL:       job.SourceURL,
		fieldStatus:    string(job.Status),
		fieldNotes:     job.StageNote,
		fieldCreatedAt: job.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicateID
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{
				Score:  float64(job.CreatedAt.UnixMicro()),
				Member: job.ID,
			})
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return err
		}
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

func (r *RedisJobsRepository) UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	fields := map[string]any{
		fieldStatus:    string(update.Status),
		fieldNotes:     update.StageNote,
		fieldUpdatedAt: update.At.UTC().Format(time.RFC3339Nano),
	}
	if update.Result != nil {
		encoded, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("encode analysis result: %w", err)
		}
		sentiment, err := json.Marshal(update.Result.SentimentSummary)
		if err != nil {
			return fmt.Errorf("encode sentiment summary: %w", err)
		}
		fields[fieldResult] = encoded
		fields[fieldProductName] = update.Result.Product.Name
		fields[fieldSentiment] = sentiment
	}

	key := r.jobKey(jobID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldStatus).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		if !domain.JobStatus(current).CanTransitionTo(update.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, update.Status)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("update analysis: %w", err)
	}
	return nil
}

func (r *RedisJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	values, err := r.client.HGetAll(ctx, r.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	job := &domain.AnalysisJob{
		ID:        values[fieldID],
		SourceURL: values[fieldURL],
		Status:    domain.JobStatus(values[fieldStatus]),
		StageNote: values[fieldNotes],
	}
	if job.CreatedAt, err = parseRedisTime(values[fieldCreatedAt]); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseRedisTime(values[fieldUpdatedAt]); err != nil {
		return nil, err
	}
	if raw := values[fieldResult]; raw != "" {
		job.Result = &domain.AnalysisResult{}
		if err := json.Unmarshal([]byte(raw), job.Result); err != nil {
			return nil, fmt.Errorf("decode analysis result: %w", err)
		}
	}
	return job, nil
}

func (r *RedisJobsRepository) GetJobStatus(ctx context.Context, jobID string) (*domain.JobStatusView, error) {
	values, err := r.client.HMGet(ctx, r.jobKey(jobID),
		fieldID, fieldStatus, fieldNotes, fieldCreatedAt, fieldUpdatedAt,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("load analysis status: %w", err)
	}
	if values[0] == nil {
		return nil, ErrNotFound
	}

	view := &domain.JobStatusView{
		ID:        stringValue(values[0]),
		Status:    domain.JobStatus(stringValue(values[1])),
		StageNote: stringValue(values[2]),
	}
	if view.CreatedAt, err = parseRedisTime(stringValue(values[3])); err != nil {
		return nil, err
	}
	if view.UpdatedAt, err = parseRedisTime(stringValue(values[4])); err != nil {
		return nil, err
	}
	return view, nil
}

func (r *RedisJobsRepository) ListRecent(ctx context.Context, limit int) ([]domain.JobSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	commands := make([]*redis.SliceCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			commands[i] = pipe.HMGet(ctx, r.jobKey(id),
				fieldID, fieldURL, fieldStatus, fieldCreatedAt, fieldProductName, fieldSentiment,
			)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}

	items := make([]domain.JobSummary, 0, len(ids))
	for _, command := range commands {
		values := command.Val()
		if len(values) == 0 || values[0] == nil {
			continue
		}
		item := domain.JobSummary{
			ID:          stringValue(values[0]),
			SourceURL:   stringValue(values[1]),
			Status:      domain.JobStatus(stringValue(values[2])),
			ProductName: stringValue(values[4]),
		}
		if item.CreatedAt, err = parseRedisTime(stringValue(values[3])); err != nil {
			return nil, err
		}
		if raw := stringValue(values[5]); raw != "" {
			item.SentimentSummary = &domain.SentimentSummary{}
			if err := json.Unmarshal([]byte(raw), item.SentimentSummary); err != nil {
				return nil, fmt.Errorf("decode sentiment summary: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *RedisJobsRepository) FailUnfinished(ctx context.Context, note string, at time.Time) (int, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list analyses: %w", err)
	}

	update := domain.JobUpdate{Status: domain.JobStatusFailed, StageNote: note, At: at}
	count := 0
	for _, id := range ids {
		err := r.UpdateJob(ctx, id, update)
		switch {
		case err == nil:
			count++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
		default:
			return count, err
		}
	}
	return count, nil
}

func parseRedisTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return parsed.UTC(), nil
}

func stringValue(value any) string {
	text, _ := value.(string)
	return text
}
