package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iago/review-radar-back/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runJobsRepositoryContract exercises the behavior every JobsRepository
// implementation must share.
func runJobsRepositoryContract(t *testing.T, newRepo func(t *testing.T) JobsRepository) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		job := newPendingJob(time.Now().UTC())

		require.NoError(t, repo.CreateJob(ctx, job))

		loaded, err := repo.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, loaded.ID)
		assert.Equal(t, job.SourceURL, loaded.SourceURL)
		assert.Equal(t, domain.JobStatusPending, loaded.Status)
		assert.Nil(t, loaded.Result)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		job := newPendingJob(time.Now().UTC())

		require.NoError(t, repo.CreateJob(ctx, job))
		assert.ErrorIs(t, repo.CreateJob(ctx, job), ErrDuplicateID)
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetJob(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.GetJobStatus(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
		err = repo.UpdateJob(ctx, "does-not-exist", domain.JobUpdate{
			Status: domain.JobStatusProcessing,
			At:     time.Now().UTC(),
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("forward transitions and terminal lock", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()
		job := newPendingJob(now)
		require.NoError(t, repo.CreateJob(ctx, job))

		require.NoError(t, repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusProcessing, StageNote: "scraping product reviews", At: now.Add(time.Second),
		}))
		require.NoError(t, repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusProcessing, StageNote: "classifying sentiment", At: now.Add(2 * time.Second),
		}))

		status, err := repo.GetJobStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, status.Status)
		assert.Equal(t, "classifying sentiment", status.StageNote)

		result := sampleResult("Widget")
		require.NoError(t, repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusCompleted, StageNote: "analysis completed", Result: result, At: now.Add(3 * time.Second),
		}))

		err = repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusFailed, StageNote: "late failure", At: now.Add(4 * time.Second),
		})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		loaded, err := repo.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, loaded.Status)
		assert.Equal(t, "analysis completed", loaded.StageNote)
		require.NotNil(t, loaded.Result)
		assert.Equal(t, "Widget", loaded.Result.Product.Name)
		assert.Equal(t, result.SentimentSummary, loaded.Result.SentimentSummary)
	})

	t.Run("pending cannot complete directly", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		job := newPendingJob(time.Now().UTC())
		require.NoError(t, repo.CreateJob(ctx, job))

		err := repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusCompleted, Result: sampleResult("x"), At: time.Now().UTC(),
		})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("result only with completed", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		job := newPendingJob(time.Now().UTC())
		require.NoError(t, repo.CreateJob(ctx, job))

		err := repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusProcessing, Result: sampleResult("x"), At: time.Now().UTC(),
		})
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("list recent newest first and bounded", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Millisecond)

		ids := make([]string, 0, 15)
		for i := 0; i < 15; i++ {
			job := newPendingJob(base.Add(time.Duration(i) * time.Second))
			require.NoError(t, repo.CreateJob(ctx, job))
			ids = append(ids, job.ID)
		}

		items, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, items, 10)
		for i, item := range items {
			assert.Equal(t, ids[14-i], item.ID, "position %d", i)
		}
	})

	t.Run("list recent carries completed summary", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()
		job := newPendingJob(now)
		require.NoError(t, repo.CreateJob(ctx, job))
		require.NoError(t, repo.UpdateJob(ctx, job.ID, domain.JobUpdate{Status: domain.JobStatusProcessing, At: now}))
		require.NoError(t, repo.UpdateJob(ctx, job.ID, domain.JobUpdate{
			Status: domain.JobStatusCompleted, Result: sampleResult("Headphones"), At: now,
		}))

		items, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, items)
		assert.Equal(t, "Headphones", items[0].ProductName)
		require.NotNil(t, items[0].SentimentSummary)
		assert.Equal(t, 3, items[0].SentimentSummary.Positive.Count)
	})

	t.Run("fail unfinished leaves terminal jobs alone", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()

		pending := newPendingJob(now)
		processing := newPendingJob(now.Add(time.Second))
		done := newPendingJob(now.Add(2 * time.Second))
		for _, job := range []*domain.AnalysisJob{pending, processing, done} {
			require.NoError(t, repo.CreateJob(ctx, job))
		}
		require.NoError(t, repo.UpdateJob(ctx, processing.ID, domain.JobUpdate{Status: domain.JobStatusProcessing, At: now}))
		require.NoError(t, repo.UpdateJob(ctx, done.ID, domain.JobUpdate{Status: domain.JobStatusProcessing, At: now}))
		require.NoError(t, repo.UpdateJob(ctx, done.ID, domain.JobUpdate{
			Status: domain.JobStatusCompleted, Result: sampleResult("y"), At: now,
		}))

		count, err := repo.FailUnfinished(ctx, "Error: interrupted by service restart", now.Add(time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 2)

		for _, id := range []string{pending.ID, processing.ID} {
			status, err := repo.GetJobStatus(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusFailed, status.Status)
			assert.Contains(t, status.StageNote, "interrupted")
		}
		status, err := repo.GetJobStatus(ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, status.Status)
	})
}

func newPendingJob(createdAt time.Time) *domain.AnalysisJob {
	id := uuid.NewString()
	return &domain.AnalysisJob{
		ID:        id,
		SourceURL: fmt.Sprintf("https://example.com/p/%s", id[:8]),
		Status:    domain.JobStatusPending,
		StageNote: "queued for analysis",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func sampleResult(name string) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Product: domain.Product{Name: name, URL: "https://example.com/p/1", TotalReviewsCount: 5},
		SentimentSummary: domain.SentimentSummary{
			Positive: domain.SentimentBucket{Count: 3, Percentage: 60},
			Neutral:  domain.SentimentBucket{Count: 1, Percentage: 20},
			Negative: domain.SentimentBucket{Count: 1, Percentage: 20},
		},
		RatingDistribution: []domain.RatingBucket{{Stars: 5, Count: 3, Percentage: 60}},
		Attributes:         []domain.AttributeScore{},
		SampleReviews:      []domain.AnnotatedReview{},
		AreasImprovement:   []domain.ImprovementArea{},
		DashboardHints:     domain.DashboardHints{RecommendedActions: []string{}},
	}
}
