package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
	"github.com/iago/review-radar-back/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	result *domain.ScrapeResult
	err    error
	panics bool
	calls  int
}

func (f *fakeScraper) Scrape(_ context.Context, _ string) (*domain.ScrapeResult, error) {
	f.calls++
	if f.panics {
		panic("scraper exploded")
	}
	return f.result, f.err
}

type fakeClassifier struct {
	err   error
	calls int
}

func (f *fakeClassifier) Classify(_ context.Context, reviews []domain.Review) (*domain.SentimentResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	annotations := make([]domain.SentimentAnnotation, 0, len(reviews))
	for _, review := range reviews {
		label := domain.SentimentNeutral
		if review.Stars >= 4 {
			label = domain.SentimentPositive
		} else if review.Stars <= 2 {
			label = domain.SentimentNegative
		}
		annotations = append(annotations, domain.SentimentAnnotation{Label: label, Score: 0.9})
	}
	return &domain.SentimentResult{Annotations: annotations, Classifier: "fake"}, nil
}

type recordingArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *recordingArchive) Put(_ context.Context, jobID, stage string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	key := jobID + "/" + stage
	a.keys = append(a.keys, key)
	return key, nil
}

func successfulScrape() *domain.ScrapeResult {
	return &domain.ScrapeResult{
		Success: true,
		Product: domain.ScrapedProduct{Name: "Headphones"},
		Reviews: []domain.Review{
			{ID: "1", Stars: 5, Text: "great sound quality"},
			{ID: "2", Stars: 1, Text: "battery died after a week"},
		},
		PagesScanned: 1,
	}
}

func seedJob(t *testing.T, repo repository.JobsRepository, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.CreateJob(context.Background(), &domain.AnalysisJob{
		ID:        id,
		SourceURL: "https://shop.example.com/item/1",
		Status:    domain.JobStatusPending,
		StageNote: NoteQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestProcessorCompletesJob(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	archive := &recordingArchive{}
	processor := NewProcessor(repo, &fakeScraper{result: successfulScrape()}, &fakeClassifier{}, archive, nil)

	require.NoError(t, processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1"))

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, NoteCompleted, job.StageNote)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Headphones", job.Result.Product.Name)
	assert.Equal(t, 1, job.Result.SentimentSummary.Positive.Count)
	assert.Equal(t, "fake", job.Result.SentimentSummary.Classifier)
	assert.Equal(t, []string{"job-1/scrape"}, archive.keys)
}

func TestProcessorScraperReportsFailure(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	classifier := &fakeClassifier{}
	scraper := &fakeScraper{result: &domain.ScrapeResult{Success: false, Error: "blocked"}}
	processor := NewProcessor(repo, scraper, classifier, nil, nil)

	require.Error(t, processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1"))

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "Error: scraping failed: blocked", job.StageNote)
	assert.Nil(t, job.Result)
	assert.Zero(t, classifier.calls)
}

func TestProcessorNoReviewsFails(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	processor := NewProcessor(repo, &fakeScraper{result: &domain.ScrapeResult{Success: true}}, &fakeClassifier{}, nil, nil)

	require.Error(t, processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1"))

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Error: scraping failed: no reviews found", job.StageNote)
}

func TestProcessorWorkerErrorFails(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	workerErr := &domain.WorkerExecutionError{Worker: "sentiment", ExitCode: 2, Err: errors.New("exit status 2")}
	processor := NewProcessor(repo, &fakeScraper{result: successfulScrape()}, &fakeClassifier{err: workerErr}, nil, nil)

	err := processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1")
	var execErr *domain.WorkerExecutionError
	require.ErrorAs(t, err, &execErr)

	job, getErr := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.True(t, strings.HasPrefix(job.StageNote, "Error: sentiment analysis failed: sentiment worker failed"))
}

func TestProcessorRecoversFromPanic(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	processor := NewProcessor(repo, &fakeScraper{panics: true}, &fakeClassifier{}, nil, nil)

	err := processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1")
	require.Error(t, err)

	job, getErr := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "Error: pipeline panic: scraper exploded", job.StageNote)
}

func TestProcessorCancelledBeforeStartFailsPendingJob(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	scraper := &fakeScraper{result: successfulScrape()}
	processor := NewProcessor(repo, scraper, &fakeClassifier{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, processor.Run(ctx, "job-1", "https://shop.example.com/item/1"), context.Canceled)

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.StageNote, "context canceled")
	assert.Zero(t, scraper.calls)
}

func TestProcessorArchiveErrorDoesNotFailJob(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	archive := &recordingArchive{err: errors.New("bucket unavailable")}
	processor := NewProcessor(repo, &fakeScraper{result: successfulScrape()}, &fakeClassifier{}, archive, nil)

	require.NoError(t, processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1"))

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

type hangingArchive struct{}

func (hangingArchive) Put(ctx context.Context, _, _ string, _ []byte) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestProcessorBoundsArchiveUpload(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	seedJob(t, repo, "job-1")
	processor := NewProcessor(repo, &fakeScraper{result: successfulScrape()}, &fakeClassifier{}, hangingArchive{}, nil)
	processor.archiveTimeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- processor.Run(context.Background(), "job-1", "https://shop.example.com/item/1")
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline stayed blocked on the archive upload")
	}

	job, err := repo.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestProcessorUnknownJobIsPersistenceError(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	processor := NewProcessor(repo, &fakeScraper{result: successfulScrape()}, &fakeClassifier{}, nil, nil)

	err := processor.Run(context.Background(), "missing", "https://shop.example.com/item/1")
	var persistErr *domain.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
