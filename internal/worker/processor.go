package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iago/review-radar-back/internal/analysis"
	"github.com/iago/review-radar-back/internal/artifact"
	"github.com/iago/review-radar-back/internal/domain"
	"github.com/iago/review-radar-back/internal/repository"
	"go.uber.org/zap"
)

const (
	NoteQueued      = "queued for analysis"
	NoteScraping    = "scraping product reviews"
	NoteClassifying = "classifying sentiment"
	NoteAggregating = "aggregating insights"
	NoteCompleted   = "analysis completed"

	finalizeTimeout       = 10 * time.Second
	defaultArchiveTimeout = 30 * time.Second
)

var errNoReviews = errors.New("no reviews found")

type Scraper interface {
	Scrape(ctx context.Context, productURL string) (*domain.ScrapeResult, error)
}

type Classifier interface {
	Classify(ctx context.Context, reviews []domain.Review) (*domain.SentimentResult, error)
}

// Processor runs the analysis stages for one job and owns every status write
// for it once dispatched.
type Processor struct {
	repo       repository.JobsRepository
	scraper    Scraper
	classifier Classifier
	archive    artifact.Archive
	logger     *zap.Logger
	now        func() time.Time

	archiveTimeout time.Duration
}

func NewProcessor(
	repo repository.JobsRepository,
	scraper Scraper,
	classifier Classifier,
	archive artifact.Archive,
	logger *zap.Logger,
) *Processor {
	if archive == nil {
		archive = artifact.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		repo:       repo,
		scraper:    scraper,
		classifier: classifier,
		archive:    archive,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },

		archiveTimeout: defaultArchiveTimeout,
	}
}

// Run executes scrape, classify and aggregate in order. Whatever happens,
// including a panic, the job ends completed or failed; the returned error is
// only informational for the caller.
func (p *Processor) Run(ctx context.Context, jobID, productURL string) (err error) {
	logger := p.logger.With(zap.String("analysis_id", jobID))
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pipeline panic: %v", recovered)
			logger.Error("pipeline panicked", zap.Any("panic", recovered), zap.Stack("stack"))
		}
		if err != nil {
			p.fail(ctx, logger, jobID, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline not started: %w", err)
	}

	if err := p.advance(ctx, jobID, NoteScraping); err != nil {
		return err
	}

	started := p.now()
	scraped, err := p.scraper.Scrape(ctx, productURL)
	if err != nil {
		return fmt.Errorf("scraping failed: %w", err)
	}
	if !scraped.Success {
		reason := strings.TrimSpace(scraped.Error)
		if reason == "" {
			reason = "scraper reported failure"
		}
		return fmt.Errorf("scraping failed: %s", reason)
	}
	if len(scraped.Reviews) == 0 {
		return fmt.Errorf("scraping failed: %w", errNoReviews)
	}
	scrapedAt := p.now()
	p.archiveStage(ctx, logger, jobID, "scrape", scraped)
	logger.Info("scrape finished",
		zap.Int("reviews", len(scraped.Reviews)),
		zap.Int("pages", scraped.PagesScanned),
	)

	if err := p.advance(ctx, jobID, NoteClassifying); err != nil {
		return err
	}
	sentiment, err := p.classifier.Classify(ctx, scraped.Reviews)
	if err != nil {
		return fmt.Errorf("sentiment analysis failed: %w", err)
	}

	if err := p.advance(ctx, jobID, NoteAggregating); err != nil {
		return err
	}
	result := analysis.Build(analysis.Input{
		SourceURL: productURL,
		Scrape:    scraped,
		Sentiment: sentiment,
		ScrapedAt: scrapedAt,
		Elapsed:   scrapedAt.Sub(started),
	})

	if err := p.repo.UpdateJob(ctx, jobID, domain.JobUpdate{
		Status:    domain.JobStatusCompleted,
		StageNote: NoteCompleted,
		Result:    result,
		At:        p.now(),
	}); err != nil {
		return &domain.PersistenceError{Op: "store result", Err: err}
	}

	logger.Info("analysis completed",
		zap.String("product", result.Product.Name),
		zap.Float64("positive_pct", result.SentimentSummary.Positive.Percentage),
	)
	return nil
}

func (p *Processor) advance(ctx context.Context, jobID, note string) error {
	err := p.repo.UpdateJob(ctx, jobID, domain.JobUpdate{
		Status:    domain.JobStatusProcessing,
		StageNote: note,
		At:        p.now(),
	})
	if err != nil {
		return &domain.PersistenceError{Op: "mark " + note, Err: err}
	}
	return nil
}

// fail records the terminal failure. It uses a context detached from ctx so a
// cancelled run can still be written down.
func (p *Processor) fail(ctx context.Context, logger *zap.Logger, jobID string, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	logger.Warn("analysis failed", zap.Error(cause))
	err := p.repo.UpdateJob(writeCtx, jobID, domain.JobUpdate{
		Status:    domain.JobStatusFailed,
		StageNote: "Error: " + cause.Error(),
		At:        p.now(),
	})
	if err != nil {
		logger.Error("failed to record analysis failure",
			zap.Error(&domain.PersistenceError{Op: "mark failed", Err: err}),
			zap.NamedError("cause", cause),
		)
	}
}

// archiveStage keeps the unredacted worker output; only the stored sample
// reviews are redacted. The upload is bounded by archiveTimeout.
func (p *Processor) archiveStage(ctx context.Context, logger *zap.Logger, jobID, stage string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("encode stage output for archive", zap.String("stage", stage), zap.Error(err))
		return
	}
	putCtx, cancel := context.WithTimeout(ctx, p.archiveTimeout)
	defer cancel()
	key, err := p.archive.Put(putCtx, jobID, stage, body)
	if err != nil {
		logger.Warn("archive stage output", zap.String("stage", stage), zap.Error(err))
		return
	}
	logger.Debug("stage output archived", zap.String("stage", stage), zap.String("key", key))
}
