package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iago/review-radar-back/internal/domain"
)

const (
	defaultClassifier    = "external-sentiment-worker"
	fallbackNeutralScore = 0.5
)

// Client exposes the worker capabilities as typed calls.
type Client struct {
	runner Runner
}

func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// Scrape passes the product URL as the worker's last argument.
func (c *Client) Scrape(ctx context.Context, productURL string) (*domain.ScrapeResult, error) {
	var result domain.ScrapeResult
	if err := c.runner.Invoke(ctx, WorkerScrape, []string{productURL}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type classifyInput struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Stars float64 `json:"stars"`
}

type annotationPayload struct {
	Label string   `json:"sentiment_label"`
	Score *float64 `json:"sentiment_score"`
}

type analyzedPayload struct {
	AnalyzedReviews []annotationPayload `json:"analyzed_reviews"`
	Classifier      string              `json:"classifier"`
}

// Classify sends the review list as JSON and returns one annotation per
// review in input order. A worker answering with a different number of
// annotations than reviews is a protocol error.
func (c *Client) Classify(ctx context.Context, reviews []domain.Review) (*domain.SentimentResult, error) {
	input := make([]classifyInput, 0, len(reviews))
	for _, review := range reviews {
		input = append(input, classifyInput{ID: review.ID, Text: review.Text, Stars: review.Stars})
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode reviews for classification: %w", err)
	}

	var raw json.RawMessage
	if err := c.runner.Invoke(ctx, WorkerSentiment, []string{string(payload)}, &raw); err != nil {
		return nil, err
	}

	annotations, classifier, err := decodeAnnotations(raw)
	if err != nil {
		return nil, &domain.WorkerProtocolError{Worker: string(WorkerSentiment), Err: err}
	}
	if len(annotations) != len(reviews) {
		return nil, &domain.WorkerProtocolError{
			Worker: string(WorkerSentiment),
			Err:    fmt.Errorf("got %d annotations for %d reviews", len(annotations), len(reviews)),
		}
	}

	result := &domain.SentimentResult{
		Annotations: make([]domain.SentimentAnnotation, len(reviews)),
		Classifier:  classifier,
	}
	for i := range reviews {
		annotation := domain.SentimentAnnotation{
			Label: domain.NormalizeSentimentLabel(annotations[i].Label),
			Score: fallbackNeutralScore,
		}
		if annotations[i].Score != nil {
			annotation.Score = *annotations[i].Score
		}
		result.Annotations[i] = annotation
	}
	return result, nil
}

func decodeAnnotations(raw json.RawMessage) ([]annotationPayload, string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		var annotations []annotationPayload
		if err := json.Unmarshal(trimmed, &annotations); err != nil {
			return nil, "", fmt.Errorf("decode annotations: %w", err)
		}
		return annotations, defaultClassifier, nil
	case bytes.HasPrefix(trimmed, []byte("{")):
		var analyzed analyzedPayload
		if err := json.Unmarshal(trimmed, &analyzed); err != nil {
			return nil, "", fmt.Errorf("decode analyzed reviews: %w", err)
		}
		if analyzed.AnalyzedReviews == nil {
			return nil, "", errors.New("expected an annotation array or analyzed_reviews")
		}
		classifier := analyzed.Classifier
		if classifier == "" {
			classifier = defaultClassifier
		}
		return analyzed.AnalyzedReviews, classifier, nil
	default:
		return nil, "", errors.New("expected an annotation array or analyzed_reviews")
	}
}
