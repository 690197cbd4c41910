package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerDefinition describes how to launch one external worker process.
type WorkerDefinition struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
	// Stdin sends the payload on standard input instead of the last argument.
	Stdin bool `yaml:"stdin"`
}

type WorkersConfig struct {
	Scrape    WorkerDefinition `yaml:"scrape"`
	Sentiment WorkerDefinition `yaml:"sentiment"`
}

const (
	defaultScrapeTimeout    = 5 * time.Minute
	defaultSentimentTimeout = 3 * time.Minute
)

// DefaultWorkers runs the bundled python scripts with the configured interpreter.
func DefaultWorkers(cfg Config) WorkersConfig {
	return WorkersConfig{
		Scrape: WorkerDefinition{
			Command: cfg.PythonBin,
			Args:    []string{"-u", filepath.Join(cfg.WorkerScriptsDir, "scraper.py")},
			Timeout: defaultScrapeTimeout,
		},
		Sentiment: WorkerDefinition{
			Command: cfg.PythonBin,
			Args:    []string{"-u", filepath.Join(cfg.WorkerScriptsDir, "sentiment_analyzer.py")},
			Timeout: defaultSentimentTimeout,
		},
	}
}

// LoadWorkers reads the worker registry file. A missing file yields the
// defaults; fields left empty in the file inherit them.
func LoadWorkers(path string, cfg Config) (WorkersConfig, error) {
	defaults := DefaultWorkers(cfg)
	if path == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults, nil
		}
		return WorkersConfig{}, fmt.Errorf("read workers config: %w", err)
	}

	var loaded WorkersConfig
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&loaded); err != nil {
		return WorkersConfig{}, fmt.Errorf("decode workers config %s: %w", path, err)
	}

	loaded.Scrape = mergeWorker(loaded.Scrape, defaults.Scrape)
	loaded.Sentiment = mergeWorker(loaded.Sentiment, defaults.Sentiment)
	return loaded, nil
}

func mergeWorker(value, fallback WorkerDefinition) WorkerDefinition {
	if value.Command == "" {
		value.Command = fallback.Command
		if len(value.Args) == 0 {
			value.Args = fallback.Args
		}
	}
	if value.Timeout <= 0 {
		value.Timeout = fallback.Timeout
	}
	return value
}
