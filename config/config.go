// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads worker settings from defaults, .env files and the
// environment, resolving "ssm:" references against AWS Parameter Store.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/studyplanner/ai"
	"github.com/poiesic/studyplanner/retry"
	"github.com/poiesic/studyplanner/vectorindex"
)

// Vector index backends.
const (
	VectorQdrant = "qdrant"
	VectorLocal  = "local"
)

// Blob store backends.
const (
	BlobFS  = "fs"
	BlobGCS = "gcs"
)

// Config holds every setting of the worker process.
type Config struct {
	DataDir  string
	InMemory bool
	LogLevel string

	Workers     int
	RetryUnit   time.Duration
	MaxAttempts int

	AI *ai.Config

	VectorBackend  string
	QdrantURL      string
	QdrantAPIKey   string
	Collection     string
	VectorSize     uint64
	DistanceMetric string
	VectorTimeout  time.Duration

	ContextTTL   time.Duration
	HistoryLimit int

	BlobBackend string
	BlobRoot    string
	BlobBucket  string
	BlobTimeout time.Duration

	ChunkSize    int
	ChunkOverlap int

	TutorLanguage string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:        "./data",
		LogLevel:       "info",
		Workers:        max(runtime.NumCPU(), 1),
		RetryUnit:      time.Second,
		MaxAttempts:    3,
		AI:             ai.DefaultConfig(),
		VectorBackend:  VectorQdrant,
		Collection:     "study_materials",
		VectorSize:     1536,
		DistanceMetric: string(vectorindex.Cosine),
		VectorTimeout:  60 * time.Second,
		ContextTTL:     time.Hour,
		HistoryLimit:   5,
		BlobBackend:    BlobFS,
		BlobRoot:       "./media",
		BlobTimeout:    60 * time.Second,
		ChunkSize:      1000,
		ChunkOverlap:   150,
		TutorLanguage:  ai.DefaultLanguage,
	}
}

// setting binds one environment variable to a field.
type setting struct {
	env string
	set func(c *Config, v string) error
}

func str(f func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*f(c) = v
		return nil
	}
}

func integer(f func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

func duration(f func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*f(c) = d
		return nil
	}
}

var settings = []setting{
	{"STUDY_DATA_DIR", str(func(c *Config) *string { return &c.DataDir })},
	{"STUDY_IN_MEMORY", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.InMemory = b
		return err
	}},
	{"STUDY_LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"STUDY_WORKERS", integer(func(c *Config) *int { return &c.Workers })},
	{"STUDY_RETRY_UNIT", duration(func(c *Config) *time.Duration { return &c.RetryUnit })},
	{"STUDY_MAX_ATTEMPTS", integer(func(c *Config) *int { return &c.MaxAttempts })},

	{"STUDY_AI_PROVIDER", str(func(c *Config) *string { return &c.AI.DefaultProvider })},
	{"STUDY_AI_TEMPERATURE", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.AI.Temperature = f
		return err
	}},
	{"STUDY_AI_MAX_TOKENS", integer(func(c *Config) *int { return &c.AI.MaxTokens })},
	{"STUDY_AI_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.AI.Timeout })},
	{"DEEPSEEK_API_KEY", str(func(c *Config) *string { return &c.AI.DeepSeekAPIKey })},
	{"OPENAI_API_KEY", str(func(c *Config) *string { return &c.AI.OpenAIAPIKey })},
	{"GEMINI_API_KEY", str(func(c *Config) *string { return &c.AI.GeminiAPIKey })},
	{"STUDY_OPENAI_HOST", str(func(c *Config) *string { return &c.AI.OpenAIHost })},
	{"STUDY_OPENAI_MODEL", str(func(c *Config) *string { return &c.AI.OpenAIModel })},
	{"STUDY_GEMINI_MODEL", str(func(c *Config) *string { return &c.AI.GeminiModel })},
	{"STUDY_VERTEX_PROJECT", str(func(c *Config) *string { return &c.AI.VertexProject })},
	{"STUDY_VERTEX_REGION", str(func(c *Config) *string { return &c.AI.VertexRegion })},
	{"STUDY_VERTEX_MODEL", str(func(c *Config) *string { return &c.AI.VertexModel })},
	{"STUDY_EMBEDDING_HOST", str(func(c *Config) *string { return &c.AI.EmbeddingHost })},
	{"STUDY_EMBEDDING_MODEL", str(func(c *Config) *string { return &c.AI.EmbeddingModel })},
	{"STUDY_EMBEDDING_API_KEY", str(func(c *Config) *string { return &c.AI.EmbeddingAPIKey })},
	{"STUDY_EMBEDDING_BATCH", integer(func(c *Config) *int { return &c.AI.EmbeddingBatchSize })},

	{"STUDY_VECTOR_BACKEND", str(func(c *Config) *string { return &c.VectorBackend })},
	{"QDRANT_URL", str(func(c *Config) *string { return &c.QdrantURL })},
	{"QDRANT_API_KEY", str(func(c *Config) *string { return &c.QdrantAPIKey })},
	{"QDRANT_COLLECTION_NAME", str(func(c *Config) *string { return &c.Collection })},
	{"QDRANT_VECTOR_SIZE", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		c.VectorSize = n
		return err
	}},
	{"QDRANT_DISTANCE_METRIC", str(func(c *Config) *string { return &c.DistanceMetric })},
	{"STUDY_VECTOR_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.VectorTimeout })},

	{"STUDY_CONTEXT_TTL", duration(func(c *Config) *time.Duration { return &c.ContextTTL })},
	{"STUDY_HISTORY_LIMIT", integer(func(c *Config) *int { return &c.HistoryLimit })},

	{"STUDY_BLOB_BACKEND", str(func(c *Config) *string { return &c.BlobBackend })},
	{"STUDY_BLOB_ROOT", str(func(c *Config) *string { return &c.BlobRoot })},
	{"STUDY_BLOB_BUCKET", str(func(c *Config) *string { return &c.BlobBucket })},
	{"STUDY_BLOB_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.BlobTimeout })},

	{"STUDY_CHUNK_SIZE", integer(func(c *Config) *int { return &c.ChunkSize })},
	{"STUDY_CHUNK_OVERLAP", integer(func(c *Config) *int { return &c.ChunkOverlap })},
	{"STUDY_TUTOR_LANGUAGE", str(func(c *Config) *string { return &c.TutorLanguage })},
}

// Loader reads a Config. The zero value is not usable; use NewLoader.
type Loader struct {
	lookup      func(key string) (string, bool)
	newResolver func(ctx context.Context) (SecretResolver, error)
	logger      *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLookup replaces os.LookupEnv as the environment source.
func WithLookup(lookup func(key string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		l.lookup = lookup
	}
}

// WithSecretResolver resolves "ssm:" references with r instead of AWS.
func WithSecretResolver(r SecretResolver) LoaderOption {
	return func(l *Loader) {
		l.newResolver = func(context.Context) (SecretResolver, error) { return r, nil }
	}
}

// WithLoaderLogger sets a custom logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader reading the process environment.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		lookup: os.LookupEnv,
		newResolver: func(ctx context.Context) (SecretResolver, error) {
			return NewSSMResolver(ctx)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration from the process environment and files.
func Load(ctx context.Context, files ...string) (*Config, error) {
	return NewLoader().Load(ctx, files...)
}

// Load applies, in order: defaults, variables from the .env files (missing
// files are skipped), the environment, and secret resolution. Environment
// variables win over file entries. The result is validated.
func (l *Loader) Load(ctx context.Context, files ...string) (*Config, error) {
	fileValues := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("env file not found, skipping", "file", file)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range values {
			fileValues[k] = v
		}
	}

	cfg := Default()
	var resolver SecretResolver
	for _, s := range settings {
		v, ok := l.lookup(s.env)
		if !ok {
			v, ok = fileValues[s.env]
		}
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)

		if name, isSecret := secretName(v); isSecret {
			if resolver == nil {
				var err error
				if resolver, err = l.newResolver(ctx); err != nil {
					return nil, err
				}
			}
			resolved, err := resolver.Resolve(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.env, err)
			}
			v = resolved
		}

		if err := s.set(cfg, v); err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, s.env, v, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig or an
// ai package sentinel.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if !c.InMemory && strings.TrimSpace(c.DataDir) == "" {
		return invalid("STUDY_DATA_DIR is required unless STUDY_IN_MEMORY is set")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers < 1 {
		return invalid("STUDY_WORKERS must be positive")
	}
	if c.RetryUnit <= 0 {
		return invalid("STUDY_RETRY_UNIT must be positive")
	}
	if c.MaxAttempts < 1 {
		return invalid("STUDY_MAX_ATTEMPTS must be positive")
	}
	if c.AI == nil {
		return invalid("AI settings are missing")
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}

	switch c.VectorBackend {
	case VectorQdrant:
		if strings.TrimSpace(c.QdrantURL) == "" {
			return invalid("QDRANT_URL is required for the qdrant vector backend")
		}
	case VectorLocal:
	default:
		return invalid("unknown vector backend %q", c.VectorBackend)
	}
	if err := c.CollectionSpec().Validate(); err != nil {
		return invalid("%v", err)
	}
	if c.VectorTimeout <= 0 {
		return invalid("STUDY_VECTOR_TIMEOUT must be positive")
	}

	if c.ContextTTL <= 0 {
		return invalid("STUDY_CONTEXT_TTL must be positive")
	}
	if c.HistoryLimit < 1 {
		return invalid("STUDY_HISTORY_LIMIT must be positive")
	}

	switch c.BlobBackend {
	case BlobFS:
		if strings.TrimSpace(c.BlobRoot) == "" {
			return invalid("STUDY_BLOB_ROOT is required for the fs blob backend")
		}
	case BlobGCS:
		if strings.TrimSpace(c.BlobBucket) == "" {
			return invalid("STUDY_BLOB_BUCKET is required for the gcs blob backend")
		}
	default:
		return invalid("unknown blob backend %q", c.BlobBackend)
	}
	if c.BlobTimeout <= 0 {
		return invalid("STUDY_BLOB_TIMEOUT must be positive")
	}

	if c.ChunkSize < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return invalid("chunk size %d and overlap %d: need 0 <= overlap < size", c.ChunkSize, c.ChunkOverlap)
	}
	if strings.TrimSpace(c.TutorLanguage) == "" {
		return invalid("STUDY_TUTOR_LANGUAGE must not be empty")
	}
	return nil
}

// CollectionSpec returns the configured shape of the chunk collection.
func (c *Config) CollectionSpec() vectorindex.CollectionSpec {
	distance, err := vectorindex.ParseDistance(c.DistanceMetric)
	if err != nil {
		// Left as given so Validate reports it
		distance = vectorindex.Distance(c.DistanceMetric)
	}
	return vectorindex.CollectionSpec{
		Name:          c.Collection,
		VectorSize:    c.VectorSize,
		Distance:      distance,
		IndexedFields: vectorindex.DefaultIndexedFields,
	}
}

// AnswerPolicy returns the retry policy for answer jobs.
func (c *Config) AnswerPolicy() retry.Policy {
	return retry.AnswerPolicy(c.MaxAttempts, c.RetryUnit)
}

// IngestionPolicy returns the retry policy for ingestion jobs.
func (c *Config) IngestionPolicy() retry.Policy {
	return retry.IngestionPolicy(c.MaxAttempts, c.RetryUnit)
}

// ParseLogLevel maps debug, info, warn or error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: invalid log level %q: must be one of debug, info, warn, error", ErrInvalidConfig, s)
	}
}
