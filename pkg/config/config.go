// Package config loads and validates the docpipe configuration from a YAML
// file with environment-variable overrides. The resulting Config is a
// snapshot: it is built once at startup and handed to every component by
// value or pointer, and nothing mutates it afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file consulted when none is named explicitly.
const DefaultPath = "config.yaml"

// Config is the top-level application configuration.
type Config struct {
	API          APIConfig          `yaml:"api"`
	Paths        PathsConfig        `yaml:"paths"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	FilePatterns FilePatternsConfig `yaml:"filePatterns"`
	Document     DocumentConfig     `yaml:"document"`
	Compile      CompileConfig      `yaml:"compile"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Cache        CacheConfig        `yaml:"cache"`
	Events       EventsConfig       `yaml:"events"`
	History      HistoryConfig      `yaml:"history"`
}

// APIConfig describes the chat-completions endpoint used for generation.
type APIConfig struct {
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	KeyEnv      string        `yaml:"keyEnv"`
}

// PathsConfig holds the directories the pipeline reads from and writes to.
// Buckets are Go time layouts, one per directory level, inserted between
// each destination subtree and the artifact file. An empty list keeps the
// destination flat.
type PathsConfig struct {
	Resource        string   `yaml:"resource"`
	InputDir        string   `yaml:"inputDir"`
	OutputDir       string   `yaml:"outputDir"`
	DestinationRoot string   `yaml:"destinationRoot"`
	CompiledDir     string   `yaml:"compiledDir"`
	SourceDir       string   `yaml:"sourceDir"`
	InputArchiveDir string   `yaml:"inputArchiveDir"`
	Buckets         []string `yaml:"buckets"`
}

// MonitorConfig controls the continuous-monitoring scheduler.
type MonitorConfig struct {
	IntervalMinutes int           `yaml:"intervalMinutes"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	Watch           bool          `yaml:"watch"`
	WatchDebounce   time.Duration `yaml:"watchDebounce"`
}

// Interval returns the configured cycle interval as a duration.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// FilePatternsConfig holds the glob patterns for inputs and generated sources.
type FilePatternsConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// InputExt returns the extension (without dot) implied by the input pattern.
func (f FilePatternsConfig) InputExt() string {
	return patternExt(f.Input, "txt")
}

// OutputExt returns the extension (without dot) implied by the output pattern.
func (f FilePatternsConfig) OutputExt() string {
	return patternExt(f.Output, "tex")
}

func patternExt(pattern, fallback string) string {
	ext := strings.TrimPrefix(filepath.Ext(pattern), ".")
	if ext == "" || strings.ContainsAny(ext, "*?[") {
		return fallback
	}
	return ext
}

// DocumentConfig controls what the generated document looks like.
type DocumentConfig struct {
	DocumentClass     string   `yaml:"documentClass"`
	FontSize          string   `yaml:"fontSize"`
	StyleFile         string   `yaml:"styleFile"`
	ExampleFile       string   `yaml:"exampleFile"`
	DateFormat        string   `yaml:"dateFormat"`
	ExtraInstructions []string `yaml:"extraInstructions"`
}

// CompileConfig controls the external document compiler.
type CompileConfig struct {
	Binary          string        `yaml:"binary"`
	Timeout         time.Duration `yaml:"timeout"`
	CompiledExt     string        `yaml:"compiledExt"`
	CleanExtensions []string      `yaml:"cleanExtensions"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server that runs
// alongside the monitor.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// CacheConfig controls the optional Redis cache of generated responses.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	TTL      time.Duration `yaml:"ttl"`
}

// EventsConfig controls the optional Kafka stream of run outcomes.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HistoryConfig controls the optional PostgreSQL run-history table.
type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (h HistoryConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		h.Host, h.Port, h.User, h.Password, h.Database, h.SSLMode,
	)
}

// Load resolves the configuration snapshot. When explicit is true the file
// at path must be readable, otherwise an error wrapping ErrConfig is
// returned. A missing default file, or a file that fails to parse, falls
// back to the built-in defaults with a warning. Environment overrides and
// home-directory expansion are applied last.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err != nil && explicit:
		return nil, fmt.Errorf("%w: reading config file %s: %v", apperrors.ErrConfig, path, err)
	case err != nil && errors.Is(err, os.ErrNotExist):
		slog.Warn("config file not found, using defaults", "path", path)
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		parsed := Default()
		if err := yaml.Unmarshal(data, parsed); err != nil {
			slog.Warn("config file invalid, using defaults", "path", path, "error", err)
		} else {
			cfg = parsed
		}
	}
	applyEnvOverrides(cfg)
	cfg.expandPaths()
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.API.URL == "" {
		problems = append(problems, "api.url is required")
	}
	if c.API.Model == "" {
		problems = append(problems, "api.model is required")
	}
	if c.Paths.InputDir == "" {
		problems = append(problems, "paths.inputDir is required")
	}
	if c.Paths.OutputDir == "" {
		problems = append(problems, "paths.outputDir is required")
	}
	if c.Paths.DestinationRoot == "" {
		problems = append(problems, "paths.destinationRoot is required")
	}
	if c.Monitor.IntervalMinutes <= 0 {
		problems = append(problems, "monitor.intervalMinutes must be positive")
	}
	if c.Document.StyleFile == "" || c.Document.ExampleFile == "" {
		problems = append(problems, "document.styleFile and document.exampleFile are required")
	}
	if c.Compile.Binary == "" {
		problems = append(problems, "compile.binary is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:         "https://api.deepseek.com/v1/chat/completions",
			Model:       "deepseek-chat",
			Temperature: 0.3,
			MaxTokens:   4000,
			Timeout:     60 * time.Second,
			KeyEnv:      "DEEPSEEK_API_KEY",
		},
		Paths: PathsConfig{
			Resource:        "./resource",
			InputDir:        "./input",
			OutputDir:       "./output",
			DestinationRoot: "./input",
			CompiledDir:     "pdf",
			SourceDir:       "tex",
			InputArchiveDir: "txt",
		},
		Monitor: MonitorConfig{
			IntervalMinutes: 60,
			PollInterval:    time.Second,
			WatchDebounce:   2 * time.Second,
		},
		FilePatterns: FilePatternsConfig{
			Input:  "*.txt",
			Output: "*.tex",
		},
		Document: DocumentConfig{
			DocumentClass: "article",
			FontSize:      "14pt",
			StyleFile:     "xydailystudy.sty",
			ExampleFile:   "20250924.tex",
			DateFormat:    "2006年1月2日",
			ExtraInstructions: []string{
				"Copy the homework assignments (such as the \"今日小任务\" items) into the homework record section as well.",
				"List only homework items that have content, each with the \\homeworkrecord command.",
				"Start the line after \\begin{mathbox} and similar environments with \\par so the first line is indented.",
			},
		},
		Compile: CompileConfig{
			Binary:          "xelatex",
			Timeout:         5 * time.Minute,
			CompiledExt:     "pdf",
			CleanExtensions: []string{".aux", ".log", ".toc", ".out"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Cache: CacheConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
			TTL:      24 * time.Hour,
		},
		Events: EventsConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "docpipe.runs",
		},
		History: HistoryConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docpipe",
			User:            "docpipe",
			SSLMode:         "disable",
			MaxOpenConns:    2,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

func (c *Config) expandPaths() {
	c.Paths.Resource = ExpandHome(c.Paths.Resource)
	c.Paths.InputDir = ExpandHome(c.Paths.InputDir)
	c.Paths.OutputDir = ExpandHome(c.Paths.OutputDir)
	c.Paths.DestinationRoot = ExpandHome(c.Paths.DestinationRoot)
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// applyEnvOverrides reads DOCPIPE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCPIPE_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("DOCPIPE_API_MODEL"); v != "" {
		cfg.API.Model = v
	}
	if v := os.Getenv("DOCPIPE_INPUT_DIR"); v != "" {
		cfg.Paths.InputDir = v
	}
	if v := os.Getenv("DOCPIPE_OUTPUT_DIR"); v != "" {
		cfg.Paths.OutputDir = v
	}
	if v := os.Getenv("DOCPIPE_DESTINATION_ROOT"); v != "" {
		cfg.Paths.DestinationRoot = v
	}
	if v := os.Getenv("DOCPIPE_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.IntervalMinutes = n
		}
	}
	if v := os.Getenv("DOCPIPE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCPIPE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DOCPIPE_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DOCPIPE_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("DOCPIPE_KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DOCPIPE_POSTGRES_HOST"); v != "" {
		cfg.History.Host = v
	}
	if v := os.Getenv("DOCPIPE_POSTGRES_PASSWORD"); v != "" {
		cfg.History.Password = v
	}
}
