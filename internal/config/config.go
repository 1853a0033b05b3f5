package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataDirName is the name of the per-project index directory.
const DataDirName = ".chunkdex"

// Config represents the complete chunkdex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Text    TextConfig    `yaml:"text" json:"text"`
	Vector  VectorConfig  `yaml:"vector" json:"vector"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	// Backend selects the document store backend.
	// Options: "sqlite" (default, survives restarts) or "memory" (tests, throwaway indexes).
	Backend string `yaml:"backend" json:"backend"`

	// CacheSize is the number of hydrated documents kept in the LRU read cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// SQLiteCacheMB is the SQLite page cache size in MB.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// TextConfig configures tokenization and BM25 scoring.
// K1 and B follow the standard Okapi BM25 parameterization: K1 controls
// term-frequency saturation, B controls document-length normalization.
type TextConfig struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`

	// MinTokenLength drops tokens shorter than this during analysis.
	// Default 1 keeps every token; raise it to shed single-letter noise.
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`

	// StopWords are removed during analysis. Empty by default: dropping
	// common words changes document lengths and therefore BM25 scores,
	// so it is opt-in.
	StopWords []string `yaml:"stop_words" json:"stop_words"`
}

// VectorConfig configures the HNSW chunk-vector index.
type VectorConfig struct {
	// Dimensions is the required embedding width. Vectors of any other
	// width are rejected at both ingest and query time.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// MaxLinks is the HNSW M parameter: maximum links per node on upper
	// layers. Layer 0 allows 2*MaxLinks.
	MaxLinks int `yaml:"max_links" json:"max_links"`

	// EfConstruction is the candidate-list width used when inserting.
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`

	// EfSearch is the default candidate-list width used when searching.
	// Queries may override it; the effective value is never below k.
	EfSearch int `yaml:"ef_search" json:"ef_search"`
}

// SearchConfig configures query execution defaults and ceilings.
type SearchConfig struct {
	// DefaultProfile is the rank profile used when a query names none.
	// Options: "bm25" or "embedding_similarity".
	DefaultProfile string `yaml:"default_profile" json:"default_profile"`

	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// MaxResults caps offset+limit so deep pagination cannot force
	// unbounded candidate evaluation.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// IngestConfig configures batch document ingestion.
type IngestConfig struct {
	// Workers is the number of concurrent ingest workers.
	Workers int `yaml:"workers" json:"workers"`

	// BatchSize controls how often progress is reported during bulk loads.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// LoggingConfig configures the engine log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"` // empty = <data dir>/logs/engine.log
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Backend:       "sqlite",
			CacheSize:     1024,
			SQLiteCacheMB: 64,
		},
		Text: TextConfig{
			K1:             1.2,
			B:              0.75,
			MinTokenLength: 1,
			StopWords:      nil,
		},
		Vector: VectorConfig{
			Dimensions:     384,
			MaxLinks:       16,
			EfConstruction: 512,
			EfSearch:       100,
		},
		Search: SearchConfig{
			DefaultProfile: "bm25",
			DefaultLimit:   10,
			MaxLimit:       100,
			MaxResults:     10000,
		},
		Ingest: IngestConfig{
			Workers:   runtime.NumCPU(),
			BatchSize: 256,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      "",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/chunkdex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/chunkdex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chunkdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "chunkdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "chunkdex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/chunkdex/config.yaml)
//  3. Project config (.chunkdex.yaml in the project root)
//  4. Environment variables (CHUNKDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: Load user/global config (if exists)
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	// Step 2: Load project config (overrides user config)
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Step 3: Apply environment variable overrides (highest precedence)
	cfg.applyEnvOverrides()

	// Step 4: Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithFile is Load with an explicit project config file in place of
// directory discovery. The file must exist and parse.
func LoadWithFile(path string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .chunkdex.yaml or .chunkdex.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".chunkdex.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".chunkdex.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Parse into a temporary struct to surface type errors
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Merge parsed values with defaults (only non-zero values)
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.CacheSize != 0 {
		c.Store.CacheSize = other.Store.CacheSize
	}
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	// Text
	// Note: 0 is not a practical value for k1 or b overrides, so we only
	// merge non-zero values; tuning either to exactly 0 goes through env vars.
	if other.Text.K1 != 0 {
		c.Text.K1 = other.Text.K1
	}
	if other.Text.B != 0 {
		c.Text.B = other.Text.B
	}
	if other.Text.MinTokenLength != 0 {
		c.Text.MinTokenLength = other.Text.MinTokenLength
	}
	if len(other.Text.StopWords) > 0 {
		c.Text.StopWords = other.Text.StopWords
	}

	// Vector
	if other.Vector.Dimensions != 0 {
		c.Vector.Dimensions = other.Vector.Dimensions
	}
	if other.Vector.MaxLinks != 0 {
		c.Vector.MaxLinks = other.Vector.MaxLinks
	}
	if other.Vector.EfConstruction != 0 {
		c.Vector.EfConstruction = other.Vector.EfConstruction
	}
	if other.Vector.EfSearch != 0 {
		c.Vector.EfSearch = other.Vector.EfSearch
	}

	// Search
	if other.Search.DefaultProfile != "" {
		c.Search.DefaultProfile = other.Search.DefaultProfile
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	// Ingest
	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.BatchSize != 0 {
		c.Ingest.BatchSize = other.Ingest.BatchSize
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies CHUNKDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHUNKDEX_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("CHUNKDEX_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Store.CacheSize = n
		}
	}

	// BM25 tuning (supports explicit zero values, unlike YAML merge)
	if v := os.Getenv("CHUNKDEX_BM25_K1"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 {
			c.Text.K1 = f
		}
	}
	if v := os.Getenv("CHUNKDEX_BM25_B"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Text.B = f
		}
	}

	if v := os.Getenv("CHUNKDEX_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Vector.Dimensions = n
		}
	}
	if v := os.Getenv("CHUNKDEX_EF_SEARCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Vector.EfSearch = n
		}
	}
	if v := os.Getenv("CHUNKDEX_EF_CONSTRUCTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Vector.EfConstruction = n
		}
	}

	if v := os.Getenv("CHUNKDEX_DEFAULT_PROFILE"); v != "" {
		c.Search.DefaultProfile = v
	}
	if v := os.Getenv("CHUNKDEX_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}

	if v := os.Getenv("CHUNKDEX_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Workers = n
		}
	}

	if v := os.Getenv("CHUNKDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindIndexRoot finds the directory that owns the index for startDir.
// It walks up the directory tree looking for an existing .chunkdex data
// directory, a .chunkdex.yaml/.yml config file, or a .git directory.
// If none is found, the starting directory itself is returned.
func FindIndexRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, DataDirName)) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".chunkdex.yaml")) ||
			fileExists(filepath.Join(currentDir, ".chunkdex.yml")) {
			return currentDir, nil
		}

		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root, fall back to the starting directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DataDir returns the index data directory under the given project root.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// IndexExists returns true if an index data directory exists under root.
func IndexExists(root string) bool {
	return dirExists(DataDir(root))
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Store
	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Store.Backend)] {
		return fmt.Errorf("store.backend must be 'sqlite' or 'memory', got %s", c.Store.Backend)
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must be non-negative, got %d", c.Store.CacheSize)
	}

	// Text
	if c.Text.K1 < 0 {
		return fmt.Errorf("text.k1 must be non-negative, got %f", c.Text.K1)
	}
	if c.Text.B < 0 || c.Text.B > 1 {
		return fmt.Errorf("text.b must be between 0 and 1, got %f", c.Text.B)
	}
	if c.Text.MinTokenLength < 1 {
		return fmt.Errorf("text.min_token_length must be at least 1, got %d", c.Text.MinTokenLength)
	}

	// Vector
	if c.Vector.Dimensions < 1 {
		return fmt.Errorf("vector.dimensions must be at least 1, got %d", c.Vector.Dimensions)
	}
	if c.Vector.MaxLinks < 2 {
		return fmt.Errorf("vector.max_links must be at least 2, got %d", c.Vector.MaxLinks)
	}
	if c.Vector.EfConstruction < c.Vector.MaxLinks {
		return fmt.Errorf("vector.ef_construction must be at least max_links (%d), got %d",
			c.Vector.MaxLinks, c.Vector.EfConstruction)
	}
	if c.Vector.EfSearch < 1 {
		return fmt.Errorf("vector.ef_search must be at least 1, got %d", c.Vector.EfSearch)
	}

	// Search
	validProfiles := map[string]bool{"bm25": true, "embedding_similarity": true}
	if !validProfiles[c.Search.DefaultProfile] {
		return fmt.Errorf("search.default_profile must be 'bm25' or 'embedding_similarity', got %s",
			c.Search.DefaultProfile)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit must be at least default_limit (%d), got %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.MaxResults < c.Search.MaxLimit {
		return fmt.Errorf("search.max_results must be at least max_limit (%d), got %d",
			c.Search.MaxLimit, c.Search.MaxResults)
	}

	// Ingest
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1, got %d", c.Ingest.BatchSize)
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
// Used by `chunkdex config upgrade` to bring an old config file forward.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	// Store cache settings
	if c.Store.CacheSize == 0 {
		c.Store.CacheSize = defaults.Store.CacheSize
		added = append(added, "store.cache_size")
	}
	if c.Store.SQLiteCacheMB == 0 {
		c.Store.SQLiteCacheMB = defaults.Store.SQLiteCacheMB
		added = append(added, "store.sqlite_cache_mb")
	}

	// Per-query search width
	if c.Vector.EfSearch == 0 {
		c.Vector.EfSearch = defaults.Vector.EfSearch
		added = append(added, "vector.ef_search")
	}

	// Pagination ceiling
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = defaults.Search.MaxResults
		added = append(added, "search.max_results")
	}

	// Ingest workers
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = defaults.Ingest.Workers
		added = append(added, "ingest.workers")
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = defaults.Ingest.BatchSize
		added = append(added, "ingest.batch_size")
	}

	return added
}
