package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete searchmcp configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Fusion   FusionConfig   `yaml:"fusion" json:"fusion"`
	Recency  RecencyConfig  `yaml:"recency" json:"recency"`
	Sources  SourcesConfig  `yaml:"sources" json:"sources"`
	Reranker RerankerConfig `yaml:"reranker" json:"reranker"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// FusionConfig configures result fusion parameters.
// Parameters are configurable via:
//  1. User config (~/.config/searchmcp/config.yaml) - personal defaults
//  2. Project config (.searchmcp.yaml) - per-repo tuning
//  3. Env vars (SEARCHMCP_RRF_CONSTANT, SEARCHMCP_ALPHA) - highest priority
type FusionConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// Alpha is the weight of the rank-based RRF component in the hybrid
	// score (0.0-1.0). The remainder weights the normalized score average.
	Alpha float64 `yaml:"alpha" json:"alpha"`

	// Algorithm selects the fusion scoring algorithm.
	// Options: "hybrid" (default) or "pure_rrf" (rank-only, legacy).
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// RecencyConfig configures the post-fusion recency bias.
type RecencyConfig struct {
	// Strength is the maximum score penalty for old content (0.0-1.0).
	Strength float64 `yaml:"strength" json:"strength"`

	// HorizonDays is the age in days at which the penalty saturates.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// SourcesConfig configures the search source adapters.
type SourcesConfig struct {
	Web      WebSourceConfig     `yaml:"web" json:"web"`
	Filings  FilingsSourceConfig `yaml:"filings" json:"filings"`
	RAGIndex RAGIndexConfig      `yaml:"ragindex" json:"ragindex"`
	Vector   VectorSourceConfig  `yaml:"vector" json:"vector"`
	Docstore DocstoreConfig      `yaml:"docstore" json:"docstore"`

	// CacheSize is the per-source LRU result cache capacity in entries.
	// 0 disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// CacheTTL is how long cached source results stay fresh (e.g. "5m").
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl"`
}

// WebSourceConfig configures the web metasearch adapter.
type WebSourceConfig struct {
	// Endpoint is the SearxNG-compatible JSON search endpoint.
	// Empty disables the source.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// FilingsSourceConfig configures the regulatory filings adapter.
type FilingsSourceConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// APIKey authenticates filings requests. The source reports itself
	// unavailable when empty. Usually set via SEARCHMCP_FILINGS_API_KEY.
	APIKey  string `yaml:"api_key" json:"-"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// RAGIndexConfig configures the local full-text index adapter.
type RAGIndexConfig struct {
	// Path is the bleve index directory. Defaults to ~/.searchmcp/index.
	Path string `yaml:"path" json:"path"`
}

// VectorSourceConfig configures the vector similarity adapter.
type VectorSourceConfig struct {
	// Path is the persisted HNSW graph file. Defaults to ~/.searchmcp/vectors.
	Path string `yaml:"path" json:"path"`
	// OllamaHost is the embedding API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding dimensionality. 0 auto-detects.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

// DocstoreConfig configures the local document store adapter.
type DocstoreConfig struct {
	// Path is the SQLite database file. Defaults to ~/.searchmcp/docstore.db.
	Path string `yaml:"path" json:"path"`
}

// RerankerConfig configures the optional cross-encoder reranking stage.
type RerankerConfig struct {
	// Endpoint is the reranker HTTP service. Empty disables reranking
	// regardless of mode.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	// TopK is how many fused results are sent to the reranker.
	TopK    int    `yaml:"top_k" json:"top_k"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Fusion: FusionConfig{
			// RRF constant k=60 is industry standard (Azure AI Search, OpenSearch)
			RRFConstant: 60,
			Alpha:       0.6,
			Algorithm:   "hybrid",
		},
		Recency: RecencyConfig{
			Strength:    0.15,
			HorizonDays: 365,
		},
		Sources: SourcesConfig{
			Web: WebSourceConfig{
				Endpoint: "", // Empty disables web search
				Timeout:  "10s",
			},
			Filings: FilingsSourceConfig{
				Endpoint: "",
				APIKey:   "", // Set via SEARCHMCP_FILINGS_API_KEY
				Timeout:  "15s",
			},
			RAGIndex: RAGIndexConfig{
				Path: filepath.Join(defaultDataDir(), "index"),
			},
			Vector: VectorSourceConfig{
				Path:       filepath.Join(defaultDataDir(), "vectors"),
				OllamaHost: "", // Empty uses default http://localhost:11434
				Model:      "qwen3-embedding:8b",
				Dimensions: 0, // Auto-detect from embedder
			},
			Docstore: DocstoreConfig{
				Path: filepath.Join(defaultDataDir(), "docstore.db"),
			},
			CacheSize: 256,
			CacheTTL:  "5m",
		},
		Reranker: RerankerConfig{
			Endpoint: "",
			Model:    "reranker-small",
			TopK:     20,
			Timeout:  "30s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "debug", // Debug by default to aid troubleshooting
		},
	}
}

// defaultDataDir returns the default data directory (~/.searchmcp).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp directory
		return filepath.Join(os.TempDir(), ".searchmcp")
	}
	return filepath.Join(home, ".searchmcp")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/searchmcp/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/searchmcp/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "searchmcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "searchmcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "searchmcp", "config.yaml")
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

	// Check if file exists
	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	// Load the config
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/searchmcp/config.yaml)
//  3. Project config (.searchmcp.yaml in project root)
//  4. Environment variables (SEARCHMCP_*)
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

// loadFromFile attempts to load configuration from .searchmcp.yaml or .searchmcp.yml.
func (c *Config) loadFromFile(dir string) error {
	// Try .yaml first (takes precedence)
	yamlPath := filepath.Join(dir, ".searchmcp.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	// Try .yml as fallback
	ymlPath := filepath.Join(dir, ".searchmcp.yml")
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

	// Use a temporary struct for parsing to detect type errors
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

	// Fusion parameters
	// Note: 0 is not a practical value for these, so we only merge non-zero values
	if other.Fusion.RRFConstant != 0 {
		c.Fusion.RRFConstant = other.Fusion.RRFConstant
	}
	if other.Fusion.Alpha != 0 {
		c.Fusion.Alpha = other.Fusion.Alpha
	}
	if other.Fusion.Algorithm != "" {
		c.Fusion.Algorithm = other.Fusion.Algorithm
	}

	// Recency
	if other.Recency.Strength != 0 {
		c.Recency.Strength = other.Recency.Strength
	}
	if other.Recency.HorizonDays != 0 {
		c.Recency.HorizonDays = other.Recency.HorizonDays
	}

	// Sources
	if other.Sources.Web.Endpoint != "" {
		c.Sources.Web.Endpoint = other.Sources.Web.Endpoint
	}
	if other.Sources.Web.Timeout != "" {
		c.Sources.Web.Timeout = other.Sources.Web.Timeout
	}
	if other.Sources.Filings.Endpoint != "" {
		c.Sources.Filings.Endpoint = other.Sources.Filings.Endpoint
	}
	if other.Sources.Filings.APIKey != "" {
		c.Sources.Filings.APIKey = other.Sources.Filings.APIKey
	}
	if other.Sources.Filings.Timeout != "" {
		c.Sources.Filings.Timeout = other.Sources.Filings.Timeout
	}
	if other.Sources.RAGIndex.Path != "" {
		c.Sources.RAGIndex.Path = other.Sources.RAGIndex.Path
	}
	if other.Sources.Vector.Path != "" {
		c.Sources.Vector.Path = other.Sources.Vector.Path
	}
	if other.Sources.Vector.OllamaHost != "" {
		c.Sources.Vector.OllamaHost = other.Sources.Vector.OllamaHost
	}
	if other.Sources.Vector.Model != "" {
		c.Sources.Vector.Model = other.Sources.Vector.Model
	}
	if other.Sources.Vector.Dimensions != 0 {
		c.Sources.Vector.Dimensions = other.Sources.Vector.Dimensions
	}
	if other.Sources.Docstore.Path != "" {
		c.Sources.Docstore.Path = other.Sources.Docstore.Path
	}
	if other.Sources.CacheSize != 0 {
		c.Sources.CacheSize = other.Sources.CacheSize
	}
	if other.Sources.CacheTTL != "" {
		c.Sources.CacheTTL = other.Sources.CacheTTL
	}

	// Reranker
	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.TopK != 0 {
		c.Reranker.TopK = other.Reranker.TopK
	}
	if other.Reranker.Timeout != "" {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies SEARCHMCP_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Fusion parameters
	if v := os.Getenv("SEARCHMCP_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Fusion.RRFConstant = k
		}
	}
	if v := os.Getenv("SEARCHMCP_ALPHA"); v != "" {
		if a, err := parseFloat64(v); err == nil && a >= 0 && a <= 1 {
			c.Fusion.Alpha = a
		}
	}
	if v := os.Getenv("SEARCHMCP_ALGORITHM"); v != "" {
		c.Fusion.Algorithm = v
	}

	// Sources
	if v := os.Getenv("SEARCHMCP_WEB_ENDPOINT"); v != "" {
		c.Sources.Web.Endpoint = v
	}
	if v := os.Getenv("SEARCHMCP_FILINGS_ENDPOINT"); v != "" {
		c.Sources.Filings.Endpoint = v
	}
	if v := os.Getenv("SEARCHMCP_FILINGS_API_KEY"); v != "" {
		c.Sources.Filings.APIKey = v
	}
	if v := os.Getenv("SEARCHMCP_OLLAMA_HOST"); v != "" {
		c.Sources.Vector.OllamaHost = v
	}

	// Reranker
	if v := os.Getenv("SEARCHMCP_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("SEARCHMCP_RERANK_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Reranker.TopK = k
		}
	}

	// Server
	if v := os.Getenv("SEARCHMCP_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SEARCHMCP_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
// Used by 'config init --force' to upgrade configs written by older versions.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	// Fusion parameters became configurable after the initial release.
	if c.Fusion.RRFConstant == 0 {
		c.Fusion.RRFConstant = defaults.Fusion.RRFConstant
		added = append(added, "fusion.rrf_constant")
	}
	if c.Fusion.Alpha == 0 {
		c.Fusion.Alpha = defaults.Fusion.Alpha
		added = append(added, "fusion.alpha")
	}
	if c.Fusion.Algorithm == "" {
		c.Fusion.Algorithm = defaults.Fusion.Algorithm
		added = append(added, "fusion.algorithm")
	}

	// Recency bias
	if c.Recency.Strength == 0 {
		c.Recency.Strength = defaults.Recency.Strength
		added = append(added, "recency.strength")
	}
	if c.Recency.HorizonDays == 0 {
		c.Recency.HorizonDays = defaults.Recency.HorizonDays
		added = append(added, "recency.horizon_days")
	}

	// Source result caching
	if c.Sources.CacheSize == 0 {
		c.Sources.CacheSize = defaults.Sources.CacheSize
		added = append(added, "sources.cache_size")
	}
	if c.Sources.CacheTTL == "" {
		c.Sources.CacheTTL = defaults.Sources.CacheTTL
		added = append(added, "sources.cache_ttl")
	}

	// Reranker budget
	if c.Reranker.TopK == 0 {
		c.Reranker.TopK = defaults.Reranker.TopK
		added = append(added, "reranker.top_k")
	}

	// Endpoint defaults are empty strings meaning "disabled", so they are
	// never auto-added.

	return added
}

// FindProjectRoot finds the project root directory.
// It looks for .git directory or .searchmcp.yaml/.yml file by walking up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		// Check for .git directory
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		// Check for .searchmcp.yaml or .searchmcp.yml
		if fileExists(filepath.Join(currentDir, ".searchmcp.yaml")) ||
			fileExists(filepath.Join(currentDir, ".searchmcp.yml")) {
			return currentDir, nil
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
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
	// Validate fusion parameters
	if c.Fusion.RRFConstant <= 0 {
		return fmt.Errorf("fusion.rrf_constant must be positive, got %d", c.Fusion.RRFConstant)
	}
	if c.Fusion.Alpha < 0 || c.Fusion.Alpha > 1 {
		return fmt.Errorf("fusion.alpha must be between 0 and 1, got %f", c.Fusion.Alpha)
	}
	validAlgorithms := map[string]bool{"hybrid": true, "pure_rrf": true}
	if !validAlgorithms[strings.ToLower(c.Fusion.Algorithm)] {
		return fmt.Errorf("fusion.algorithm must be 'hybrid' or 'pure_rrf', got %s", c.Fusion.Algorithm)
	}

	// Validate recency
	if c.Recency.Strength < 0 || c.Recency.Strength > 1 {
		return fmt.Errorf("recency.strength must be between 0 and 1, got %f", c.Recency.Strength)
	}
	if c.Recency.HorizonDays < 0 {
		return fmt.Errorf("recency.horizon_days must be non-negative, got %d", c.Recency.HorizonDays)
	}
	// Strength of exactly 1 would zero out scores at the horizon
	if math.Abs(c.Recency.Strength-1.0) < 1e-9 {
		return fmt.Errorf("recency.strength must be below 1.0")
	}

	// Validate reranker
	if c.Reranker.TopK < 0 {
		return fmt.Errorf("reranker.top_k must be non-negative, got %d", c.Reranker.TopK)
	}

	// Validate cache
	if c.Sources.CacheSize < 0 {
		return fmt.Errorf("sources.cache_size must be non-negative, got %d", c.Sources.CacheSize)
	}

	// Validate transport
	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
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
