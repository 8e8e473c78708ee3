package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the CAGED ingester
type Config struct {
	// FTP source settings
	FTP FTPConfig `yaml:"ftp" json:"ftp"`

	// Output settings for downloaded and extracted files
	Output OutputConfig `yaml:"output" json:"output"`

	// Processed-folder ledger settings
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`

	// Extraction behavior
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FTPConfig holds the remote source configuration
type FTPConfig struct {
	Host     string `yaml:"host" json:"host"`
	BasePath string `yaml:"base_path" json:"base_path"`
	// Years restricts traversal to an explicit allow-set of 4-digit years.
	// Empty means every year found under the base path.
	Years   []string      `yaml:"years" json:"years"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds the durable store configuration
type OutputConfig struct {
	Directory     string `yaml:"directory" json:"directory"`
	SaveExtracted bool   `yaml:"save_extracted" json:"save_extracted"`
	KeepArchives  bool   `yaml:"keep_archives" json:"keep_archives"`
}

// LedgerConfig holds the processed-folders ledger location
type LedgerConfig struct {
	File string `yaml:"file" json:"file"`
}

// ExtractConfig holds archive extraction settings
type ExtractConfig struct {
	// InMemory streams archive members directly into memory instead of
	// extracting the whole archive to a scratch directory first.
	InMemory bool `yaml:"in_memory" json:"in_memory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the canonical NOVO CAGED
// source values
func DefaultConfig() *Config {
	return &Config{
		FTP: FTPConfig{
			Host:     "ftp.mtps.gov.br",
			BasePath: "pdet/microdados/NOVO CAGED/",
			Years:    nil,
			Timeout:  30 * time.Second,
		},
		Output: OutputConfig{
			Directory:     "./dados_caged",
			SaveExtracted: true,
			KeepArchives:  false,
		},
		Ledger: LedgerConfig{
			File: "processed_caged_folders.txt",
		},
		Extract: ExtractConfig{
			InMemory: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if host := os.Getenv("CAGEDFETCH_FTP_HOST"); host != "" {
		c.FTP.Host = host
	}
	if basePath := os.Getenv("CAGEDFETCH_BASE_PATH"); basePath != "" {
		c.FTP.BasePath = basePath
	}
	if years := os.Getenv("CAGEDFETCH_YEARS"); years != "" {
		c.FTP.Years = splitAndTrim(years)
	}
	if timeout := os.Getenv("CAGEDFETCH_FTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.FTP.Timeout = d
		}
	}
	if outputDir := os.Getenv("CAGEDFETCH_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if save := os.Getenv("CAGEDFETCH_SAVE_EXTRACTED"); save != "" {
		c.Output.SaveExtracted = strings.ToLower(save) == "true"
	}
	if keep := os.Getenv("CAGEDFETCH_KEEP_ARCHIVES"); keep != "" {
		c.Output.KeepArchives = strings.ToLower(keep) == "true"
	}
	if ledgerFile := os.Getenv("CAGEDFETCH_LEDGER_FILE"); ledgerFile != "" {
		c.Ledger.File = ledgerFile
	}
	if inMemory := os.Getenv("CAGEDFETCH_IN_MEMORY"); inMemory != "" {
		c.Extract.InMemory = strings.ToLower(inMemory) == "true"
	}
	if logLevel := os.Getenv("CAGEDFETCH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".cagedfetch.yaml",
		".cagedfetch.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "cagedfetch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "cagedfetch", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".cagedfetch.yaml"),
		filepath.Join(os.Getenv("HOME"), ".cagedfetch.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.FTP.Host == "" {
		errs = append(errs, errors.New("FTP host is required"))
	}
	if c.FTP.BasePath == "" {
		errs = append(errs, errors.New("FTP base path is required"))
	}
	if c.FTP.Timeout <= 0 {
		errs = append(errs, errors.New("FTP timeout must be positive"))
	}
	for _, year := range c.FTP.Years {
		if !isYear(year) {
			errs = append(errs, fmt.Errorf("invalid year in allow-list: %q", year))
		}
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Ledger.File == "" {
		errs = append(errs, errors.New("ledger file is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if host, ok := flags["host"].(string); ok && host != "" {
		c.FTP.Host = host
	}
	if basePath, ok := flags["base-path"].(string); ok && basePath != "" {
		c.FTP.BasePath = basePath
	}
	if years, ok := flags["years"].([]string); ok && len(years) > 0 {
		c.FTP.Years = years
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if ledgerFile, ok := flags["ledger"].(string); ok && ledgerFile != "" {
		c.Ledger.File = ledgerFile
	}
	if keep, ok := flags["keep-archives"].(bool); ok {
		c.Output.KeepArchives = keep
	}
	if inMemory, ok := flags["in-memory"].(bool); ok {
		c.Extract.InMemory = inMemory
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cagedfetch.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
