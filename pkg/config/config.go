package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for order-insight.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config
	// RequestTimeoutSeconds bounds each /api request, including the model call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"REQUEST_TIMEOUT" env-default:"120"`

	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Records   RecordsConfig   `yaml:"records"`
	WriteBack WriteBackConfig `yaml:"write_back"`
	Schema    SchemaConfig    `yaml:"schema"`
	Directory DirectoryConfig `yaml:"directory"`
}

// RequestTimeout returns the per-request deadline for API routes.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LLMConfig selects the generation provider and model.
// The default endpoint is Gemini's OpenAI-compatible API.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint    string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"gemini-2.0-flash"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.3"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
}

// DatabaseConfig holds the default SQL Server connection and driver options.
// Server, Database and Username may be empty when callers always supply
// connection parameters per request.
type DatabaseConfig struct {
	Server                 string `yaml:"server" env:"SQL_SERVER" env-default:""`
	Database               string `yaml:"database" env:"SQL_DATABASE" env-default:""`
	Username               string `yaml:"username" env:"SQL_USERNAME" env-default:""`
	Password               string `yaml:"-" env:"SQL_PASSWORD"` // Secret - not in YAML
	Port                   int    `yaml:"port" env:"SQL_PORT" env-default:"1433"`
	Encrypt                bool   `yaml:"encrypt" env:"SQL_ENCRYPT" env-default:"false"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate" env:"SQL_TRUST_SERVER_CERTIFICATE" env-default:"true"`
	// ConnectionTimeoutSeconds bounds the driver's dial, not the queries.
	ConnectionTimeoutSeconds int `yaml:"connection_timeout_seconds" env:"SQL_CONNECTION_TIMEOUT" env-default:"30"`
	// ProbeTimeoutSeconds bounds connectivity probes only.
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds" env:"SQL_PROBE_TIMEOUT" env-default:"3"`
}

// ProbeTimeout returns the connectivity probe timeout.
func (c DatabaseConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// RecordsConfig describes the order history query and how its columns are read.
type RecordsConfig struct {
	// Query overrides the built-in journal/trend query when set.
	Query             string `yaml:"query" env:"RECORDS_QUERY" env-default:""`
	Limit             int    `yaml:"limit" env:"RECORDS_LIMIT" env-default:"1000"`
	OrderNumberColumn string `yaml:"order_number_column" env:"RECORDS_ORDER_NUMBER_COLUMN" env-default:"ORDERNUMBER"`
	CommentColumn     string `yaml:"comment_column" env:"RECORDS_COMMENT_COLUMN" env-default:"ORDER_JRNL_CMT_TXT"`
	// TrendMarker selects trend columns by substring match on the column name.
	TrendMarker string `yaml:"trend_marker" env:"RECORDS_TREND_MARKER" env-default:"TREND"`
	// SortColumn is the most recent trend feature; empty keeps the query order.
	SortColumn string `yaml:"sort_column" env:"RECORDS_SORT_COLUMN" env-default:"TREND_LAG1_STRNT"`
}

// WriteBackConfig names the table and columns predictions are written to.
type WriteBackConfig struct {
	Table                  string `yaml:"table" env:"SQL_TABLE" env-default:"OrderTrends"`
	KeyColumn              string `yaml:"key_column" env:"WRITE_BACK_KEY_COLUMN" env-default:"OrderNumber"`
	PredictedCommentColumn string `yaml:"predicted_comment_column" env:"WRITE_BACK_COMMENT_COLUMN" env-default:"Predicted_Comment"`
	ReasonColumn           string `yaml:"reason_column" env:"WRITE_BACK_REASON_COLUMN" env-default:"Prediction_Reason"`
	TimestampColumn        string `yaml:"timestamp_column" env:"WRITE_BACK_TIMESTAMP_COLUMN" env-default:"Prediction_Date"`
}

// SchemaConfig controls schema description for natural-language queries.
type SchemaConfig struct {
	// SensitiveFragmentsStr is a comma-separated list of column name fragments
	// that must never reach a prompt or a generated query.
	SensitiveFragmentsStr string `yaml:"sensitive_fragments" env:"SCHEMA_SENSITIVE_FRAGMENTS" env-default:"sold_to"`

	// SensitiveFragments is parsed from SensitiveFragmentsStr (not from config file).
	SensitiveFragments []string `yaml:"-"`
}

// DirectoryConfig points at the company and server directory files.
type DirectoryConfig struct {
	CompaniesFile string `yaml:"companies_file" env:"COMPANIES_FILE" env-default:"dataaccessconfig.xml"`
	ServersFile   string `yaml:"servers_file" env:"SERVERS_FILE" env-default:"config/database_config.json"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigFile, version)
}

// LoadFrom is Load with an explicit config file path. A missing file is not
// an error; defaults and environment variables apply.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.parseComplexFields()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	// GOOGLE_API_KEY is what existing deployments set in their .env files.
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	c.Schema.SensitiveFragments = splitList(c.Schema.SensitiveFragmentsStr)
}

// Validate checks values that cleanenv cannot check on its own.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q (expected openai or anthropic)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Records.Limit < 1 || c.Records.Limit > 1000 {
		return fmt.Errorf("records limit must be between 1 and 1000, got %d", c.Records.Limit)
	}
	if c.Records.OrderNumberColumn == "" || c.Records.TrendMarker == "" {
		return fmt.Errorf("records order_number_column and trend_marker are required")
	}
	if c.Database.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("database probe_timeout_seconds must be positive")
	}
	if c.WriteBack.Table == "" || c.WriteBack.KeyColumn == "" {
		return fmt.Errorf("write_back table and key_column are required")
	}
	return nil
}

// IsDevelopment reports whether the environment uses developer logging.
func (c *Config) IsDevelopment() bool {
	switch c.Env {
	case "local", "dev", "development", "test":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
