package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	IndexName     string `yaml:"index_name"` // GSI1 - creation ordered listing
	BucketName    string `yaml:"bucket_name"`
	S3Endpoint    string `yaml:"s3_endpoint"` // path-style endpoint for local stacks
	EventBusName  string `yaml:"event_bus_name"`

	// Object storage
	DownloadURLTTL  time.Duration `yaml:"download_url_ttl"`
	URLCacheEnabled bool          `yaml:"url_cache_enabled"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Observability
	MetricsBackend   string `yaml:"metrics_backend"` // prometheus, cloudwatch or none
	MetricsNamespace string `yaml:"metrics_namespace"`
	EnableTracing    bool   `yaml:"enable_tracing"`

	// HTTP
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	WriteRateLimit int      `yaml:"write_rate_limit"` // per client per minute, 0 disables

	// Feature flags
	CircuitBreakerEnabled bool `yaml:"circuit_breaker_enabled"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServerAddress:         ":8080",
		Environment:           "development",
		AWSRegion:             "eu-central-1",
		DynamoDBTable:         "memories",
		IndexName:             "GSI1",
		DownloadURLTTL:        time.Hour,
		URLCacheEnabled:       true,
		MaxUploadBytes:        200 << 20,
		LogLevel:              "info",
		MetricsBackend:        "prometheus",
		MetricsNamespace:      "TalkieMartin",
		EnableCORS:            true,
		AllowedOrigins:        []string{"*"},
		WriteRateLimit:        120,
		CircuitBreakerEnabled: true,
	}
}

// LoadConfig loads configuration from an optional YAML file named by
// CONFIG_FILE and then from environment variables, which take precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", cfg.DynamoDBTable))
	cfg.IndexName = getEnv("INDEX_NAME", cfg.IndexName)
	cfg.BucketName = getEnv("AWS_S3_BUCKET_NAME", cfg.BucketName)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.EventBusName = getEnv("EVENT_BUS_NAME", cfg.EventBusName)

	cfg.DownloadURLTTL = getEnvDuration("DOWNLOAD_URL_TTL", cfg.DownloadURLTTL)
	cfg.URLCacheEnabled = getEnvBool("URL_CACHE_ENABLED", cfg.URLCacheEnabled)
	cfg.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsBackend = strings.ToLower(getEnv("METRICS_BACKEND", cfg.MetricsBackend))
	cfg.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.EnableTracing)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	cfg.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.WriteRateLimit = getEnvInt("WRITE_RATE_LIMIT", cfg.WriteRateLimit)
	cfg.CircuitBreakerEnabled = getEnvBool("CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreakerEnabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DynamoDBTable == "" {
		return fmt.Errorf("TABLE_NAME is required")
	}
	if c.IndexName == "" {
		return fmt.Errorf("INDEX_NAME is required")
	}
	if c.BucketName == "" {
		return fmt.Errorf("AWS_S3_BUCKET_NAME is required")
	}
	if c.DownloadURLTTL < time.Second {
		return fmt.Errorf("DOWNLOAD_URL_TTL must be at least 1s, got %s", c.DownloadURLTTL)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.WriteRateLimit < 0 {
		return fmt.Errorf("WRITE_RATE_LIMIT must not be negative")
	}

	switch c.MetricsBackend {
	case "prometheus", "cloudwatch", "none":
	default:
		return fmt.Errorf("unknown METRICS_BACKEND %q", c.MetricsBackend)
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90m") or plain seconds ("3600")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
