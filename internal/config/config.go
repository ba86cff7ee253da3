package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Logging     LoggingConfig     `yaml:"logging"`
	App         AppConfig         `yaml:"app"`
	Worker      WorkerConfig      `yaml:"worker"`
	Matching    MatchingConfig    `yaml:"matching"`
	Export      ExportConfig      `yaml:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the job notification exchange configuration. The
// broker only carries wake-up signals; the database is the queue of record.
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   string           `yaml:"exchange"`
	Queue      string           `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ObjectStoreConfig selects and configures the receipt/artifact store.
// Backend is either "fs" or "s3".
type ObjectStoreConfig struct {
	Backend       string `yaml:"backend"`
	BasePath      string `yaml:"base_path"`
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds the job scheduler configuration
type WorkerConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	MetricsPort     int           `yaml:"metrics_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MatchingConfig holds the receipt matching defaults
type MatchingConfig struct {
	DateWindowDays       int     `yaml:"date_window_days"`
	AmountTolerance      float64 `yaml:"amount_tolerance"`
	RequireCategoryMatch bool    `yaml:"require_category_match"`
}

// ExportConfig holds export artifact settings
type ExportConfig struct {
	LinkTTL         time.Duration        `yaml:"link_ttl"`
	MaxImageWidth   int                  `yaml:"max_image_width"`
	JPEGQuality     int                  `yaml:"jpeg_quality"`
	DefaultTemplate ExportTemplateConfig `yaml:"default_template"`
}

// ExportTemplateConfig holds the template applied to users who never saved
// an export template of their own.
type ExportTemplateConfig struct {
	SortDescending    bool `yaml:"sort_descending"`
	IncludeMerchant   bool `yaml:"include_merchant"`
	IncludeExpenseID  bool `yaml:"include_expense_id"`
	IncludeReceiptIDs bool `yaml:"include_receipt_ids"`
	IncludePDFIndex   bool `yaml:"include_pdf_index"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the fields the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	return nil
}

// ValidateWorkerConfig checks the fields the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be greater than 0")
	}

	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker max_attempts must be greater than 0")
	}

	if c.Worker.RetryBackoff < 0 {
		return fmt.Errorf("worker retry_backoff must not be negative")
	}

	if c.Matching.DateWindowDays < 0 {
		return fmt.Errorf("matching date_window_days must not be negative")
	}

	if c.Matching.AmountTolerance < 0 {
		return fmt.Errorf("matching amount_tolerance must not be negative")
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
		if c.RabbitMQ.Queue == "" {
			return fmt.Errorf("rabbitmq queue name is required")
		}
	}

	switch c.ObjectStore.Backend {
	case "fs":
		if c.ObjectStore.BasePath == "" {
			return fmt.Errorf("object store base_path is required for the fs backend")
		}
	case "s3":
		if c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("object store endpoint is required for the s3 backend")
		}
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object store bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid object store backend: %q (must be fs or s3)", c.ObjectStore.Backend)
	}

	return nil
}
