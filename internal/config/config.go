package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anime-shed/weld-inspector-go/pkg/validation"
)

// Config holds client, dev-server and storage settings.
type Config struct {
	API     APIConfig
	Upload  UploadConfig
	Preview PreviewConfig
	Log     LogConfig
	Server  ServerConfig
	Storage StorageConfig
}

// APIConfig describes how the widget reaches the classification service.
type APIConfig struct {
	URL                string        `mapstructure:"url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

type PreviewConfig struct {
	Dir           string `mapstructure:"dir"`
	ThumbnailSize int    `mapstructure:"thumbnail_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ServerConfig is only read by the development classification service.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
}

type StorageConfig struct {
	Type           string `mapstructure:"type"`
	LocalDir       string `mapstructure:"local_dir"`
	AzureAccount   string `mapstructure:"azure_account"`
	AzureKey       string `mapstructure:"azure_key"`
	AzureContainer string `mapstructure:"azure_container"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Server.Host)
	port := strings.TrimSpace(c.Server.Port)
	return net.JoinHostPort(host, port)
}

// Load reads configuration from defaults, an optional TOML file and env.
// Env overrides use prefix INSPECTOR_, e.g. INSPECTOR_API_URL.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("INSPECTOR_CONFIG"))
}

// LoadFile is Load with an explicit config file path. An empty path looks
// for config.toml in the working directory; a missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("INSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:8080")
	v.SetDefault("api.request_timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 0)
	v.SetDefault("api.insecure_skip_verify", false)

	v.SetDefault("upload.max_size", 10*1024*1024) // 10MB

	v.SetDefault("preview.dir", "")
	v.SetDefault("preview.thumbnail_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_request_body_size", 10*1024*1024)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.azure_account", "")
	v.SetDefault("storage.azure_key", "")
	v.SetDefault("storage.azure_container", "inspections")
}

// Validate checks ranges and the service URL.
func (c *Config) Validate() error {
	if err := validation.NewURLValidator().ValidateServiceURL(c.API.URL); err != nil {
		return fmt.Errorf("invalid api.url %q: %w", c.API.URL, err)
	}
	if c.API.RequestTimeout <= 0 || c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got api=%s, server=%s)",
			c.API.RequestTimeout, c.Server.RequestTimeout)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0 (got %d)", c.API.MaxRetries)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be > 0 (got %d)", c.Upload.MaxSize)
	}
	if c.Preview.ThumbnailSize <= 0 {
		return fmt.Errorf("preview.thumbnail_size must be > 0 (got %d)", c.Preview.ThumbnailSize)
	}
	if c.Server.MaxRequestBodySize <= 0 {
		return fmt.Errorf("server.max_request_body_size must be > 0 (got %d)", c.Server.MaxRequestBodySize)
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Server.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid server.port: %q", c.Server.Port)
	}

	switch strings.ToLower(c.Storage.Type) {
	case "local", "azure":
	default:
		return fmt.Errorf("unsupported storage.type: %q", c.Storage.Type)
	}
	return nil
}
