package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"image-squeezer-go/internal/compressor"
)

// Config represents the main configuration structure.
type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig contains compression workflow settings.
type CompressionConfig struct {
	// MaxBatchSize caps how many files one selection may contain; files
	// beyond the cap are silently dropped.
	MaxBatchSize int `mapstructure:"max_batch_size"`
	// MaxSizeMB is the soft output size target per image.
	MaxSizeMB float64 `mapstructure:"max_size_mb"`
	// MaxDimensionPx caps the longest side of compressed images.
	MaxDimensionPx int `mapstructure:"max_dimension_px"`
	// DefaultQuality is the batch-wide quality for new sessions.
	DefaultQuality float64 `mapstructure:"default_quality"`
	// SupportedTypes is the precise media type set the compressor accepts.
	SupportedTypes []string `mapstructure:"supported_types"`
	// AcceptPatterns is the selection filter allow-list; broader than
	// SupportedTypes so that unrecognized image types surface as
	// unsupported result items instead of disappearing silently.
	AcceptPatterns []string `mapstructure:"accept_patterns"`
}

// ServerConfig contains web server settings.
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Compression: CompressionConfig{
			MaxBatchSize:   20,
			MaxSizeMB:      1.0,
			MaxDimensionPx: 1920,
			DefaultQuality: 0.70,
			SupportedTypes: []string{"image/jpeg", "image/jpg", "image/png"},
			AcceptPatterns: []string{"image/*"},
		},
		Server: ServerConfig{
			Port:        8080,
			MaxUploadMB: 64,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-squeezer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-squeezer")
		viper.AddConfigPath("/etc/image-squeezer")
	}

	viper.SetEnvPrefix("IMAGE_SQUEEZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates and normalizes the configuration.
func (c *Config) Validate() error {
	if c.Compression.MaxBatchSize <= 0 {
		c.Compression.MaxBatchSize = 20
	}
	if c.Compression.MaxSizeMB <= 0 {
		c.Compression.MaxSizeMB = 1.0
	}
	if c.Compression.MaxDimensionPx <= 0 {
		c.Compression.MaxDimensionPx = 1920
	}

	if c.Compression.DefaultQuality == 0 {
		c.Compression.DefaultQuality = 0.70
	}
	if c.Compression.DefaultQuality < compressor.MinQuality ||
		c.Compression.DefaultQuality > compressor.MaxQuality {
		return fmt.Errorf("invalid default_quality: %.2f (valid: %.2f..%.2f)",
			c.Compression.DefaultQuality, compressor.MinQuality, compressor.MaxQuality)
	}

	if len(c.Compression.SupportedTypes) == 0 {
		c.Compression.SupportedTypes = []string{"image/jpeg", "image/jpg", "image/png"}
	}
	c.Compression.SupportedTypes = normalizeTypes(c.Compression.SupportedTypes)

	if len(c.Compression.AcceptPatterns) == 0 {
		c.Compression.AcceptPatterns = []string{"image/*"}
	}
	c.Compression.AcceptPatterns = normalizeTypes(c.Compression.AcceptPatterns)

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 64
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// IsSupportedType checks if the media type is accepted by the compressor.
func (c *Config) IsSupportedType(mediaType string) bool {
	mediaType = strings.ToLower(mediaType)
	for _, t := range c.Compression.SupportedTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

func normalizeTypes(types []string) []string {
	normalized := make([]string, len(types))
	for i, t := range types {
		normalized[i] = strings.ToLower(strings.TrimSpace(t))
	}
	return normalized
}
