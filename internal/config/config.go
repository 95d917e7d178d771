package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Processor ProcessorConfig `json:"processor"`
	Detector  DetectorConfig  `json:"detector"`
	Overlay   OverlayConfig   `json:"overlay"`
	Server    ServerConfig    `json:"server"`
	Output    OutputConfig    `json:"output"`
}

// ProcessorConfig holds configuration for image loading and encoding
type ProcessorConfig struct {
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`
	UserAgent          string `json:"user_agent"`
	DefaultQuality     int    `json:"default_quality"`
	MinImageSize       int    `json:"min_image_size"`
}

// DetectorConfig holds configuration for face detection
type DetectorConfig struct {
	CascadePath    string  `json:"cascade_path"`
	MinSize        int     `json:"min_size"`
	MaxSize        int     `json:"max_size"`
	ShiftFactor    float64 `json:"shift_factor"`
	ScaleFactor    float64 `json:"scale_factor"`
	IoUThreshold   float64 `json:"iou_threshold"`
	Angle          float64 `json:"angle"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// OverlayConfig holds configuration for overlay composition
type OverlayConfig struct {
	Scale float64 `json:"scale"`
}

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Processor: ProcessorConfig{
			HTTPTimeoutSeconds: 30,
			UserAgent:          "Strangeway/1.0 (+https://github.com/menta2k/strangeway)",
			DefaultQuality:     85,
			MinImageSize:       20,
		},
		Detector: DetectorConfig{
			CascadePath:    "",
			MinSize:        20,
			MaxSize:        1000,
			ShiftFactor:    0.1,
			ScaleFactor:    1.1,
			IoUThreshold:   0.2,
			Angle:          0.0,
			ScoreThreshold: 5.0,
		},
		Overlay: OverlayConfig{
			Scale: 0.55,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Output: OutputConfig{
			DefaultFormat: "",
			OutputDir:     ".",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Processor.DefaultQuality < 1 || c.Processor.DefaultQuality > 100 {
		return fmt.Errorf("processor.default_quality must be between 1 and 100")
	}

	if c.Processor.MinImageSize < 1 {
		return fmt.Errorf("processor.min_image_size must be positive")
	}

	if c.Processor.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("processor.http_timeout_seconds must be positive")
	}

	if c.Detector.MinSize < 1 {
		return fmt.Errorf("detector.min_size must be positive")
	}

	if c.Detector.MaxSize != 0 && c.Detector.MaxSize < c.Detector.MinSize {
		return fmt.Errorf("detector.max_size must be zero or at least detector.min_size")
	}

	if c.Detector.ShiftFactor <= 0 || c.Detector.ShiftFactor > 1 {
		return fmt.Errorf("detector.shift_factor must be between 0 and 1")
	}

	if c.Detector.ScaleFactor <= 1 {
		return fmt.Errorf("detector.scale_factor must be greater than 1")
	}

	if c.Detector.IoUThreshold < 0 || c.Detector.IoUThreshold > 1 {
		return fmt.Errorf("detector.iou_threshold must be between 0 and 1")
	}

	if c.Detector.ScoreThreshold < 0 {
		return fmt.Errorf("detector.score_threshold must not be negative")
	}

	if c.Overlay.Scale < 0 {
		return fmt.Errorf("overlay.scale must not be negative")
	}

	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr cannot be empty")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "strangeway", "config.json")
}
