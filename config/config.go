// Package config loads the server configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Server struct {
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

type Database struct {
	Path string `yaml:"path" validate:"required"`
}

type Engine struct {
	// Workers bounds coefficient computation; 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`
}

type Log struct {
	Env string `yaml:"env" validate:"oneof=dev prod"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Engine   Engine   `yaml:"engine"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: Database{Path: "bonus.db"},
		Engine:   Engine{Workers: 0},
		Log:      Log{Env: "dev"},
	}
}

// LoadFromPath loads and validates the configuration at path. Values missing
// from the file keep their defaults. A missing file yields Default().
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration struct.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
