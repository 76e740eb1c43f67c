package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds promptshelf process configuration.
// Stored at: ~/.promptshelf/config.yaml (or ./config.yaml)
type Config struct {
	Server   ServerCfg   `mapstructure:"server" yaml:"server"`
	Defra    DefraConfig `mapstructure:"defra" yaml:"defra"`
	Auth     AuthCfg     `mapstructure:"auth" yaml:"auth"`
	Defaults DefaultsCfg `mapstructure:"defaults" yaml:"defaults"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
}

// DefraConfig holds DefraDB connection and container configuration.
type DefraConfig struct {
	// URL points at an externally managed DefraDB. When empty the server
	// starts and manages a Docker container instead.
	URL string `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
	// ContainerName overrides the name derived from the home directory.
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Image         string `mapstructure:"image" yaml:"image" validate:"required"`
	Port          string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
}

// AuthCfg configures the identity header forwarded by the upstream provider.
type AuthCfg struct {
	UserHeader string `mapstructure:"user_header" yaml:"user_header" validate:"required"`
}

// DefaultsCfg seeds runtime settings the first time the store is initialized.
type DefaultsCfg struct {
	Platform    string `mapstructure:"platform" yaml:"platform" validate:"required"`
	CompareMode string `mapstructure:"compare_mode" yaml:"compare_mode" validate:"oneof=positional aligned"`
	ListLimit   int    `mapstructure:"list_limit" yaml:"list_limit" validate:"gte=1,lte=500"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Defra: DefraConfig{
			Image: "sourcenetwork/defradb:latest",
			Port:  "9181",
		},
		Auth: AuthCfg{
			UserHeader: "X-User-ID",
		},
		Defaults: DefaultsCfg{
			Platform:    "GPT",
			CompareMode: "positional",
			ListLimit:   50,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports the first violation per field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
