/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package config loads the ml-workspace-build configuration file.
//
// Values are resolved with the precedence CLI flags > environment variables
// (MLWS_ prefix) > config file > defaults. Flags are layered on top by the
// cli package; this package handles the remaining three levels.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// FileName is the config file name without extension.
	FileName = "ml-workspace-build"
	// EnvPrefix is the environment variable prefix, e.g. MLWS_LOG_LEVEL.
	EnvPrefix = "MLWS"
)

// Config is the full configuration of a run.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry" json:"registry"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build" json:"build"`
	BuildKit BuildKitConfig `mapstructure:"buildkit" yaml:"buildkit" json:"buildkit"`
	Release  ReleaseConfig  `mapstructure:"release" yaml:"release" json:"release"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" jsonschema:"enum=text,enum=color,enum=json"`
}

// RegistryConfig holds registry-related configuration
type RegistryConfig struct {
	// Prefix is prepended to image names on push, e.g. "khulnasoft/" or "ghcr.io/acme/".
	Prefix string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
}

// BuildConfig holds image build configuration
type BuildConfig struct {
	// Context is the Docker build context directory.
	Context string `mapstructure:"context" yaml:"context" json:"context"`
	// Dockerfile is the Dockerfile path, relative to the working directory.
	Dockerfile string `mapstructure:"dockerfile" yaml:"dockerfile" json:"dockerfile"`
	// Platform is an optional target platform such as linux/amd64.
	Platform string `mapstructure:"platform" yaml:"platform" json:"platform,omitempty"`
	// NoCache disables the BuildKit cache.
	NoCache bool `mapstructure:"no_cache" yaml:"no_cache" json:"no_cache"`
	// CacheFrom lists cache import specs, e.g. "type=registry,ref=user/app:cache".
	CacheFrom []string `mapstructure:"cache_from" yaml:"cache_from" json:"cache_from,omitempty"`
	// CacheTo lists cache export specs.
	CacheTo []string `mapstructure:"cache_to" yaml:"cache_to" json:"cache_to,omitempty"`
	// BaseImageFromRegistry pins the gpu flavor on the registry image
	// instead of the locally built one.
	BaseImageFromRegistry bool `mapstructure:"base_image_from_registry" yaml:"base_image_from_registry" json:"base_image_from_registry"`
}

// BuildKitConfig holds BuildKit connection settings
type BuildKitConfig struct {
	// Endpoint is a BuildKit address (docker-container://, tcp://, unix://).
	// Empty auto-detects a running buildx builder.
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint,omitempty"`
	TLSEnabled bool   `mapstructure:"tls_enabled" yaml:"tls_enabled" json:"tls_enabled"`
	TLSCACert  string `mapstructure:"tls_ca_cert" yaml:"tls_ca_cert" json:"tls_ca_cert,omitempty"`
	TLSCert    string `mapstructure:"tls_cert" yaml:"tls_cert" json:"tls_cert,omitempty"`
	TLSKey     string `mapstructure:"tls_key" yaml:"tls_key" json:"tls_key,omitempty"`
}

// ReleaseConfig holds release configuration
type ReleaseConfig struct {
	// Concurrency bounds parallel pushes. 1 pushes flavors one at a time.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency" jsonschema:"minimum=1"`
}

// Load reads the configuration from the first config file found in the
// search path, the environment and defaults. A missing config file is not an
// error.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, dir := range GetConfigDirs() {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil && !IsNotFoundError(err) {
		return nil, err
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		return &Config{}
	}
	return cfg
}

// IsNotFoundError reports whether err means no config file exists.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")

	v.SetDefault("registry.prefix", "khulnasoft/")

	v.SetDefault("build.context", ".")
	v.SetDefault("build.dockerfile", "Dockerfile")
	v.SetDefault("build.platform", "")
	v.SetDefault("build.no_cache", false)
	v.SetDefault("build.cache_from", []string{})
	v.SetDefault("build.cache_to", []string{})
	v.SetDefault("build.base_image_from_registry", false)

	v.SetDefault("buildkit.endpoint", "")
	v.SetDefault("buildkit.tls_enabled", false)
	v.SetDefault("buildkit.tls_ca_cert", "")
	v.SetDefault("buildkit.tls_cert", "")
	v.SetDefault("buildkit.tls_key", "")

	v.SetDefault("release.concurrency", 1)
}

// bindEnvVars binds keys whose environment names differ from the key path.
func bindEnvVars(v *viper.Viper) {
	// Same variable the docker buildx CLI honors.
	_ = v.BindEnv("buildkit.endpoint", EnvPrefix+"_BUILDKIT_ENDPOINT", "BUILDKIT_HOST")
}

// GetConfigDirs returns the directories searched for the config file after
// the working directory, in priority order.
func GetConfigDirs() []string {
	dirs := []string{}

	if configHome := getConfigHome(); configHome != "" {
		dirs = append(dirs, filepath.Join(configHome, FileName))
	}

	return dirs
}

// getConfigHome returns $XDG_CONFIG_HOME or ~/.config.
func getConfigHome() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return configHome
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}

	return ""
}
