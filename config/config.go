package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/custlens-org/custlens/contract"
)

// ============================================================================
// CONFIGURATION — sample catalog, keyword lists, server settings
// ============================================================================
// Each module owns its loose-routing keyword list and its sample-file entry;
// both are plain configuration so deployments can tune them without touching
// router code. Precedence: env (CUSTLENS_*) > config file > defaults.
// ============================================================================

// Config is the effective application configuration.
type Config struct {
	Server   Server              `mapstructure:"server" yaml:"server"`
	DataDir  string              `mapstructure:"data_dir" yaml:"data_dir"`
	Samples  map[string]string   `mapstructure:"samples" yaml:"samples"`
	Keywords map[string][]string `mapstructure:"keywords" yaml:"keywords"`
	LogLevel string              `mapstructure:"log_level" yaml:"log_level"`
}

// Server holds the HTTP ingestion surface settings.
type Server struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	MaxUploadSize int64  `mapstructure:"max_upload_size" yaml:"max_upload_size"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:          ":8080",
			MaxUploadSize: 32 << 20,
		},
		DataDir: filepath.Join("data", "sample"),
		Samples: map[string]string{
			"churn":        "sample_churn.csv",
			"segmentation": "sample_segmentation.csv",
			"sentiment":    "sample_sentiment.csv",
		},
		Keywords: map[string][]string{
			"churn":        {"churn", "tenure", "contract", "exited", "monthly"},
			"segmentation": {"age", "spending", "income", "invoice", "amount", "total", "profession"},
			"sentiment":    {"review", "comment", "feedback", "body"},
			"geo":          {"route", "destination", "country", "region", "state", "city", "province", "zip", "postal"},
		},
		LogLevel: "info",
	}
}

// Load reads configuration from file, env, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CUSTLENS")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.max_upload_size", def.Server.MaxUploadSize)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("samples", def.Samples)
	v.SetDefault("keywords", def.Keywords)
	v.SetDefault("log_level", def.LogLevel)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("custlens")
		v.SetConfigType("yaml")
		_ = v.ReadInConfig() // optional
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Save writes the configuration as YAML.
func Save(c *Config, path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SamplePath resolves a sample-file key to its on-disk path. The second
// return is false for unknown keys.
func (c *Config) SamplePath(key string) (string, bool) {
	name, ok := c.Samples[key]
	if !ok {
		return "", false
	}
	if filepath.IsAbs(name) {
		return name, true
	}
	return filepath.Join(c.DataDir, name), true
}

// ModuleKeywords returns the loose-routing keyword table keyed by module,
// in module declaration order. Modules absent from the config simply have
// no keywords and never activate under loose routing.
func (c *Config) ModuleKeywords() map[contract.Module][]string {
	out := make(map[contract.Module][]string, len(c.Keywords))
	for _, m := range contract.Modules() {
		if kws, ok := c.Keywords[string(m)]; ok {
			out[m] = kws
		}
	}
	return out
}
