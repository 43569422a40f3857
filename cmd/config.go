package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DistConfig struct {
	Root    string `mapstructure:"root"`
	Repo    string `mapstructure:"repo"`
	Release string `mapstructure:"release"`
	Offline bool   `mapstructure:"offline"`
	Output  string `mapstructure:"output"`
}

type Settings struct {
	BatchSize       int           `mapstructure:"batch_size"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
	SampleSize      int           `mapstructure:"sample_size"`
	LookupThreshold int64         `mapstructure:"lookup_threshold"`
}

// GetDistConfig returns the distribution configuration with the
// flag > config > default precedence already applied by viper.
func GetDistConfig() (*DistConfig, error) {
	var config DistConfig
	if err := viper.UnmarshalKey("distribution", &config); err != nil {
		return nil, fmt.Errorf("failed to parse distribution config: %w", err)
	}
	return &config, nil
}

// GetSettings returns the tuning knobs; every field has a default.
func GetSettings() (*Settings, error) {
	var s Settings
	if err := viper.UnmarshalKey("settings", &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings config: %w", err)
	}
	return &s, nil
}
