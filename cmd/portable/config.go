package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configpkg "github.com/drblury/portable/internal/runtime/config"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "PORTABLE"

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"format":              "format",
	"routing-key-pattern": "routing_key_pattern",
	"pubsub-system":       "pubsub_system",
	"bus-name":            "bus_name",
}

// newViper reads the config file, PORTABLE_* variables and flags, in
// increasing precedence.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	for flag, key := range flagKeys {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// loadConfig returns the validated configuration with defaults applied.
func loadConfig(cmd *cobra.Command) (configpkg.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return configpkg.Config{}, err
	}

	var cfg configpkg.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return configpkg.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return configpkg.Config{}, err
	}
	return cfg, nil
}

func configKeys() []string {
	t := reflect.TypeFor[configpkg.Config]()
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("mapstructure"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
