package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

// Engine holds the reference configuration every engine is built with.
type Engine struct {
	Namespace          string
	Admin              string
	NativeMint         string
	USDMint            string
	BridgeMint         string
	ReferenceSchedules []string
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Engine            Engine
	Journal           string
	ToSeq             uint64
	BatchSize         uint64
	Out               string
	PGDSN             string
	Store             string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Workers           int
	LogLevel          string
}

// ServeConfig holds configuration for the serve and inspect commands.
type ServeConfig struct {
	Engine   Engine
	Journal  string
	Store    string
	Listen   string
	LogLevel string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("batch-size", uint64(1000))
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("workers", 4)
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		Engine:            loadEngine(v),
		Journal:           v.GetString("journal"),
		ToSeq:             v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Store:             v.GetString("store"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Workers:           v.GetInt("workers"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("listen", ":8080")
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Engine:   loadEngine(v),
		Journal:  v.GetString("journal"),
		Store:    v.GetString("store"),
		Listen:   v.GetString("listen"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

// AMM parses the engine configuration. Empty mints stay unset.
func (e Engine) AMM() (amm.Config, error) {
	cfg := amm.Config{Namespace: e.Namespace}

	fields := []struct {
		name  string
		value string
		dst   *model.Address
	}{
		{"admin", e.Admin, &cfg.Admin},
		{"native-mint", e.NativeMint, &cfg.NativeMint},
		{"usd-mint", e.USDMint, &cfg.USDMint},
		{"bridge-mint", e.BridgeMint, &cfg.BridgeMint},
	}
	for _, f := range fields {
		addr, err := model.ParseAddress(strings.TrimSpace(f.value))
		if err != nil {
			return amm.Config{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = addr
	}
	if cfg.Admin.IsZero() {
		return amm.Config{}, fmt.Errorf("admin is required")
	}

	for _, raw := range e.ReferenceSchedules {
		index, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return amm.Config{}, fmt.Errorf("reference schedule %q: %w", raw, err)
		}
		cfg.ReferenceSchedules = append(cfg.ReferenceSchedules, uint16(index))
	}

	return cfg, nil
}

func loadEngine(v *viper.Viper) Engine {
	return Engine{
		Namespace:          v.GetString("namespace"),
		Admin:              v.GetString("admin"),
		NativeMint:         v.GetString("native-mint"),
		USDMint:            v.GetString("usd-mint"),
		BridgeMint:         v.GetString("bridge-mint"),
		ReferenceSchedules: getStringSlice(v, "reference-schedules"),
	}
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CPAMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("namespace", "cpamm")
	v.SetDefault("reference-schedules", "0")
	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
