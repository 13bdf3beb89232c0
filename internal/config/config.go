// Package config loads the walletd configuration from config.yaml with
// environment overrides layered on top.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RPC     RPCConfig     `yaml:"rpc"`
	Storage StorageConfig `yaml:"storage"`
	Custody CustodyConfig `yaml:"custody"`
}

type RPCConfig struct {
	Addr           string  `yaml:"addr"`
	Token          string  `yaml:"token"`
	RateLimitRPS   float64 `yaml:"rateLimitRps"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

type CustodyConfig struct {
	// DemoMode selects the plaintext custody policy. Local development only;
	// records written this way are migrated when reopened encrypted.
	DemoMode bool `yaml:"demoMode"`
}

func Default() Config {
	return Config{
		RPC: RPCConfig{
			Addr:           "127.0.0.1:8790",
			RateLimitRPS:   30,
			RateLimitBurst: 60,
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
	}
}

// LoadFromPath reads the first readable candidate config file and applies env
// overrides. A missing or unparsable file falls back to defaults; config is
// never a reason the daemon cannot start.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates, "configs/config.yaml")
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merge(&cfg, parsed)
		break
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func merge(dst *Config, src Config) {
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.RPC.RateLimitRPS > 0 {
		dst.RPC.RateLimitRPS = src.RPC.RateLimitRPS
	}
	if src.RPC.RateLimitBurst > 0 {
		dst.RPC.RateLimitBurst = src.RPC.RateLimitBurst
	}
	if src.Storage.DataDir != "" {
		dst.Storage.DataDir = src.Storage.DataDir
	}
	dst.Custody.DemoMode = src.Custody.DemoMode
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("WALLETD_RPC_ADDR")); v != "" {
		cfg.RPC.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("WALLETD_RPC_TOKEN")); v != "" {
		cfg.RPC.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("WALLETD_RPC_RATE_LIMIT_RPS")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			cfg.RPC.RateLimitRPS = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("WALLETD_RPC_RATE_LIMIT_BURST")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.RPC.RateLimitBurst = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("WALLETD_DATA_DIR")); v != "" {
		cfg.Storage.DataDir = v
	}
	if v, ok := parseBoolEnv("WALLETD_DEMO_MODE"); ok {
		cfg.Custody.DemoMode = v
	}
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blink-wallet"
	}
	return home + "/.blink-wallet"
}
