package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Chain struct {
		RPCURL          string `yaml:"rpc_url"`
		QuizNFTAddr     string `yaml:"quiz_nft_address"`
		CreatorNFTAddr  string `yaml:"creator_nft_address"`
		ConfirmAttempts int    `yaml:"confirm_attempts"`
		ConfirmInterval string `yaml:"confirm_interval"`
		RPCTimeout      string `yaml:"rpc_timeout"`
	} `yaml:"chain"`
	Artwork struct {
		AssetsDir string `yaml:"assets_dir"`
	} `yaml:"artwork"`
	Metadata struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"metadata"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
