package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"zaibatsu/native/assets"
)

type Config struct {
	// ListenAddress serves /healthz and /metrics.
	ListenAddress string `toml:"ListenAddress"`
	// DataDir holds the LevelDB record store. Ignored when InMemory is set.
	DataDir  string `toml:"DataDir"`
	InMemory bool   `toml:"InMemory"`

	// ServiceAddress is the service contract escrow account, hex encoded.
	ServiceAddress string `toml:"ServiceAddress"`
	// ContractAddress is the suite's own escrow account, hex encoded.
	ContractAddress string `toml:"ContractAddress"`
	// CreatorAddress seeds the admin set on first start, hex encoded.
	CreatorAddress string `toml:"CreatorAddress"`

	// OracleAppID is the application whose state holds asset unit prices.
	OracleAppID uint64 `toml:"OracleAppID"`

	// PausedModules lists engine modules refusing mutations ("pool", "loan").
	PausedModules []string `toml:"PausedModules"`

	Fees assets.FeeSchedule `toml:"Fees"`
}

// Load reads the configuration at path, writing a default file first when
// none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	cfg.Fees = cfg.Fees.Normalise()

	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8080",
		DataDir:       "./zaibatsu-data",
		PausedModules: []string{},
		Fees:          assets.DefaultFeeSchedule(),
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
