package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	serviceHex  = "0x00000000000000000000000000000000000000a1"
	contractHex = "0x00000000000000000000000000000000000000a2"
	creatorHex  = "0x0000000000000000000000000000000000000001"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, uint64(1000), cfg.Fees.TransferFee)
	require.Equal(t, uint64(1000), cfg.Fees.AssetConfigFee)
	require.Equal(t, uint64(100), cfg.Fees.CollateralReleaseFee)

	// The default file is written so operators can edit it in place.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
ListenAddress = ":9090"
DataDir = "/var/lib/zaibatsu"
ServiceAddress = "` + serviceHex + `"
ContractAddress = "` + contractHex + `"
CreatorAddress = "` + creatorHex + `"
OracleAppID = 42
PausedModules = ["loan"]

[Fees]
TransferFee = 2000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, uint64(42), cfg.OracleAppID)
	require.Equal(t, []string{"loan"}, cfg.PausedModules)
	require.Equal(t, uint64(2000), cfg.Fees.TransferFee)
	// Omitted fee fields fall back to the substrate defaults.
	require.Equal(t, uint64(1000), cfg.Fees.AssetConfigFee)
	require.Equal(t, uint64(100), cfg.Fees.CollateralReleaseFee)

	require.NoError(t, cfg.Validate())

	service, err := cfg.Service()
	require.NoError(t, err)
	require.Equal(t, byte(0xA1), service[19])
}

func validConfig() *Config {
	return &Config{
		ListenAddress:   ":8080",
		DataDir:         "./data",
		ServiceAddress:  serviceHex,
		ContractAddress: contractHex,
		CreatorAddress:  creatorHex,
		PausedModules:   []string{},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.DataDir = ""
	cfg.InMemory = true
	require.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.ServiceAddress = "0x1234"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.CreatorAddress = "not-hex"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.PausedModules = []string{"governance"}
	require.Error(t, cfg.Validate())
}
