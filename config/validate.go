package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

var knownModules = map[string]bool{"pool": true, "loan": true}

// Validate checks the loaded configuration for values the daemon cannot
// start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must be set")
	}
	if !c.InMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must be set unless InMemory is enabled")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"ServiceAddress", c.ServiceAddress},
		{"ContractAddress", c.ContractAddress},
		{"CreatorAddress", c.CreatorAddress},
	} {
		if _, err := decodeAddress(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	for _, module := range c.PausedModules {
		if !knownModules[module] {
			return fmt.Errorf("config: unknown module %q in PausedModules", module)
		}
	}
	return nil
}

// Service returns the decoded service contract escrow account.
func (c *Config) Service() ([20]byte, error) {
	return decodeAddress(c.ServiceAddress)
}

// Contract returns the decoded contract escrow account.
func (c *Config) Contract() ([20]byte, error) {
	return decodeAddress(c.ContractAddress)
}

// Creator returns the decoded creator account.
func (c *Config) Creator() ([20]byte, error) {
	return decodeAddress(c.CreatorAddress)
}

func decodeAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex address %q", value)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("address %q must be %d bytes", value, len(out))
	}
	copy(out[:], raw)
	return out, nil
}
