package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/engine"
)

// PortConfig defines a saved MIDI port binding
type PortConfig struct {
	Input  string `json:"input,omitempty"`  // substring match against port names
	Output string `json:"output,omitempty"` // empty means first available
}

// Config is the main configuration structure
type Config struct {
	Ports       PortConfig               `json:"ports,omitempty"`
	Arpeggiator engine.ArpConfig         `json:"arpeggiator"`
	MPE         engine.MPEConfig         `json:"mpe"`
	NoteEffects engine.NoteEffectsConfig `json:"noteEffects"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Arpeggiator: engine.DefaultArpConfig(),
		MPE:         engine.DefaultMPEConfig(),
		NoteEffects: engine.DefaultNoteEffectsConfig(),
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sound-designer"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
