/*
Package config manages the TOML configuration of the kuaizi engine and CLI.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Engine EngineConfig `toml:"engine"`
	Log    LogConfig    `toml:"log"`
}

// StoreConfig locates the dictionary files and sizes the I/O pool.
type StoreConfig struct {
	// DataDir receives the app dictionary copy and the user store.
	DataDir string `toml:"data_dir"`
	// AssetsDir holds the packaged pinyin_dict.db and its hash.
	AssetsDir string `toml:"assets_dir"`
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
}

// EngineConfig tunes candidate lookups.
type EngineConfig struct {
	TopCandidates    int  `toml:"top_candidates"`
	TopEmojis        int  `toml:"top_emojis"`
	CandidateCache   int  `toml:"candidate_cache"`
	UserDataDisabled bool `toml:"user_data_disabled"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:   defaultDataDir(),
			AssetsDir: "assets",
			Workers:   5,
			QueueSize: 64,
		},
		Engine: EngineConfig{
			TopCandidates:  10,
			TopEmojis:      8,
			CandidateCache: 256,
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "kuaizi")
	}
	return "data"
}

// DefaultPath returns the default location of config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "kuaizi", "config.toml"), nil
}

// LoadConfig loads from a TOML file. Keys absent from the file keep their
// default values.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	config.normalize()
	return config, nil
}

// LoadOrDefault loads configPath, falling back to the default path and then
// to builtin defaults. It returns the path actually used, empty for defaults.
func LoadOrDefault(configPath string) (*Config, string) {
	if configPath != "" {
		config, err := LoadConfig(configPath)
		if err == nil {
			log.Debugf("Loaded config from %s", configPath)
			return config, configPath
		}
		log.Warnf("Failed to load config from %s: %v. Trying default path...", configPath, err)
	}

	defaultPath, err := DefaultPath()
	if err != nil {
		return DefaultConfig(), ""
	}
	if _, err := os.Stat(defaultPath); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), ""
	}
	config, err := LoadConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), ""
	}
	return config, defaultPath
}

// SaveConfig saves into a TOML file, creating its directory.
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(config); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// AppDictPath is the device copy of the packaged dictionary.
func (c *Config) AppDictPath() string {
	return filepath.Join(c.Store.DataDir, "pinyin_app.db")
}

// UserDictPath is the user history store.
func (c *Config) UserDictPath() string {
	return filepath.Join(c.Store.DataDir, "pinyin_user.db")
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Store.Workers <= 0 {
		c.Store.Workers = d.Store.Workers
	}
	if c.Store.QueueSize <= 0 {
		c.Store.QueueSize = d.Store.QueueSize
	}
	if c.Engine.TopCandidates < 0 {
		c.Engine.TopCandidates = d.Engine.TopCandidates
	}
	if c.Engine.TopEmojis < 0 {
		c.Engine.TopEmojis = d.Engine.TopEmojis
	}
	if c.Engine.CandidateCache <= 0 {
		c.Engine.CandidateCache = d.Engine.CandidateCache
	}
}
