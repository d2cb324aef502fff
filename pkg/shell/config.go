package shell

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the shell configuration, loaded from rc.yaml in the user config
// directory (or the path given with -rc).
type Config struct {
	Prompt        string         `yaml:"prompt"`
	ContPrompt    string         `yaml:"contPrompt"`
	HistoryFile   string         `yaml:"historyFile"`
	Globals       map[string]any `yaml:"globals"`
	CurrentModule string         `yaml:"currentModule"`
}

func defaultConfig() Config {
	return Config{Prompt: "rp> ", ContPrompt: "... "}
}

func configPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "robinpath", "rc.yaml"), nil
}

func loadConfig(explicit string) (Config, error) {
	cfg := defaultConfig()
	path, err := configPath(explicit)
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && explicit == "" {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultConfig().Prompt
	}
	if cfg.ContPrompt == "" {
		cfg.ContPrompt = defaultConfig().ContPrompt
	}
	return cfg, nil
}

func historyPath(cfg Config, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg.HistoryFile != "" {
		return cfg.HistoryFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "robinpath", "history.db")
}
