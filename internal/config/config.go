// Package config loads the optional JSON config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Skip       []string `json:"skip"`
	Depth      int      `json:"depth"`
	Workers    int      `json:"workers"`
	Confirm    *bool    `json:"confirm"`
	LogFile    string   `json:"log_file"`
	LogLevel   string   `json:"log_level"`
	Signatures []string `json:"signatures"` // kind:hexmagic entries added to the defaults
	Disable    []string `json:"disable"`    // kind names removed from the defaults
}

// Resolve picks the config file to load: an explicit path wins, otherwise the
// first existing file from the default chain.
func Resolve(root, explicit string) (string, bool, error) {
	if explicit != "" {
		return explicit, true, nil
	}
	for _, candidate := range defaultPaths(root) {
		if fileExists(candidate) {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Normalize(cfg)
}

func Normalize(cfg Config) (Config, error) {
	if cfg.Depth < 0 {
		return Config{}, errors.New("config: depth must be >= 0")
	}
	if cfg.Workers < 0 {
		return Config{}, errors.New("config: workers must be >= 0")
	}
	return cfg, nil
}

func defaultPaths(root string) []string {
	paths := []string{}
	if root != "" {
		paths = append(paths, filepath.Join(root, ".modelkill.json"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "modelkill", "config.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "modelkill", "config.json"))
	}
	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// MergeSkipDirs folds extra names into the default skip set.
func MergeSkipDirs(base map[string]struct{}, extra []string) map[string]struct{} {
	if len(extra) == 0 {
		return base
	}
	if base == nil {
		base = map[string]struct{}{}
	}
	for _, item := range extra {
		if item == "" {
			continue
		}
		base[item] = struct{}{}
	}
	return base
}
