package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runoshun/git-jar/internal/domain"
)

//go:embed template.toml
var templateContent string

// Template returns the commented default configuration.
func Template() string {
	return templateContent
}

// Manager manages the global configuration file.
type Manager struct {
	globalConfDir string // Path to global config directory (e.g., ~/.config/git-jar)
}

// NewManager creates a new Manager.
func NewManager() *Manager {
	return &Manager{globalConfDir: defaultGlobalConfigDir()}
}

// NewManagerWithGlobalDir creates a new Manager with a custom global config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(globalConfDir string) *Manager {
	return &Manager{globalConfDir: globalConfDir}
}

// GlobalConfigInfo returns information about the global config file.
func (m *Manager) GlobalConfigInfo() domain.ConfigInfo {
	if m.globalConfDir == "" {
		return domain.ConfigInfo{}
	}
	path := filepath.Join(m.globalConfDir, domain.ConfigFileName)
	content, err := os.ReadFile(path) //nolint:gosec // config path
	if err != nil {
		return domain.ConfigInfo{Path: path}
	}
	return domain.ConfigInfo{Path: path, Content: string(content), Exists: true}
}

// InitGlobalConfig writes the default template. It refuses to overwrite an
// existing file unless force is set.
func (m *Manager) InitGlobalConfig(force bool) (string, error) {
	if m.globalConfDir == "" {
		return "", errors.New("cannot determine global config directory")
	}
	path := filepath.Join(m.globalConfDir, domain.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%w: %s", domain.ErrConfigExists, path)
	}
	if err := os.MkdirAll(m.globalConfDir, 0o750); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(templateContent), 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
