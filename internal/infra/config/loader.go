// Package config provides configuration loading functionality.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/runoshun/git-jar/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Loader loads configuration from TOML files.
type Loader struct {
	explicitPath  string // --config file, must exist when set
	globalConfDir string // Path to global config directory (e.g., ~/.config/git-jar)
}

// NewLoader creates a new Loader. explicitPath may be empty.
func NewLoader(explicitPath string) *Loader {
	return &Loader{
		explicitPath:  explicitPath,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(explicitPath, globalConfDir string) *Loader {
	return &Loader{
		explicitPath:  explicitPath,
		globalConfDir: globalConfDir,
	}
}

// defaultGlobalConfigDir returns the default global config directory.
func defaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return domain.GlobalConfigDir(configHome)
}

// GlobalPath returns the global config file path, empty if unknown.
func (l *Loader) GlobalPath() string {
	if l.globalConfDir == "" {
		return ""
	}
	return filepath.Join(l.globalConfDir, domain.ConfigFileName)
}

// Load returns the merged configuration.
// Merge order: default <- global <- explicit file (later takes precedence),
// then JAR_HOME overrides root.
func (l *Loader) Load() (*domain.Config, error) {
	cfg := domain.NewDefaultConfig()

	if path := l.GlobalPath(); path != "" {
		if err := applyFile(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if l.explicitPath != "" {
		if err := applyFile(cfg, l.explicitPath); err != nil {
			return nil, err
		}
	}

	root, err := ResolveRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	return cfg, nil
}

// applyFile decodes path on top of cfg. Keys missing from the file keep their
// current values. Unknown keys are recorded as warnings.
func applyFile(cfg *domain.Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // config path chosen by the user
	if err != nil {
		return err
	}

	var check domain.Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&check); err != nil {
		var strict *toml.StrictMissingError
		if !errors.As(err, &strict) {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, e := range strict.Errors {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("unknown key in %s: %s", filepath.Base(path), strings.Join(e.Key(), ".")))
		}
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ResolveRoot returns the data root: JAR_HOME if set, else the configured
// root with ~ expanded, else $XDG_DATA_HOME/git-jar (~/.local/share/git-jar).
func ResolveRoot(configured string) (string, error) {
	if env := os.Getenv(domain.HomeEnv); env != "" {
		configured = env
	}
	if configured == "" {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			dataHome = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataHome, "git-jar"), nil
	}
	if configured == "~" || strings.HasPrefix(configured, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		configured = filepath.Join(home, strings.TrimPrefix(configured, "~"))
	}
	return filepath.Abs(configured)
}
