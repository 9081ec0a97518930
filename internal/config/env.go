package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
)

// EnvFiles lists the dotenv files read at startup, nearest first.
func EnvFiles() []string {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "recovery-tracker", ".env"))
	}
	return paths
}

// LoadEnvFiles exports variables from the dotenv files that exist. A
// variable already present in the environment is left alone, so the
// nearest file wins over the ones after it.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := gotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
