package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// envFiles are loaded in order. Existing variables are never overwritten,
// so earlier files take precedence over later ones.
var envFiles = []string{".env.local", ".env"}

// loadEnvFiles loads environment variables from .env files in the working
// directory. Missing files are skipped.
func loadEnvFiles() error {
	for _, name := range envFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return err
		}
		slog.Debug("Loaded environment variables", logfields.Path(name))
	}
	return nil
}
