package file

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotEnv merges the given .env files into the process environment.
// Variables that are already set win. Missing files are skipped.
// With no arguments, ".env" in the working directory is loaded.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}
