package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads KEY=value pairs from dotenv files into the process
// environment so that ${VAR} references in the YAML can use them.
// Variables already set in the environment are left untouched.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}
