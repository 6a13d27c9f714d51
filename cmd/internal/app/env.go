package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are never overridden. An empty path means
// COYOTE_ENV_FILE, then ".env"; only an explicitly named file must exist.
func LoadDotEnv(path string) (string, error) {
	explicit := true
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("COYOTE_ENV_FILE"))
	}
	if path == "" {
		path, explicit = defaultEnvFile, false
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: env file %s: %v", ErrConfig, path, err)
	}
	return path, nil
}

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// EnvBool reads a bool env var with a default.
func EnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
