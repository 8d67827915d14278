package config

import (
	"os"
	"path/filepath"
)

func GetRuntimePath() string {
	path := os.Getenv("HINDSIGHT_RUNTIME_PATH")
	if path == "" {
		path = ".hindsight"
	}

	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

func IsDebug() bool {
	return os.Getenv("HINDSIGHT_DEBUG") == "1"
}
