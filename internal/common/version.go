package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Version information (set via -ldflags during build)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit: %s)", Version, GitCommit)
}

// LoadVersionFromFile reads version from a .version file next to the binary
func LoadVersionFromFile() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
	if err != nil {
		return Version
	}

	if version := strings.TrimSpace(string(data)); version != "" {
		Version = version
	}
	return Version
}
