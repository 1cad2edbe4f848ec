package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.sightings, or $SIGHTINGS_HOME when set.
func BaseDir() string {
	if v := os.Getenv("SIGHTINGS_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sightings")
}

// Dir returns the field client profile directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// StorePath returns the durable local store of a profile.
func StorePath(name string) string {
	return filepath.Join(Dir(name), "field.db")
}

// LogPath returns the client log file of a profile.
func LogPath(name string) string {
	return filepath.Join(Dir(name), "logs", "field.log")
}

// ConfigPath returns the client config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// ServerDir holds the sightd runtime files.
func ServerDir() string {
	return filepath.Join(BaseDir(), "server")
}

// ServerConfigPath returns the sightd config file path.
func ServerConfigPath() string {
	return filepath.Join(ServerDir(), "sightd.toml")
}

// ServerSocketPath returns the sightd control socket path.
func ServerSocketPath() string {
	return filepath.Join(ServerDir(), "sightd.sock")
}

// ServerLogPath returns the sightd log file path.
func ServerLogPath() string {
	return filepath.Join(ServerDir(), "logs", "sightd.log")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), filepath.Dir(LogPath(name))} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
