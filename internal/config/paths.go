// Package config holds the runtime directory layout, the optional TOML user
// configuration and the keybinding table loaded from keybinds.conf.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// RuntimeDir returns the per-user runtime directory, creating it with mode
// 0700 if it does not exist. All sockets, lock files and logs live here.
func RuntimeDir() (string, error) {
	tmp := os.Getenv("TMPDIR")
	if tmp == "" {
		tmp = "/tmp"
	}
	dir := filepath.Join(tmp, fmt.Sprintf("muxkit-%d", os.Getuid()))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create runtime dir: %w", err)
	}
	info, err := os.Lstat(dir)
	if err != nil {
		return "", fmt.Errorf("stat runtime dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("runtime path %s is not a directory", dir)
	}
	return dir, nil
}

// SocketPath returns the default session socket inside the runtime dir.
func SocketPath() (string, error) {
	dir, err := RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "default"), nil
}

// LockPath returns the advisory lock file guarding server startup for the
// given socket path.
func LockPath(socketPath string) string {
	return socketPath + ".lock"
}

// KeybindsPath returns the keybinds.conf path next to the socket.
func KeybindsPath(socketPath string) string {
	return filepath.Join(filepath.Dir(socketPath), "keybinds.conf")
}

// LogPath returns the log file path for the given role ("client" or
// "server") inside the runtime dir.
func LogPath(role string) (string, error) {
	dir, err := RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, role+".log"), nil
}

// UserConfigPath returns the optional TOML configuration file under the
// XDG config home.
func UserConfigPath() (string, error) {
	path, err := xdg.ConfigFile("muxkit/config.toml")
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}
