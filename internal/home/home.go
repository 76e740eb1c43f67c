package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	// DefaultDirName is the default name for the promptshelf home directory.
	DefaultDirName = ".promptshelf"

	// DataDirName is the subdirectory mounted into the DefraDB container.
	DataDirName = "defradb"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// PIDFileName records the running server's process ID.
	PIDFileName = "server.pid"
)

// Dir represents the promptshelf home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.promptshelf).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the DefraDB data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PIDPath returns the path of the server PID file.
func (d *Dir) PIDPath() string {
	return filepath.Join(d.path, PIDFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// WritePID records the current process ID.
func (d *Dir) WritePID() error {
	return os.WriteFile(d.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// RemovePID deletes the PID file, ignoring a missing file.
func (d *Dir) RemovePID() {
	_ = os.Remove(d.PIDPath())
}

// ReadPID returns the recorded process ID.
func (d *Dir) ReadPID() (int, error) {
	data, err := os.ReadFile(d.PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file contents: %w", err)
	}
	return pid, nil
}

// RunningPID returns the PID of another live server using this home, or 0.
// A stale PID file is removed.
func (d *Dir) RunningPID() int {
	pid, err := d.ReadPID()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.RemovePID()
		}
		return 0
	}
	if pid == os.Getpid() || !processAlive(pid) {
		d.RemovePID()
		return 0
	}
	return pid
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without sending a real signal.
	return proc.Signal(syscall.Signal(0)) == nil
}
