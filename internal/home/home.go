// Package home manages the ~/.stencil directory layout: shared pattern
// libraries, validation reports, and the run history database.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the stencil home directory.
	DefaultDirName = ".stencil"

	// LibrariesDirName is the subdirectory for saved pattern libraries.
	LibrariesDirName = "libraries"

	// ReportsDirName is the subdirectory for validation and extraction reports.
	ReportsDirName = "reports"

	// DocumentsDirName is the subdirectory for staged document text.
	DocumentsDirName = "documents"

	// RunsDBName is the SQLite run history database file.
	RunsDBName = "runs.db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the stencil home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.stencil).
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

// LibrariesDir returns the directory for saved pattern libraries.
func (d *Dir) LibrariesDir() string {
	return filepath.Join(d.path, LibrariesDirName)
}

// LibraryPath returns the path for a named pattern library.
func (d *Dir) LibraryPath(name string) string {
	return filepath.Join(d.LibrariesDir(), name+".regex.json")
}

// ReportsDir returns the directory for validation and extraction reports.
func (d *Dir) ReportsDir() string {
	return filepath.Join(d.path, ReportsDirName)
}

// DocumentsDir returns the directory for staged document text.
func (d *Dir) DocumentsDir() string {
	return filepath.Join(d.path, DocumentsDirName)
}

// RunsDBPath returns the path to the run history database.
func (d *Dir) RunsDBPath() string {
	return filepath.Join(d.path, RunsDBName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.LibrariesDir(), d.ReportsDir(), d.DocumentsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
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
