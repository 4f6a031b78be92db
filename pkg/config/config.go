// Package config owns the process-wide mutable configuration: the local
// projects root and optional token material. Per the design note on
// global mutable state, access goes through a single owner type with
// explicit Get/Set methods — no free functions, no package-level map.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/mcpgas/mcp-gas/pkg/logger"
)

var configLog = logger.New("config:store")

// Data is the persisted shape of the JSON configuration file.
type Data struct {
	ProjectsRoot string `json:"projectsRoot"`
	AccessToken  string `json:"accessToken,omitempty"`
}

// Overrides is the shape of the optional local YAML override file
// (.mcp-gas.yml), which never carries token material — only project-local
// preferences like a default environment or a log filter.
type Overrides struct {
	DefaultEnvironment string `yaml:"defaultEnvironment,omitempty"`
	LogFilter          string `yaml:"logFilter,omitempty"`
}

// Store is the single owner of configuration state. All reads and writes
// go through its methods, which serialize access with mu.
type Store struct {
	mu        sync.Mutex
	path      string
	data      Data
	loaded    bool
	overrides Overrides
}

// New creates a Store backed by the default config file location,
// honoring the MCP_GAS_PROJECTS_ROOT / MCP_GAS_WORKING_DIR overrides at
// the point of use (not baked in here).
func New() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving user config dir: %w", err)
	}
	return NewAtPath(filepath.Join(dir, "mcp-gas", "config.json")), nil
}

// NewAtPath creates a Store backed by an explicit file path, primarily
// for tests.
func NewAtPath(path string) *Store {
	return &Store{path: path}
}

// Load reads the JSON config file (if present) and, if a .mcp-gas.yml file
// sits alongside it, merges its overrides. Missing files are not an error;
// the store simply stays at zero values.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, &s.data); jsonErr != nil {
			return fmt.Errorf("parsing config at %s: %w", s.path, jsonErr)
		}
	case os.IsNotExist(err):
		configLog.Printf("no config file at %s, using defaults", s.path)
	default:
		return fmt.Errorf("reading config at %s: %w", s.path, err)
	}

	overridesPath := filepath.Join(filepath.Dir(s.path), ".mcp-gas.yml")
	rawYAML, err := os.ReadFile(overridesPath)
	if err == nil {
		if yamlErr := yaml.Unmarshal(rawYAML, &s.overrides); yamlErr != nil {
			return fmt.Errorf("parsing overrides at %s: %w", overridesPath, yamlErr)
		}
		configLog.Printf("loaded local overrides from %s", overridesPath)
	}

	return nil
}

// Save writes the current data back to the JSON config file, creating
// parent directories as needed. The file is written 0600 since it may
// carry token material, matching the teacher's git.go permission
// hardening for token-bearing files.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing config at %s: %w", s.path, err)
	}
	return nil
}

// ProjectsRoot returns the local projects root: the MCP_GAS_PROJECTS_ROOT
// environment override if set, else the configured value, else a
// per-user default directory.
func (s *Store) ProjectsRoot() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v := os.Getenv("MCP_GAS_PROJECTS_ROOT"); v != "" {
		return v
	}
	if s.data.ProjectsRoot != "" {
		return s.data.ProjectsRoot
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mcp-gas", "projects")
	}
	return filepath.Join(home, ".mcp-gas", "projects")
}

// SetProjectsRoot updates the in-memory projects root; callers must call
// Save to persist it.
func (s *Store) SetProjectsRoot(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ProjectsRoot = root
}

// AccessToken returns the configured token, preferring no environment
// override (token material is deliberately not read from a generic env
// var here — callers supply it per-call or via session, per spec §4.5
// Phase A.1).
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AccessToken
}

// SetAccessToken updates the in-memory token; callers must call Save to
// persist it.
func (s *Store) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AccessToken = token
}

// Overrides returns a copy of the loaded local YAML overrides.
func (s *Store) Overrides() Overrides {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides
}

// VerboseLogging reports whether MCP_GAS_VERBOSE_LOGGING is set, toggling
// per-request debug dumps per spec §6.
func VerboseLogging() bool {
	return os.Getenv("MCP_GAS_VERBOSE_LOGGING") != ""
}
