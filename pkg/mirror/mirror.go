// Package mirror implements LocalMirror (C7): the bidirectional mapping
// between GAS files and the on-disk project mirror, plus the root/working
// directory resolution rules. It is the only component that touches the
// filesystem for source content.
package mirror

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

var mirrorLog = logger.New("mirror:local")

// workspaceMarker is the file LocalMirror looks for when walking upward
// from the current directory to find a project's working root.
const workspaceMarker = ".mcp-gas-workspace"

// Mirror is the LocalMirror implementation, rooted at a specific
// project's directory: <root>/<projectId>/.
type Mirror struct {
	root      string
	projectID constants.ProjectID
}

// New constructs a Mirror for the given project under the given projects
// root (the value returned by config.Store.ProjectsRoot).
func New(projectsRoot string, projectID constants.ProjectID) *Mirror {
	return &Mirror{root: filepath.Join(projectsRoot, string(projectID)), projectID: projectID}
}

// RootDir returns the project-specific directory this Mirror manages.
func (m *Mirror) RootDir() string { return m.root }

// EnsureRoot creates the project root directory if it does not exist.
func (m *Mirror) EnsureRoot() error {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return mcperrors.Wrap(mcperrors.KindFileSystem, err, "creating project root %s", m.root)
	}
	return nil
}

// ResolveWorkingDir implements the working-directory resolution order:
// MCP_GAS_WORKING_DIR override wins; otherwise walk upward from the
// current directory seeking workspaceMarker; otherwise fall back to the
// project root itself (the persistent per-user fallback).
func (m *Mirror) ResolveWorkingDir() (string, error) {
	if override := os.Getenv("MCP_GAS_WORKING_DIR"); override != "" {
		return override, nil
	}

	cwd, err := os.Getwd()
	if err == nil {
		if found, ok := findUpward(cwd, workspaceMarker); ok {
			return found, nil
		}
	}

	mirrorLog.Printf("no workspace marker found; falling back to project root %s", m.root)
	return m.root, nil
}

func findUpward(start, marker string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ToLocalPath maps a GAS file to its local path, relative to m.root.
func ToLocalPath(f gasmodel.RemoteFile) string {
	return gasmodel.ToLocalPath(f.Name, f.Type)
}

// WriteFile writes one remote file's content into the local mirror,
// creating parent directories and normalizing backslashes per §3.
func (m *Mirror) WriteFile(f gasmodel.RemoteFile) error {
	rel := strings.ReplaceAll(ToLocalPath(f), `\`, "/")
	full := filepath.Join(m.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return mcperrors.Wrap(mcperrors.KindFileSystem, err, "creating directory for %s", rel)
	}
	if err := os.WriteFile(full, []byte(f.Source), 0o644); err != nil {
		return mcperrors.Wrap(mcperrors.KindFileSystem, err, "writing %s", rel)
	}
	return nil
}

// ReadFile reads one local file by its GAS name and type, returning its
// content and modification time.
func (m *Mirror) ReadFile(name string, ft constants.FileType) (gasmodel.LocalFile, error) {
	rel := gasmodel.ToLocalPath(name, ft)
	full := filepath.Join(m.root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return gasmodel.LocalFile{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "stat %s", rel)
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return gasmodel.LocalFile{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "reading %s", rel)
	}
	return gasmodel.LocalFile{RelativePath: rel, Content: string(content), ModTime: info.ModTime()}, nil
}

// List enumerates every local source file under m.root, skipping
// dotfiles and any extension that does not map to a known FileType.
func (m *Mirror) List() ([]gasmodel.LocalFile, error) {
	var files []gasmodel.LocalFile
	err := filepath.Walk(m.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != m.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, _, ok := gasmodel.ToGasName(rel); !ok {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, gasmodel.LocalFile{RelativePath: rel, Content: string(content), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindFileSystem, err, "walking %s", m.root)
	}
	return files, nil
}

// Touch is a convenience for tests that need an mtime-stamped write
// without round-tripping through RemoteFile.
func (m *Mirror) Touch(relPath, content string) (time.Time, error) {
	full := filepath.Join(m.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return time.Time{}, err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
