// Package artifact owns the local copy of the guide file. The artifact
// lives at one of two well-known paths under the workspace root: the
// dotted config directory (.guidesync/GUIDE.md) or the root itself
// (GUIDE.md). Reads check both and prefer the first. All writes are
// atomic (temp file + rename) so a failed download or upload never
// leaves a half-written local file.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

const (
	// ConfigDirName is the dotted subdirectory checked first when
	// locating the artifact.
	ConfigDirName = ".guidesync"

	// DefaultName is the artifact filename when none is configured.
	DefaultName = "GUIDE.md"

	// dirPerm is the permission mode for directories created under the
	// workspace root.
	dirPerm = fs.FileMode(0o755)

	// filePerm is the permission mode for the artifact file.
	filePerm = fs.FileMode(0o644)
)

// Template is the starter content written by the create-template action
// when neither replica exists and the user asks for one.
const Template = `# Guide

Project guidance lives in this file. It is kept in sync with a shared
remote copy; edit it locally and the changes will be reconciled.

## Conventions

- Keep entries short.
- Prefer examples over prose.
`

// gitignoreName is the exclusion list maintained by EnsureExcluded.
const gitignoreName = ".gitignore"

// Store provides thread-safe access to the local artifact. Writes take
// an exclusive lock; reads take a shared lock so they never observe a
// partial write from this process.
type Store struct {
	root string
	name string
	mu   sync.RWMutex
}

// NewStore creates a store rooted at the given workspace directory. The
// root is resolved to an absolute path; name must be a bare filename.
func NewStore(root, name string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root must not be empty")
	}

	if name == "" {
		name = DefaultName
	}

	name = norm.NFC.String(name)
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("artifact name %q must be a bare filename", name)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	return &Store{root: absRoot, name: name}, nil
}

// Root returns the absolute workspace root.
func (s *Store) Root() string {
	return s.root
}

// Name returns the artifact filename.
func (s *Store) Name() string {
	return s.name
}

// candidates returns the artifact's well-known relative paths in
// preference order.
func (s *Store) candidates() []string {
	return []string{
		filepath.Join(ConfigDirName, s.name),
		s.name,
	}
}

// RelPath returns the workspace-relative path the artifact currently
// occupies, or the preferred (dotted-config) path when it does not exist
// yet. Paths use forward slashes for use in the exclusion list.
func (s *Store) RelPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filepath.ToSlash(s.relPathLocked())
}

func (s *Store) relPathLocked() string {
	for _, rel := range s.candidates() {
		if _, err := os.Stat(filepath.Join(s.root, rel)); err == nil {
			return rel
		}
	}

	return s.candidates()[0]
}

// Path returns the absolute path of the artifact's current (or preferred)
// location.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filepath.Join(s.root, s.relPathLocked())
}

// Read loads the artifact. The second return value reports presence:
// (content, true, nil) when the artifact exists, ("", false, nil) when it
// does not, and an error only for real filesystem failures such as
// permission problems.
func (s *Store) Read() (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rel := range s.candidates() {
		data, err := os.ReadFile(filepath.Join(s.root, rel))
		if err == nil {
			return string(data), true, nil
		}

		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		return "", false, fmt.Errorf("reading %s: %w", rel, err)
	}

	return "", false, nil
}

// Write replaces the artifact content atomically. The content is written
// to a temp file in the destination directory and renamed into place, so
// a crash or failure mid-write leaves the previous file intact. Missing
// parent directories are created.
func (s *Store) Write(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := s.relPathLocked()
	absPath := filepath.Join(s.root, rel)

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(dir, "."+s.name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", rel, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing temp file for %s: %w", rel, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", rel, err)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions for %s: %w", rel, err)
	}

	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", rel, err)
	}

	return nil
}

// EnsureExcluded makes sure the artifact's path appears in the workspace
// .gitignore, creating the file when needed. Already-listed paths are
// left alone; the rest of the file is never rewritten.
func (s *Store) EnsureExcluded() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := filepath.ToSlash(s.relPathLocked())
	ignorePath := filepath.Join(s.root, gitignoreName)

	data, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", gitignoreName, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		entry := strings.TrimSpace(line)
		if entry == rel || entry == "/"+rel {
			return nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return fmt.Errorf("opening %s: %w", gitignoreName, err)
	}
	defer f.Close()

	entry := rel + "\n"
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		entry = "\n" + entry
	}

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("appending to %s: %w", gitignoreName, err)
	}

	return nil
}

// WatchDirs returns the directories the change notifier should watch:
// the workspace root and, when present, the dotted config directory.
func (s *Store) WatchDirs() []string {
	dirs := []string{s.root}

	cfgDir := filepath.Join(s.root, ConfigDirName)
	if info, err := os.Stat(cfgDir); err == nil && info.IsDir() {
		dirs = append(dirs, cfgDir)
	}

	return dirs
}

// IsArtifactPath reports whether absPath refers to one of the artifact's
// well-known locations. Used by the change notifier to filter events.
func (s *Store) IsArtifactPath(absPath string) bool {
	absPath = norm.NFC.String(absPath)

	for _, rel := range s.candidates() {
		if absPath == filepath.Join(s.root, rel) {
			return true
		}
	}

	return false
}
