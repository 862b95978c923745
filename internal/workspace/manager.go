// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workspace manages per-user scratch directories.
//
// A workspace lives at <root>/<owner>/<token>, where token is a random uuid
// created by Acquire, so two pipeline runs never share a directory even for
// the same owner. Every path handed out is checked to be a descendant of the
// workspace it belongs to.
//
// Workspaces end in one of two ways: Release, called by the pipeline when it
// finishes, or Sweep, which reclaims anything older than the maximum age
// whether or not it was released. Both are safe to run any number of times.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxAge        = 24 * time.Hour
	DefaultSweepInterval = time.Hour

	markerFile = ".workspace"
	dirMode    = 0o700
)

var (
	ErrInvalidOwner     = errors.New("invalid owner id")
	ErrInvalidName      = errors.New("invalid workspace path name")
	ErrOutsideWorkspace = errors.New("path escapes workspace")
)

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidOwner reports whether owner can name a workspace directory.
func ValidOwner(owner string) bool {
	return ownerPattern.MatchString(owner)
}

// Workspace is a handle to one acquired scratch directory.
type Workspace struct {
	Owner      string
	Token      string
	Root       string
	CreateTime time.Time
}

// Manager creates and reclaims workspaces under a single root directory.
type Manager struct {
	root   string
	maxAge time.Duration
}

// NewManager creates the root directory if needed. A non-positive maxAge
// selects DefaultMaxAge.
func NewManager(root string, maxAge time.Duration) (*Manager, error) {
	if len(root) == 0 {
		return nil, errors.New("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, dirMode); err != nil {
		return nil, fmt.Errorf("creating workspace root %s: %w", abs, err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{root: abs, maxAge: maxAge}, nil
}

func (m *Manager) Root() string {
	return m.root
}

func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Acquire creates a fresh workspace for owner.
func (m *Manager) Acquire(owner string) (*Workspace, error) {
	if !ValidOwner(owner) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	ws := &Workspace{
		Owner:      owner,
		Token:      uuid.NewString(),
		CreateTime: time.Now().UTC(),
	}
	ws.Root = filepath.Join(m.root, owner, ws.Token)

	err := os.MkdirAll(ws.Root, dirMode)
	if errors.Is(err, os.ErrNotExist) {
		// A concurrent sweep removed the empty owner directory mid-create.
		err = os.MkdirAll(ws.Root, dirMode)
	}
	if err != nil {
		return nil, fmt.Errorf("creating workspace for %s: %w", owner, err)
	}
	marker := []byte(ws.CreateTime.Format(time.RFC3339Nano))
	if err := os.WriteFile(filepath.Join(ws.Root, markerFile), marker, 0o600); err != nil {
		_ = os.RemoveAll(ws.Root)
		return nil, fmt.Errorf("writing workspace marker for %s: %w", owner, err)
	}
	slog.Debug("workspace acquired", "owner", owner, "path", ws.Root)
	return ws, nil
}

// Subdir returns the named directory inside ws, creating it on first use.
// Nested names such as "project/scene/frames" are allowed.
func (m *Manager) Subdir(ws *Workspace, name string) (string, error) {
	p, err := m.Path(ws, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, dirMode); err != nil {
		return "", fmt.Errorf("creating workspace directory %s: %w", p, err)
	}
	return p, nil
}

// Path computes a path inside ws without touching the file system.
func (m *Manager) Path(ws *Workspace, name string) (string, error) {
	if ws == nil {
		return "", errors.New("nil workspace")
	}
	if len(strings.TrimSpace(name)) == 0 || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return ws.Contain(filepath.Join(ws.Root, name))
}

// Contain returns the cleaned form of p if it is a strict descendant of the
// workspace root. Relative paths are taken relative to the root.
func (w *Workspace) Contain(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.Root, p)
	}
	cleaned := filepath.Clean(p)
	rel, err := filepath.Rel(w.Root, cleaned)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, p)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, p)
	}
	return cleaned, nil
}

// Release removes ws and everything in it. Failures are logged, never returned.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil {
		return
	}
	// Refuse to delete anything that is not a workspace of this manager.
	if rel, err := filepath.Rel(m.root, ws.Root); err != nil || strings.Count(rel, string(filepath.Separator)) != 1 || strings.HasPrefix(rel, "..") {
		slog.Error("refusing to release foreign directory", "path", ws.Root)
		return
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		slog.Warn("failed to release workspace", "owner", ws.Owner, "path", ws.Root, "error", err)
		return
	}
	// Only succeeds once the owner has no workspaces left.
	_ = os.Remove(filepath.Dir(ws.Root))
	slog.Debug("workspace released", "owner", ws.Owner, "path", ws.Root)
}

// Sweep reclaims every workspace created before now minus the maximum age
// and returns how many were removed.
func (m *Manager) Sweep(now time.Time) (int, error) {
	owners, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing workspace root: %w", err)
	}

	reclaimed := 0
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		ownerDir := filepath.Join(m.root, owner.Name())
		sessions, err := os.ReadDir(ownerDir)
		if err != nil {
			slog.Warn("failed to list owner workspaces", "path", ownerDir, "error", err)
			continue
		}
		for _, session := range sessions {
			if !session.IsDir() {
				continue
			}
			dir := filepath.Join(ownerDir, session.Name())
			if now.Sub(createTime(dir)) < m.maxAge {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				slog.Warn("failed to reclaim workspace", "path", dir, "error", err)
				continue
			}
			reclaimed++
		}
		_ = os.Remove(ownerDir)
	}
	if reclaimed > 0 {
		slog.Info("reclaimed stale workspaces", "count", reclaimed)
	}
	return reclaimed, nil
}

// createTime reads the marker written by Acquire, falling back to the
// directory modification time for directories without a readable marker.
func createTime(dir string) time.Time {
	if b, err := os.ReadFile(filepath.Join(dir, markerFile)); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(b))); err == nil {
			return t
		}
	}
	if fi, err := os.Stat(dir); err == nil {
		return fi.ModTime()
	}
	return time.Time{}
}
