// Package manifest loads and validates a capsule manifest file.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Permissions is the set of boolean capability flags a manifest may grant.
// Any flag absent from the manifest JSON defaults to false.
type Permissions struct {
	Notifications bool `json:"notifications"`
	Network       bool `json:"network"`
	Metrics       bool `json:"metrics"`
	Storage       bool `json:"storage"`
	InheritStdio  bool `json:"inherit_stdio"`
}

// Preopen is a single preopened-directory declaration as read from JSON.
type Preopen struct {
	Host     string `json:"host"`
	Guest    string `json:"guest"`
	ReadOnly bool   `json:"read_only"`
}

// ValidatedPreopen is a Preopen after canonicalisation and sandbox checking.
type ValidatedPreopen struct {
	CanonicalHost string
	Guest         string
	ReadOnly      bool
}

// Manifest is the validated, in-memory form of a capsule manifest.
type Manifest struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Entry         string            `json:"entry"`
	Permissions   Permissions       `json:"permissions"`
	Env           map[string]string `json:"env"`
	PreopenedDirs []Preopen         `json:"preopened_dirs"`
	BaseDir       string            `json:"-"`
}

// Load reads path, parses it as JSON, and returns a Manifest with BaseDir
// set to path's parent directory. It rejects an empty id, name, version
// or entry, but does not validate env or preopens — call ValidatedEnv
// and ValidatedPreopens for that.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	m.BaseDir = filepath.Dir(path)

	if err := m.checkRequiredFields(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) checkRequiredFields() error {
	if m.ID == "" {
		return fmt.Errorf("manifest: %q field must not be empty", "id")
	}
	if m.Name == "" {
		return fmt.Errorf("manifest: %q field must not be empty", "name")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest: %q field must not be empty", "version")
	}
	if m.Entry == "" {
		return fmt.Errorf("manifest: %q field must not be empty", "entry")
	}
	return nil
}

// WasmPath returns the full path to the capsule's WebAssembly artefact.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.BaseDir, m.Entry)
}

// ValidatedEnv rejects empty keys, keys containing '=' or NUL, and values
// containing NUL. It returns the env map unchanged on success.
func (m *Manifest) ValidatedEnv() (map[string]string, error) {
	for k, v := range m.Env {
		if k == "" {
			return nil, fmt.Errorf("manifest: env key must not be empty")
		}
		if strings.ContainsRune(k, '=') || strings.ContainsRune(k, '\x00') {
			return nil, fmt.Errorf("manifest: env key %q contains '=' or NUL", k)
		}
		if strings.ContainsRune(v, '\x00') {
			return nil, fmt.Errorf("manifest: env value for key %q contains NUL", k)
		}
	}
	return m.Env, nil
}

// ValidatedPreopens canonicalises BaseDir, resolves each preopen's Host
// path relative to it, rejects missing/non-directory hosts and hosts that
// escape BaseDir after canonicalisation, and rejects any Guest path that
// is not absolute or contains a parent-directory component. Input order
// is preserved.
func (m *Manifest) ValidatedPreopens() ([]ValidatedPreopen, error) {
	canonicalBase, err := filepath.EvalSymlinks(m.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve base_dir %s: %w", m.BaseDir, err)
	}
	canonicalBase = filepath.Clean(canonicalBase)

	out := make([]ValidatedPreopen, 0, len(m.PreopenedDirs))
	for _, p := range m.PreopenedDirs {
		hostPath := p.Host
		if !filepath.IsAbs(hostPath) {
			hostPath = filepath.Join(m.BaseDir, hostPath)
		}

		info, err := os.Stat(hostPath)
		if err != nil {
			return nil, fmt.Errorf("manifest: preopen host %q: %w", p.Host, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("manifest: preopen host %q is not a directory", p.Host)
		}

		canonicalHost, err := filepath.EvalSymlinks(hostPath)
		if err != nil {
			return nil, fmt.Errorf("manifest: canonicalise preopen host %q: %w", p.Host, err)
		}
		canonicalHost = filepath.Clean(canonicalHost)

		if !isSubpath(canonicalBase, canonicalHost) {
			return nil, fmt.Errorf("manifest: preopen host %q escapes base_dir %q", p.Host, m.BaseDir)
		}

		if !filepath.IsAbs(p.Guest) {
			return nil, fmt.Errorf("manifest: preopen guest path %q must be absolute", p.Guest)
		}
		if hasParentComponent(p.Guest) {
			return nil, fmt.Errorf("manifest: preopen guest path %q must not contain '..'", p.Guest)
		}

		out = append(out, ValidatedPreopen{
			CanonicalHost: canonicalHost,
			Guest:         p.Guest,
			ReadOnly:      p.ReadOnly,
		})
	}
	return out, nil
}

// isSubpath reports whether target is base itself or contained within it.
func isSubpath(base, target string) bool {
	if base == target {
		return true
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasParentComponent(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
