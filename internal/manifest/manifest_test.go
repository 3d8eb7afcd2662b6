package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "capsule.manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_RequiredFields(t *testing.T) {
	dir := t.TempDir()

	path := writeManifest(t, dir, `{"id":"","name":"x","version":"1","entry":"a.wasm"}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "id")

	path = writeManifest(t, dir, `{"id":"com.ex.a","name":"x","version":"1","entry":""}`)
	_, err = Load(path)
	assert.ErrorContains(t, err, "entry")
}

func TestLoad_DefaultsAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
		"id": "com.ex.hello",
		"name": "Hello",
		"version": "0.1.0",
		"entry": "hello.wasm"
	}`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "com.ex.hello", m.ID)
	assert.False(t, m.Permissions.Notifications)
	assert.False(t, m.Permissions.Network)
	assert.False(t, m.Permissions.Metrics)
	assert.False(t, m.Permissions.Storage)
	assert.False(t, m.Permissions.InheritStdio)
	assert.Empty(t, m.Env)
	assert.Empty(t, m.PreopenedDirs)
	assert.Equal(t, dir, m.BaseDir)
	assert.Equal(t, filepath.Join(dir, "hello.wasm"), m.WasmPath())

	// Round-trip: marshal back and reload as an equivalent manifest.
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	m2, err := Load(writeManifest(t, dir, string(raw)))
	require.NoError(t, err)
	assert.Equal(t, m.ID, m2.ID)
	assert.Equal(t, m.Name, m2.Name)
	assert.Equal(t, m.Version, m2.Version)
	assert.Equal(t, m.Entry, m2.Entry)
	assert.Equal(t, m.Permissions, m2.Permissions)
}

func TestLoad_UnknownFieldsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `{
		"id": "com.ex.hello", "name": "Hello", "version": "0.1.0", "entry": "hello.wasm",
		"lifecycle": {"kind": "on_demand"}, "future_field": 42
	}`)
	_, err := Load(path)
	require.NoError(t, err)
}

func TestValidatedEnv(t *testing.T) {
	m := &Manifest{Env: map[string]string{"GREETING": "hi"}}
	env, err := m.ValidatedEnv()
	require.NoError(t, err)
	assert.Equal(t, "hi", env["GREETING"])

	m = &Manifest{Env: map[string]string{"": "hi"}}
	_, err = m.ValidatedEnv()
	assert.Error(t, err)

	m = &Manifest{Env: map[string]string{"A=B": "hi"}}
	_, err = m.ValidatedEnv()
	assert.Error(t, err)

	m = &Manifest{Env: map[string]string{"A\x00B": "hi"}}
	_, err = m.ValidatedEnv()
	assert.Error(t, err)

	m = &Manifest{Env: map[string]string{"A": "hi\x00there"}}
	_, err = m.ValidatedEnv()
	assert.Error(t, err)
}

func TestValidatedPreopens_Escape(t *testing.T) {
	base := t.TempDir()
	parent := filepath.Dir(base)
	secrets := filepath.Join(parent, "secrets-"+filepath.Base(base))
	require.NoError(t, os.MkdirAll(secrets, 0o755))
	defer os.RemoveAll(secrets)

	rel, err := filepath.Rel(base, secrets)
	require.NoError(t, err)

	m := &Manifest{
		BaseDir: base,
		PreopenedDirs: []Preopen{
			{Host: rel, Guest: "/data", ReadOnly: false},
		},
	}
	_, err = m.ValidatedPreopens()
	assert.ErrorContains(t, err, "escapes base_dir")
}

func TestValidatedPreopens_MissingHost(t *testing.T) {
	base := t.TempDir()
	m := &Manifest{
		BaseDir:       base,
		PreopenedDirs: []Preopen{{Host: "does-not-exist", Guest: "/data"}},
	}
	_, err := m.ValidatedPreopens()
	assert.Error(t, err)
}

func TestValidatedPreopens_GuestPathRules(t *testing.T) {
	base := t.TempDir()
	data := filepath.Join(base, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))

	m := &Manifest{
		BaseDir:       base,
		PreopenedDirs: []Preopen{{Host: "data", Guest: "data"}},
	}
	_, err := m.ValidatedPreopens()
	assert.ErrorContains(t, err, "absolute")

	m = &Manifest{
		BaseDir:       base,
		PreopenedDirs: []Preopen{{Host: "data", Guest: "/data/../../etc"}},
	}
	_, err = m.ValidatedPreopens()
	assert.ErrorContains(t, err, "..")
}

func TestValidatedPreopens_Success(t *testing.T) {
	base := t.TempDir()
	data := filepath.Join(base, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))

	m := &Manifest{
		BaseDir: base,
		PreopenedDirs: []Preopen{
			{Host: "data", Guest: "/data", ReadOnly: true},
		},
	}
	out, err := m.ValidatedPreopens()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/data", out[0].Guest)
	assert.True(t, out[0].ReadOnly)

	canonicalData, err := filepath.EvalSymlinks(data)
	require.NoError(t, err)
	assert.Equal(t, canonicalData, out[0].CanonicalHost)
}
