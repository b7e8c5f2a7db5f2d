package keys

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.json")
	creds := Credentials{APIKey: "abc123", APISecret: "s3cret"}
	require.NoError(t, Save(path, creds, []byte("hunter2")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path, []byte("hunter2"))
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestLoad_WrongPassphrase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, Save(path, Credentials{APIKey: "k", APISecret: "s"}, []byte("right")))

	_, err := Load(path, []byte("wrong"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestLoad_TamperedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, Save(path, Credentials{APIKey: "k", APISecret: "s"}, []byte("pw")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	ct[0] ^= 0xff
	env.Ciphertext = base64.StdEncoding.EncodeToString(ct)
	tampered, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, tampered, 0o600))

	_, err = Load(path, []byte("pw"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), []byte("pw"))
	require.Error(t, err)
}

func TestSave_DistinctSaltsPerWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.json")
	p2 := filepath.Join(dir, "b.json")
	creds := Credentials{APIKey: "k", APISecret: "s"}
	require.NoError(t, Save(p1, creds, []byte("pw")))
	require.NoError(t, Save(p2, creds, []byte("pw")))

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.NotEqual(t, string(b1), string(b2))
}
