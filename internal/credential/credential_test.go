package credential

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p, err := Generate()
		require.NoError(t, err)
		require.Len(t, p, PasswordLength)
		for _, r := range p {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
		seen[p] = true
	}
	assert.Greater(t, len(seen), 45, "passwords should not repeat")
}

func TestHash(t *testing.T) {
	// echo -n abc | sha256sum
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash("abc"))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend_api", "password.json")
	now := time.Unix(1752800000, 0)

	info := New("Ab3dEf7h", now)
	require.NoError(t, Save(path, info))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.Equal(t, "1752800000", got.GeneratedAt)

	hash, err := LoadHash(path)
	require.NoError(t, err)
	assert.Equal(t, Hash("Ab3dEf7h"), hash)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "password.json"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LoadHash(filepath.Join(t.TempDir(), "password.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLoadHashEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"password":"x"}`), 0o600))

	_, err := LoadHash(path)
	assert.ErrorIs(t, err, ErrNoHash)
}

func TestProjection(t *testing.T) {
	p := (&Info{Password: "pw", Hash: "h"}).Projection()
	require.NotNil(t, p.Password)
	assert.Equal(t, "pw", *p.Password)
	assert.Nil(t, p.GeneratedAt)
}
