package secrets

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, password string) *Vault {
	t.Helper()
	v, err := NewVault(filepath.Join(t.TempDir(), "test.vault"), password)
	require.NoError(t, err)
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t, "hunter2")

	creds := map[string]string{
		"fofa_key":   "abc123",
		"shodan_key": "xyz789",
	}
	require.NoError(t, v.Save(creds))

	loaded, err := v.Load()
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestVault_WrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vault")

	v1, err := NewVault(path, "correct")
	require.NoError(t, err)
	require.NoError(t, v1.Save(map[string]string{"k": "v"}))

	v2, err := NewVault(path, "wrong")
	require.NoError(t, err)
	_, err = v2.Load()
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestVault_MissingFile(t *testing.T) {
	v := newTestVault(t, "pw")
	_, err := v.Load()
	assert.ErrorIs(t, err, ErrVaultNotFound)
}

func TestVault_NoPassword(t *testing.T) {
	t.Setenv("PACEKIT_VAULT_PASSWORD", "")
	_, err := NewVault("x", "")
	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestVault_SetGet(t *testing.T) {
	v := newTestVault(t, "pw")

	// Set on a missing vault creates it
	require.NoError(t, v.Set("ceye_token", "tok-1"))
	require.NoError(t, v.Set("ceye_domain", "abc.ceye.io"))

	got, err := v.Get("ceye_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	// absent key reads as empty
	got, err = v.Get("nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVault_FileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "test.vault")
	v, err := NewVault(path, "pw")
	require.NoError(t, err)
	require.NoError(t, v.Save(map[string]string{"k": "v"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestVault_TamperedCiphertext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vault")
	v, err := NewVault(path, "pw")
	require.NoError(t, err)
	require.NoError(t, v.Save(map[string]string{"k": "v"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = v.Load()
	assert.ErrorIs(t, err, ErrDecryptFailed)
}
