package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSigner_RejectsShortSecret(t *testing.T) {
	_, err := NewSigner([]byte("short"))
	require.ErrorIs(t, err, ErrSecretTooShort)
}

func TestNewSigner_DoesNotWipeCallerSecret(t *testing.T) {
	secret := []byte("0123456789abcdef")
	_, err := NewSigner(secret)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", string(secret))
}

func TestSealOpen_RoundTrip(t *testing.T) {
	signer, err := NewSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)

	payloads := []any{
		map[string]int{"z": 1, "a": 2},
		[]string{"docs", "web"},
		struct {
			Tripped bool   `json:"tripped"`
			Reason  string `json:"reason"`
		}{true, "3 consecutive failures"},
	}
	for _, p := range payloads {
		data, err := signer.Seal("section", p, time.Unix(1700000000, 123).UTC())
		require.NoError(t, err)
		raw, err := signer.Open("section", data)
		require.NoError(t, err)

		want, err := canonicalize(mustJSON(t, p))
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(raw))
	}
}

func TestOpen_UppercaseSignatureRejected(t *testing.T) {
	signer, err := NewSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)
	data, err := signer.Seal("s", map[string]int{"a": 1}, time.Now())
	require.NoError(t, err)

	env := string(data)
	idx := len(env) - 4 // inside the hex signature, before `"}\n`
	upper := []byte(env)
	if upper[idx] >= 'a' && upper[idx] <= 'f' {
		upper[idx] -= 'a' - 'A'
	} else {
		upper[idx] = 'A'
	}
	_, err = signer.Open("s", upper)
	require.ErrorIs(t, err, ErrTampered)
}

func TestLoadSecret_EnvWins(t *testing.T) {
	got, err := LoadSecret("  from-env-secret-value  ", filepath.Join(t.TempDir(), "secret"))
	require.NoError(t, err)
	assert.Equal(t, "from-env-secret-value", string(got))
}

func TestLoadSecret_CreatesAndReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret")

	first, err := LoadSecret("", path)
	require.NoError(t, err)
	assert.Len(t, first, generatedSecretLength)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadSecret("", path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadSecret_RejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("tiny\n"), 0600))

	_, err := LoadSecret("", path)
	require.ErrorIs(t, err, ErrSecretTooShort)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
