package passphrase

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSource(env map[string]string, terminal bool, secret string, allowEmpty bool) (*Source, *int) {
	reads := 0
	s := NewSource("LOOTPOOL_TEST_PASSPHRASE", allowEmpty)
	s.stderr = &bytes.Buffer{}
	s.lookupEnvFn = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func(int) bool { return terminal }
	s.readSecret = func(int) ([]byte, error) {
		reads++
		return []byte(secret), nil
	}
	return s, &reads
}

func TestEnvironmentTakesPrecedence(t *testing.T) {
	s, reads := newTestSource(map[string]string{"LOOTPOOL_TEST_PASSPHRASE": "hunter2"}, true, "typed", false)
	got, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)
	require.Zero(t, *reads)
}

func TestEmptyPassphrasePolicy(t *testing.T) {
	s, _ := newTestSource(map[string]string{"LOOTPOOL_TEST_PASSPHRASE": ""}, false, "", false)
	_, err := s.Get()
	require.Error(t, err)

	s, _ = newTestSource(map[string]string{"LOOTPOOL_TEST_PASSPHRASE": ""}, false, "", true)
	got, err := s.Get()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPromptIsCached(t *testing.T) {
	s, reads := newTestSource(nil, true, "typed", false)
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		require.NoError(t, err)
		require.Equal(t, "typed", got)
	}
	require.Equal(t, 1, *reads)
}

func TestNoTerminalFails(t *testing.T) {
	s, _ := newTestSource(nil, false, "", true)
	_, err := s.Get()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LOOTPOOL_TEST_PASSPHRASE")
}

func TestReadFailureSurfaces(t *testing.T) {
	s, _ := newTestSource(nil, true, "", true)
	s.readSecret = func(int) ([]byte, error) { return nil, errors.New("tty gone") }
	_, err := s.Get()
	require.ErrorContains(t, err, "tty gone")
}
