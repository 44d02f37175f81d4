package cli

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

// TestStdinFdCrossplatform verifies that os.Stdin.Fd() can be cast to int
// for golang.org/x/term on every platform.
func TestStdinFdCrossplatform(t *testing.T) {
	stdinFd := int(os.Stdin.Fd())
	assert.GreaterOrEqual(t, stdinFd, 0, "stdin file descriptor should be non-negative")

	// In test environment, stdin is typically not a terminal (piped)
	isTerminal := term.IsTerminal(stdinFd)
	t.Logf("stdin fd=%d, isTerminal=%v", stdinFd, isTerminal)
}

// pipeStdin replaces os.Stdin with a pipe carrying input.
func pipeStdin(t *testing.T, input string) {
	t.Helper()
	origStdin := os.Stdin
	t.Cleanup(func() { os.Stdin = origStdin })

	r, w, err := os.Pipe()
	require.NoError(t, err)
	go func() {
		defer w.Close()
		_, _ = io.WriteString(w, input)
	}()
	os.Stdin = r
}

func TestResolveCredentialTarget(t *testing.T) {
	isolate(t)

	tests := []struct {
		target   string
		wantHost string
		wantName string
		wantErr  bool
	}{
		{target: "polygon", wantHost: "api.polygonscan.com", wantName: "polygon"},
		{target: "137", wantHost: "api.polygonscan.com", wantName: "polygon"},
		{target: "https://API.Example.org/api", wantHost: "api.example.org"},
		{target: "api.example.org", wantHost: "api.example.org"},
		{target: "localhost:4000", wantHost: "localhost:4000"},
		{target: "nowhere", wantErr: true},
		{target: "999999999", wantErr: true},
		{target: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			host, name, err := resolveCredentialTarget(tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestRunCredentialsSet(t *testing.T) {
	isolate(t)

	t.Run("key from flag", func(t *testing.T) {
		require.NoError(t, runCredentialsSet("polygon", "flag-key"))
		assert.Equal(t, "flag-key", getCredential("api.polygonscan.com"))

		creds, err := loadCredentials()
		require.NoError(t, err)
		assert.Equal(t, "polygon", creds.Explorers["api.polygonscan.com"].Name)
	})

	t.Run("key from piped stdin", func(t *testing.T) {
		pipeStdin(t, "  piped-key  \n")
		require.NoError(t, runCredentialsSet("bsc", ""))
		assert.Equal(t, "piped-key", getCredential(apiHost("https://api.bscscan.com/api")))
	})

	t.Run("empty key rejected", func(t *testing.T) {
		pipeStdin(t, "")
		err := runCredentialsSet("polygon", "")
		assert.ErrorContains(t, err, "API key cannot be empty")
		assert.Equal(t, "flag-key", getCredential("api.polygonscan.com"))
	})

	t.Run("file is private", func(t *testing.T) {
		info, err := os.Stat(credentialsFilePath())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		dir, err := os.Stat(stateDir())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), dir.Mode().Perm())
	})
}

func TestRunCredentialsRemove(t *testing.T) {
	isolate(t)

	require.NoError(t, saveCredential("api.polygonscan.com", "polygon", "key1"))
	require.NoError(t, saveCredential("api.example.org", "", "key2"))

	t.Run("remove one", func(t *testing.T) {
		require.NoError(t, runCredentialsRemove("polygon", false))
		assert.Equal(t, "", getCredential("api.polygonscan.com"))
		assert.Equal(t, "key2", getCredential("api.example.org"))
	})

	t.Run("remove missing", func(t *testing.T) {
		assert.NoError(t, runCredentialsRemove("polygon", false))
	})

	t.Run("target required", func(t *testing.T) {
		assert.Error(t, runCredentialsRemove("", false))
	})

	t.Run("remove all", func(t *testing.T) {
		require.NoError(t, runCredentialsRemove("", true))
		_, err := loadCredentials()
		assert.True(t, os.IsNotExist(err))
		assert.NoError(t, runCredentialsList())
	})
}

func TestRunCredentialsList(t *testing.T) {
	isolate(t)
	assert.NoError(t, runCredentialsList())

	require.NoError(t, saveCredential("api.polygonscan.com", "polygon", "abcdefghijklmnop"))
	assert.NoError(t, runCredentialsList())
}

func TestLoadCredentials_Invalid(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(stateDir(), 0700))
	require.NoError(t, os.WriteFile(credentialsFilePath(), []byte("explorers: [not, a, map]"), 0600))

	_, err := loadCredentials()
	assert.Error(t, err)
	assert.Equal(t, "", getCredential("api.polygonscan.com"))
}

func TestAPIHost(t *testing.T) {
	assert.Equal(t, "api.polygonscan.com", apiHost("https://api.polygonscan.com/api"))
	assert.Equal(t, "127.0.0.1:8080", apiHost("http://127.0.0.1:8080/api"))
	assert.Equal(t, "api.example.org", apiHost("api.example.org"))
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"short", "****"},
		{"12345678", "****"},
		{"ABCDEFGHIJKLMNOP", "ABCDEFGH...MNOP"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.key))
		})
	}
}
