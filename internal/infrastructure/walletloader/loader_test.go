package walletloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "7886876e514713dcdc516d1d5a4bde14db8027ae67707303a14d09ba7c409ad4"

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.key")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestKeyFileLoader_LoadKey(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "bare hex", content: testKey + "\n"},
		{name: "prefixed with comments", content: "# local wallet\n\n0x" + testKey + "\n"},
		{name: "invalid key", content: "0xnothex\n", wantErr: true},
		{name: "only comments", content: "# nothing here\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logged int
			loader := NewKeyFileLoader(writeKeyFile(t, tt.content), func(string, ...any) { logged++ })

			key, err := loader.LoadKey()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, key)
			assert.Equal(t, 1, logged)
		})
	}
}

func TestKeyFileLoader_MissingFile(t *testing.T) {
	_, err := NewKeyFileLoader(filepath.Join(t.TempDir(), "missing.key"), nil).LoadKey()
	assert.Error(t, err)
}
