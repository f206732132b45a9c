package utils

import (
	"os"
	"path"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	assert.Equal(t, true, FileExists("utils.go"))
	assert.Equal(t, false, FileExists("someFileThatDoesNotExists"))
}

func TestExpandDefaultPath(t *testing.T) {
	dataDir := "/test/"
	defaultFileName := "test.txt"

	assert.Equal(t, path.Join(dataDir, defaultFileName), ExpandDefaultPath(dataDir, "", defaultFileName))

	// Should leave the current value untouched if it is not empty
	assert.Equal(t, "/some/path.txt", ExpandDefaultPath(dataDir, "/some/path.txt", defaultFileName))
}

func TestExpandHomeDir(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, path.Join(homeDir, "wallet"), ExpandHomeDir("~/wallet"))
	assert.Equal(t, "/abs/~/wallet", ExpandHomeDir("/abs/~/wallet"))
}

func TestGetDefaultDataDir(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	dataDir, err := GetDefaultDataDir()
	require.NoError(t, err)
	if runtime.GOOS == "windows" {
		assert.Equal(t, path.Join(homeDir, "picopayments"), dataDir)
	} else {
		assert.Equal(t, path.Join(homeDir, ".picopayments"), dataDir)
	}
}

func TestFormatJson(t *testing.T) {
	formatted, err := FormatJson(map[string]any{"url": "http://a?b=1&c=2"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"url\": \"http://a?b=1&c=2\"\n}\n", formatted)
}
