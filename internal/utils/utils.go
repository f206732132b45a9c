package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"runtime"
	"strings"
)

func ExpandDefaultPath(dataDir string, currentValue string, defaultFileName string) string {
	if currentValue == "" {
		return path.Join(dataDir, defaultFileName)
	}

	return currentValue
}

func ExpandHomeDir(value string) string {
	if value == "~" || strings.HasPrefix(value, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return path.Join(homeDir, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}

func GetDefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()

	if err != nil {
		return "", err
	}

	dataFolder := "picopayments"

	if runtime.GOOS != "windows" {
		dataFolder = "." + dataFolder
	}

	return path.Join(homeDir, dataFolder), nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func FormatJson(resp any) (string, error) {
	buf := new(bytes.Buffer)

	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(resp)

	return buf.String(), err
}
