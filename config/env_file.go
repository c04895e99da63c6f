package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ReadEnvFile parses a dotenv file. A missing file yields an empty map.
// Keys are returned upper-cased.
func ReadEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return map[string]string{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	out := make(map[string]string, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		out[strings.ToUpper(key)] = v.GetString(key)
	}
	return out, nil
}

// applyEnvFile fills Browser Use values left empty by the config file and
// the process environment from the sandbox env file. The file is optional:
// an unreadable one contributes no values and the read error is returned as
// a warning for the caller to log.
func applyEnvFile(b BrowserUseConfig) (BrowserUseConfig, error) {
	if strings.TrimSpace(b.APIKey) != "" && strings.TrimSpace(b.BaseURL) != "" {
		return b, nil
	}
	vals, err := ReadEnvFile(b.EnvFile)
	if err != nil {
		return b, err
	}
	if strings.TrimSpace(b.APIKey) == "" {
		b.APIKey = vals["BROWSER_USE_API_KEY"]
	}
	if strings.TrimSpace(b.BaseURL) == "" {
		b.BaseURL = vals["BROWSER_USE_BASE_URL"]
	}
	return b, nil
}
