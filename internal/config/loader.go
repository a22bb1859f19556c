package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix scopes environment overrides.
	EnvPrefix = "SCORING_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// listKeys take comma-separated values from the environment.
var listKeys = map[string]bool{
	"auth.admins":      true,
	"auth.instructors": true,
}

// sections are the top-level keys, longest first so "rate_limit" wins over a
// hypothetical "rate".
var sections = func() []string {
	s := []string{"server", "storage", "logging", "learning", "weights", "analyzer", "auth", "rate_limit"}
	sort.Slice(s, func(i, j int) bool { return len(s[i]) > len(s[j]) })
	return s
}()

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. SCORING_* environment variables
//  2. YAML file at path (skipped when path is empty or the file does not exist)
//  3. Default()
//
// Environment names map to keys by section:
//
//	SCORING_SERVER_PORT          -> server.port
//	SCORING_LEARNING_MIN_SAMPLES -> learning.min_samples
//	SCORING_RATE_LIMIT_RPS       -> rate_limit.rps
//	SCORING_AUTH_ADMINS=a@x,b@y  -> auth.admins [a@x, b@y]
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps SCORING_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if strings.HasPrefix(lower, sec+"_") {
			return sec + "." + strings.TrimPrefix(lower, sec+"_")
		}
	}
	return lower
}

// envValue maps the variable name through envKey and splits list values on
// commas, dropping blanks.
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if !listKeys[key] {
		return key, value
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
