package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"intifacectl/internal/utils"

	"github.com/joho/godotenv"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

const envPrefix = "INTIFACECTL"

// Load reads the configuration document, applying defaults and environment
// overrides. A missing document yields the defaults.
func Load(paths Paths) (Config, error) {
	if err := loadDotEnv(paths.EnvFile()); err != nil {
		return Config{}, fmt.Errorf("error loading %s: %w", paths.EnvFile(), err)
	}

	v, err := newViper(paths.ConfigFile(), true)
	if err != nil {
		return Config{}, err
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("error in %s: %w", paths.ConfigFile(), err)
	}
	return cfg, nil
}

// Save writes cfg as indented JSON.
func Save(paths Paths, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return utils.WriteFileAtomic(paths.ConfigFile(), append(data, '\n'), 0o644)
}

// Keys lists every settable key in dotted form.
func Keys() []string {
	v := viper.New()
	registerDefaults(v)
	keys := v.AllKeys()
	slices.Sort(keys)
	return keys
}

// Set assigns value to key in the stored document and saves it. The value is
// converted to the key's type. Environment overrides are not applied, so
// they never leak into the file. It returns the document before and after.
func Set(paths Paths, key, value string) (before, after Config, err error) {
	v, err := newViper(paths.ConfigFile(), false)
	if err != nil {
		return Config{}, Config{}, err
	}

	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(v.AllKeys(), key) {
		return Config{}, Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
	}

	before, err = decode(v)
	if err != nil {
		return Config{}, Config{}, err
	}

	v.Set(key, value)
	after, err = decode(v)
	if err != nil {
		return Config{}, Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}

	if err := Save(paths, after); err != nil {
		return Config{}, Config{}, err
	}
	return before, after, nil
}

// Diff renders a unified diff between two documents.
func Diff(before, after Config) (string, error) {
	a, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "before",
		ToFile:   "after",
		Context:  1,
	})
}

func newViper(file string, withEnv bool) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("json")
	if withEnv {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	registerDefaults(v)

	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", file, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return v, nil
	}
	if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", file, err)
	}
	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding configuration: %w", err)
	}
	return cfg, nil
}

// registerDefaults declares every key with its default value, which is also
// what lets AutomaticEnv resolve keys that are absent from the file.
func registerDefaults(v *viper.Viper) {
	raw, _ := json.Marshal(Default())
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	setDefaults(v, "", m)
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, prefix+k+".", sub)
			continue
		}
		v.SetDefault(prefix+k, val)
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
