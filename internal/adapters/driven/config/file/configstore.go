package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWEEP_"

// ConfigStore is a read-only view over a TOML file with environment
// overrides. Keys use dot notation ("server.public_url").
type ConfigStore struct {
	filePath string
	data     map[string]any
	lookup   func(string) (string, bool)
}

// NewConfigStore reads path. A missing file yields an empty store.
// If path is empty, defaults to ~/.sweep/config.toml.
func NewConfigStore(path string) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".sweep", "config.toml")
	}

	s := &ConfigStore{
		filePath: path,
		data:     make(map[string]any),
		lookup:   os.LookupEnv,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads configuration from the TOML file.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]any)
			return nil
		}
		return err
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	if loaded == nil {
		loaded = make(map[string]any)
	}

	s.data = flattenMap(loaded, "")
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Get returns the environment override for key if set, else the file value.
func (s *ConfigStore) Get(key string) (any, bool) {
	if v, ok := s.lookup(EnvName(key)); ok {
		return v, true
	}
	val, ok := s.data[key]
	return val, ok
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) (string, bool) {
	val, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt accepts TOML integers and numeric strings.
func (s *ConfigStore) GetInt(key string) (int, bool, error) {
	val, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	switch v := val.(type) {
	case int64:
		return int(v), true, nil
	case int:
		return v, true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("%s: expected integer, got %T", key, val)
	}
}

// GetFloat accepts TOML numbers and numeric strings.
func (s *ConfigStore) GetFloat(key string) (float64, bool, error) {
	val, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	switch v := val.(type) {
	case float64:
		return v, true, nil
	case int64:
		return float64(v), true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s: expected number, got %T", key, val)
	}
}

// GetBool accepts TOML booleans and strconv.ParseBool strings.
func (s *ConfigStore) GetBool(key string) (bool, bool, error) {
	val, ok := s.Get(key)
	if !ok {
		return false, false, nil
	}
	switch v := val.(type) {
	case bool:
		return v, true, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false, fmt.Errorf("%s: %w", key, err)
		}
		return b, true, nil
	default:
		return false, false, fmt.Errorf("%s: expected boolean, got %T", key, val)
	}
}

// GetDuration accepts Go duration strings ("30s") or integer seconds.
func (s *ConfigStore) GetDuration(key string) (time.Duration, bool, error) {
	val, ok := s.Get(key)
	if !ok {
		return 0, false, nil
	}
	switch v := val.(type) {
	case int64:
		return time.Duration(v) * time.Second, true, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", key, err)
		}
		return d, true, nil
	default:
		return 0, false, fmt.Errorf("%s: expected duration, got %T", key, val)
	}
}

// GetStringSlice accepts TOML arrays and comma-separated strings.
func (s *ConfigStore) GetStringSlice(key string) ([]string, bool) {
	val, ok := s.Get(key)
	if !ok {
		return nil, false
	}
	switch v := val.(type) {
	case []string:
		return v, true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result, true
	case string:
		var result []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
		return result, true
	default:
		return nil, false
	}
}

// EnvName maps a key to its environment variable. Provider keys drop the
// "providers" segment: providers.google.client_id is SWEEP_GOOGLE_CLIENT_ID.
func EnvName(key string) string {
	key = strings.TrimPrefix(key, "providers.")
	return EnvPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}

// Load builds Settings from defaults, the TOML file at path, a .env file in
// the working directory and SWEEP_* environment variables, in that order
// of increasing precedence. The result is validated.
func Load(path string) (domain.Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.Settings{}, fmt.Errorf("loading .env: %w", err)
	}

	store, err := NewConfigStore(path)
	if err != nil {
		return domain.Settings{}, err
	}

	settings := domain.DefaultSettings()
	if err := store.Apply(&settings); err != nil {
		return domain.Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}
