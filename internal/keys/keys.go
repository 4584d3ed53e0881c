// Package keys persists the credential and provider state: one API key
// slot per provider, the selected provider, and the save-locally
// preference. Switching providers never discards another provider's key.
package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

// Store handles credential storage and retrieval.
type Store struct {
	configDir string
}

type settingsFile struct {
	Provider    models.ProviderType            `json:"provider"`
	Keys        map[models.ProviderType]string `json:"keys"`
	SaveLocally bool                           `json:"save_locally"`

	// LegacyKey is the pre-multi-provider flat key field. Migrated into
	// the replicate slot on load.
	LegacyKey string `json:"api_key,omitempty"`
}

// Settings is the loaded credential and provider state. The active key is
// always the slot of the selected provider.
type Settings struct {
	Provider    models.ProviderType
	Keys        map[models.ProviderType]string
	SaveLocally bool
}

// ActiveKey returns the key of the selected provider.
func (s *Settings) ActiveKey() string {
	return s.Keys[s.Provider]
}

// NewStore creates a credential store in the platform config directory.
func NewStore() (*Store, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

func NewStoreWithDir(dir string) *Store {
	return &Store{configDir: dir}
}

func getConfigDir() (string, error) {
	// Allow override for testing
	if testDir := os.Getenv("NANOTHUMB_CONFIG_DIR"); testDir != "" {
		return testDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "nanothumb"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "nanothumb"), nil
	default: // linux and others
		// Follow XDG Base Directory Specification
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "nanothumb"), nil
	}
}

// Dir returns the config directory backing this store.
func (s *Store) Dir() string {
	return s.configDir
}

// Path returns the path to the settings file.
func (s *Store) Path() string {
	return filepath.Join(s.configDir, "settings.json")
}

// Load reads the settings from disk, applying the legacy single-key
// migration when needed.
func (s *Store) Load() (*Settings, error) {
	settings := &Settings{
		Provider: models.ProviderReplicate,
		Keys:     make(map[models.ProviderType]string),
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	var file settingsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse settings.json: %w", err)
	}

	if file.Provider.IsValid() {
		settings.Provider = file.Provider
	}
	for p, k := range file.Keys {
		settings.Keys[p] = k
	}
	settings.SaveLocally = file.SaveLocally

	// The old format held a single replicate key in a flat field. Move it
	// into its per-provider slot without clobbering a newer value.
	if file.LegacyKey != "" && settings.Keys[models.ProviderReplicate] == "" {
		settings.Keys[models.ProviderReplicate] = file.LegacyKey
	}

	return settings, nil
}

// Save writes the settings to disk. Per-provider slots and the selected
// provider land in one write, so the active-key alias can never go stale.
func (s *Store) Save(settings *Settings) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := settingsFile{
		Provider:    settings.Provider,
		Keys:        settings.Keys,
		SaveLocally: settings.SaveLocally,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	// Restricted permissions, the file holds secrets
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write settings.json: %w", err)
	}
	return nil
}

// SetKey stores a key in the given provider's slot.
func (s *Store) SetKey(provider models.ProviderType, key string) error {
	settings, err := s.Load()
	if err != nil {
		return err
	}
	settings.Keys[provider] = key
	return s.Save(settings)
}

// GetKey retrieves the key stored for the given provider. A missing key
// is not an error.
func (s *Store) GetKey(provider models.ProviderType) (string, error) {
	settings, err := s.Load()
	if err != nil {
		return "", err
	}
	return settings.Keys[provider], nil
}

// DeleteKey removes the key stored for the given provider.
func (s *Store) DeleteKey(provider models.ProviderType) error {
	settings, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := settings.Keys[provider]; !ok {
		return fmt.Errorf("no key found for %s", provider)
	}
	delete(settings.Keys, provider)
	return s.Save(settings)
}

// SetProvider selects the active provider. Other providers' keys are
// untouched.
func (s *Store) SetProvider(provider models.ProviderType) error {
	settings, err := s.Load()
	if err != nil {
		return err
	}
	settings.Provider = provider
	return s.Save(settings)
}

// SetSaveLocally persists the save-locally preference.
func (s *Store) SetSaveLocally(save bool) error {
	settings, err := s.Load()
	if err != nil {
		return err
	}
	settings.SaveLocally = save
	return s.Save(settings)
}

// MaskKey returns a masked version of the key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// EnvVar returns the environment variable holding each provider's key.
func EnvVar(provider models.ProviderType) string {
	switch provider {
	case models.ProviderGemini:
		return "GEMINI_API_KEY"
	case models.ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return "REPLICATE_API_TOKEN"
	}
}

// ResolveKey retrieves the API key for a provider using the priority
// order: explicit flag, stored slot, environment variable.
func ResolveKey(explicitKey string, provider models.ProviderType) (string, string, error) {
	if explicitKey != "" {
		return explicitKey, "command-line flag", nil
	}

	store, err := NewStore()
	if err == nil {
		storedKey, err := store.GetKey(provider)
		if err == nil && storedKey != "" {
			return storedKey, "stored key (settings.json)", nil
		}
	}

	envVar := EnvVar(provider)
	if envKey := os.Getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}

	return "", "", fmt.Errorf("API key required for %s: run 'nanothumb keys set %s' or set %s", provider, provider, envVar)
}
