package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yoanbernabeu/nanothumbnail/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreWithDir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	s := newTestStore(t)

	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if settings.Provider != models.ProviderReplicate {
		t.Errorf("Provider = %q, want replicate", settings.Provider)
	}
	if len(settings.Keys) != 0 {
		t.Errorf("Keys = %v, want empty", settings.Keys)
	}
	if settings.SaveLocally {
		t.Error("SaveLocally should default to false")
	}
}

func TestSetKeyKeepsOtherSlots(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetKey(models.ProviderReplicate, "r8_aaa"); err != nil {
		t.Fatalf("SetKey() err = %v", err)
	}
	if err := s.SetKey(models.ProviderGemini, "gm_bbb"); err != nil {
		t.Fatalf("SetKey() err = %v", err)
	}

	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if settings.Keys[models.ProviderReplicate] != "r8_aaa" {
		t.Errorf("replicate slot = %q", settings.Keys[models.ProviderReplicate])
	}
	if settings.Keys[models.ProviderGemini] != "gm_bbb" {
		t.Errorf("gemini slot = %q", settings.Keys[models.ProviderGemini])
	}
}

func TestActiveKeyFollowsProvider(t *testing.T) {
	s := newTestStore(t)

	s.SetKey(models.ProviderReplicate, "r8_aaa")
	s.SetKey(models.ProviderGemini, "gm_bbb")

	if err := s.SetProvider(models.ProviderGemini); err != nil {
		t.Fatalf("SetProvider() err = %v", err)
	}
	settings, _ := s.Load()
	if settings.ActiveKey() != "gm_bbb" {
		t.Errorf("ActiveKey() = %q, want the gemini slot", settings.ActiveKey())
	}

	s.SetProvider(models.ProviderReplicate)
	settings, _ = s.Load()
	if settings.ActiveKey() != "r8_aaa" {
		t.Errorf("ActiveKey() = %q, want the replicate slot after switching back", settings.ActiveKey())
	}
}

func TestLegacyKeyMigration(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreWithDir(dir)

	legacy := `{"provider":"replicate","api_key":"r8_legacy"}`
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(legacy), 0600); err != nil {
		t.Fatal(err)
	}

	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if settings.Keys[models.ProviderReplicate] != "r8_legacy" {
		t.Errorf("legacy key not migrated: %v", settings.Keys)
	}
}

func TestLegacyKeyDoesNotClobberNewSlot(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreWithDir(dir)

	mixed := `{"provider":"replicate","api_key":"r8_old","keys":{"replicate":"r8_new"}}`
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(mixed), 0600); err != nil {
		t.Fatal(err)
	}

	settings, err := s.Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if settings.Keys[models.ProviderReplicate] != "r8_new" {
		t.Errorf("replicate slot = %q, want the per-provider value", settings.Keys[models.ProviderReplicate])
	}
}

func TestDeleteKey(t *testing.T) {
	s := newTestStore(t)

	s.SetKey(models.ProviderGemini, "gm_bbb")
	if err := s.DeleteKey(models.ProviderGemini); err != nil {
		t.Fatalf("DeleteKey() err = %v", err)
	}
	key, _ := s.GetKey(models.ProviderGemini)
	if key != "" {
		t.Errorf("GetKey() = %q after delete", key)
	}
	if err := s.DeleteKey(models.ProviderGemini); err == nil {
		t.Error("DeleteKey() on a missing slot should fail")
	}
}

func TestSettingsFilePermissions(t *testing.T) {
	s := newTestStore(t)
	s.SetKey(models.ProviderReplicate, "r8_secret")

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("settings.json mode = %o, want 0600", perm)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"r8_abcdefghij", "r8_a*****ghij"},
	}
	for _, tt := range tests {
		if got := MaskKey(tt.key); got != tt.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestEnvVar(t *testing.T) {
	tests := []struct {
		provider models.ProviderType
		want     string
	}{
		{models.ProviderReplicate, "REPLICATE_API_TOKEN"},
		{models.ProviderGemini, "GEMINI_API_KEY"},
		{models.ProviderOpenRouter, "OPENROUTER_API_KEY"},
	}
	for _, tt := range tests {
		if got := EnvVar(tt.provider); got != tt.want {
			t.Errorf("EnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestResolveKeyPriority(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NANOTHUMB_CONFIG_DIR", dir)
	t.Setenv("GEMINI_API_KEY", "gm_env")

	// Environment only.
	key, source, err := ResolveKey("", models.ProviderGemini)
	if err != nil {
		t.Fatalf("ResolveKey() err = %v", err)
	}
	if key != "gm_env" {
		t.Errorf("key = %q, want the env value", key)
	}
	if source != "environment variable (GEMINI_API_KEY)" {
		t.Errorf("source = %q", source)
	}

	// A stored slot beats the environment.
	NewStoreWithDir(dir).SetKey(models.ProviderGemini, "gm_stored")
	key, _, err = ResolveKey("", models.ProviderGemini)
	if err != nil {
		t.Fatalf("ResolveKey() err = %v", err)
	}
	if key != "gm_stored" {
		t.Errorf("key = %q, want the stored value", key)
	}

	// The explicit flag beats both.
	key, source, _ = ResolveKey("gm_flag", models.ProviderGemini)
	if key != "gm_flag" || source != "command-line flag" {
		t.Errorf("key = %q source = %q", key, source)
	}
}

func TestResolveKeyMissing(t *testing.T) {
	t.Setenv("NANOTHUMB_CONFIG_DIR", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, _, err := ResolveKey("", models.ProviderOpenRouter); err == nil {
		t.Fatal("ResolveKey() should fail with no key anywhere")
	}
}
