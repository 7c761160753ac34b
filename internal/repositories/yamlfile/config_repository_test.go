package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access_control.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigRepository_Load_Canonical(t *testing.T) {
	path := writeConfig(t, `
version: "2.0"
default_access: allow
default_role: user
default_restrictions:
  domains:
    homeassistant:
      allow: false
      services: [restart, stop]
  services: [host_reboot]
roles:
  admin:
    description: Administrator
    admin: true
  guest:
    deny_all: true
    template: 'state["person.guest"] == "home"'
    fallback_role: user
    permissions:
      domains:
        light:
          allow: true
          services: [turn_on]
      entities:
        light.bedroom:
          allow: false
          services: [turn_off]
  user: {}
users:
  abc123: {role: guest}
settings:
  enabled: true
  allow_chained_actions: false
`)

	cfg, err := NewConfigRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultRole != "user" {
		t.Errorf("DefaultRole = %q, want user", cfg.DefaultRole)
	}
	guest := cfg.GetRole("guest")
	if guest == nil {
		t.Fatal("guest role missing")
	}
	if !guest.DenyAll || guest.FallbackRole != "user" || !guest.HasTemplate() {
		t.Errorf("guest role = %+v, want deny_all with template and fallback", guest)
	}
	rule := guest.Permissions.GetDomain("light")
	if rule == nil || !rule.Allow || len(rule.Services) != 1 {
		t.Errorf("guest light rule = %+v, want allow [turn_on]", rule)
	}
	if !cfg.GetRole("admin").Admin {
		t.Error("admin role should be admin-flagged")
	}
	if rule := cfg.DefaultRestrictions.Domains["homeassistant"]; rule == nil || rule.Allow {
		t.Errorf("default restriction = %+v, want deny rule", rule)
	}
	if len(cfg.DefaultRestrictions.Services) != 1 || cfg.DefaultRestrictions.Services[0] != "host_reboot" {
		t.Errorf("blanket services = %v, want [host_reboot]", cfg.DefaultRestrictions.Services)
	}
	if cfg.Settings.AllowChainedActions {
		t.Error("settings.allow_chained_actions should be false")
	}
	if !cfg.Settings.ShowNotifications {
		t.Error("omitted settings should keep their defaults")
	}
}

func TestConfigRepository_Load_LegacyShapes(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
restrictions:
  domains:
    system_log:
      hide: true
roles:
  limited:
    access: deny
    allowlist:
      domains:
        light:
          services: [turn_on, turn_off]
    restrictions:
      entities:
        lock.front_door:
          services: [unlock]
`)

	cfg, err := NewConfigRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Legacy document-level restrictions fold into default_restrictions.
	rule := cfg.DefaultRestrictions.Domains["system_log"]
	if rule == nil || rule.Allow {
		t.Errorf("system_log restriction = %+v, want deny rule from hide flag", rule)
	}

	limited := cfg.GetRole("limited")
	if limited == nil {
		t.Fatal("limited role missing")
	}
	if !limited.DenyAll {
		t.Error("access: deny should normalize to deny_all")
	}
	domainRule := limited.Permissions.GetDomain("light")
	if domainRule == nil || !domainRule.Allow {
		t.Errorf("allowlist domain rule = %+v, want allow", domainRule)
	}
	entityRule := limited.Permissions.GetEntity("lock.front_door")
	if entityRule == nil || entityRule.Allow {
		t.Errorf("restrictions entity rule = %+v, want deny", entityRule)
	}
}

func TestConfigRepository_Load_BootstrapsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "access_control.yaml")

	cfg, err := NewConfigRepository(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("bootstrap did not write the default document: %v", err)
	}
	if cfg.GetRole("admin") == nil || cfg.GetRole("guest") == nil {
		t.Error("default config should contain the stock roles")
	}
	if cfg.DefaultRestrictions.Domains["homeassistant"] == nil {
		t.Error("default config should restrict homeassistant services")
	}
}

func TestConfigRepository_RoundTrip(t *testing.T) {
	path := writeConfig(t, `
version: "2.0"
default_role: guest
default_restrictions:
  domains:
    hassio: {hide: true}
roles:
  guest:
    deny_all: true
    permissions:
      domains:
        light: {allow: true, services: [turn_on]}
      entities:
        light.bedroom: {allow: false, services: [turn_off]}
users:
  abc: {role: guest}
`)
	repo := NewConfigRepository(path)
	ctx := context.Background()

	first, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}

	// Normalization must be lossless: the reloaded config is identical,
	// so every role's permission index would be identical too.
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round-trip changed the config:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
