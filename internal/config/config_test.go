package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
registry:
  digests: ["sha256", "xxhash"]
  ciphers: ["aes-256-gcm"]
defaults:
  digest_type: sha256
  cipher_type: aes-256-gcm
  parity_type: isa-rs
  data_frags: 4
  parity_frags: 2
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "coder.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesRegistryAndDefaults(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Registry.Digests) != 2 || cfg.Registry.Digests[0] != "sha256" {
		t.Fatalf("unexpected digests: %v", cfg.Registry.Digests)
	}
	if cfg.Defaults.DataFrags != 4 || cfg.Defaults.ParityFrags != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg.Defaults)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTemp(t, sampleYAML)

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.Current().Defaults.DataFrags != 4 {
		t.Fatalf("unexpected initial snapshot: %+v", w.Current().Defaults)
	}

	updated := `
defaults:
  data_frags: 8
  parity_frags: 3
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	if w.Current().Defaults.DataFrags != 8 {
		t.Fatalf("watcher did not pick up reload: %+v", w.Current().Defaults)
	}
}
