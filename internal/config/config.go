// Package config loads and live-reloads the coder's registry configuration:
// which digest, cipher, and compressor names are enabled, and the default
// Coder parameters. It uses gopkg.in/yaml.v3 for the file format and
// github.com/fsnotify/fsnotify to pick up changes on disk.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// RegistryConfig restricts which algorithm names the coder's adapters will
// resolve. An empty slice means "every built-in," matching
// digest.NewRegistry's and cipheradapter.NewRegistry's nil-means-all
// convention. Only Digests and Ciphers are consumed (by cmd/codercli);
// Compressors and ParityTypes are parsed but nothing in this module reads
// them.
type RegistryConfig struct {
	Digests      []string `yaml:"digests"`
	Compressors  []string `yaml:"compressors"`
	Ciphers      []string `yaml:"ciphers"`
	ParityTypes  []string `yaml:"parity_types"`
}

// HardwareConfig mirrors internal/hardware.Config for YAML unmarshalling.
type HardwareConfig struct {
	EnableAESNI    bool `yaml:"enable_aes_ni"`
	EnableARMv8AES bool `yaml:"enable_armv8_aes"`
}

// DefaultsConfig seeds a Coder.Config's algorithm selection when a caller
// doesn't specify one explicitly.
type DefaultsConfig struct {
	DigestType     string `yaml:"digest_type"`
	FragDigestType string `yaml:"frag_digest_type"`
	CompressType   string `yaml:"compress_type"`
	CipherType     string `yaml:"cipher_type"`
	ParityType     string `yaml:"parity_type"`
	DataFrags      int    `yaml:"data_frags"`
	ParityFrags    int    `yaml:"parity_frags"`
	LRCGroup       int    `yaml:"lrc_group"`
	LRCFrags       int    `yaml:"lrc_frags"`
}

// Config is the coder process's full on-disk configuration.
type Config struct {
	Registry RegistryConfig  `yaml:"registry"`
	Hardware HardwareConfig  `yaml:"hardware"`
	Defaults DefaultsConfig  `yaml:"defaults"`
}

// Load parses a YAML config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Watcher holds the live-reloaded Config plus the fsnotify watcher driving
// it: a feeder goroutine watches the file and swaps in a freshly parsed
// snapshot behind a mutex whenever it changes.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	fsw    *fsnotify.Watcher
	onLoad func(*Config, error)
}

// NewWatcher loads path once and begins watching it for changes. onLoad, if
// non-nil, is invoked (from a background goroutine) after every successful
// or failed reload.
func NewWatcher(path string, onLoad func(*Config, error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{path: path, cfg: cfg, fsw: fsw, onLoad: onLoad}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err == nil {
				w.mu.Lock()
				w.cfg = cfg
				w.mu.Unlock()
			}
			if w.onLoad != nil {
				w.onLoad(cfg, err)
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Current returns the most recently loaded Config snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
