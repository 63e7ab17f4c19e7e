package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"partsync-backend/internal/shared/telemetry"
)

// ClassifyConfig carries the enumerated category list and pricing defaults
// used when building classification prompts and upsert payloads.
type ClassifyConfig struct {
	Categories    []string `yaml:"categories"`
	MarginPercent float64  `yaml:"margin_percent"`
	DefaultUnit   string   `yaml:"default_unit"`
	BrandHint     string   `yaml:"brand_hint"`
}

const defaultMarginPercent = 20

// DefaultClassifyConfig returns the config used when no classify file is
// available: default margin and unit, no category list.
func DefaultClassifyConfig() ClassifyConfig {
	return normalizeClassifyConfig(ClassifyConfig{})
}

// LoadClassifyConfig reads the classification config from a YAML file.
func LoadClassifyConfig(path string) (ClassifyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClassifyConfig{}, fmt.Errorf("read classify config: %w", err)
	}
	var cfg ClassifyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ClassifyConfig{}, fmt.Errorf("parse classify config: %w", err)
	}
	return normalizeClassifyConfig(cfg), nil
}

func normalizeClassifyConfig(cfg ClassifyConfig) ClassifyConfig {
	var categories []string
	for _, c := range cfg.Categories {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			categories = append(categories, trimmed)
		}
	}
	cfg.Categories = categories
	if cfg.MarginPercent <= 0 {
		cfg.MarginPercent = defaultMarginPercent
	}
	if strings.TrimSpace(cfg.DefaultUnit) == "" {
		cfg.DefaultUnit = "pcs"
	}
	return cfg
}

// ClassifyWatcher keeps a ClassifyConfig current as the backing file changes.
// Long runs pick up category or margin edits between batches without restart.
type ClassifyWatcher struct {
	mu      sync.RWMutex
	current ClassifyConfig
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewClassifyWatcher loads the config once and starts watching the file.
func NewClassifyWatcher(path string) (*ClassifyWatcher, error) {
	cfg, err := LoadClassifyConfig(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start classify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w := &ClassifyWatcher{
		current: cfg,
		path:    path,
		watcher: fsw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the latest successfully loaded config.
func (w *ClassifyWatcher) Current() ClassifyConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the watcher.
func (w *ClassifyWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *ClassifyWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := LoadClassifyConfig(w.path)
			if err != nil {
				// Keep serving the previous config on a bad edit.
				telemetry.Error("classify.config.reload", map[string]any{
					"path":  w.path,
					"error": err.Error(),
				})
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			telemetry.Info("classify.config.reload", map[string]any{
				"path":       w.path,
				"categories": len(cfg.Categories),
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			telemetry.Error("classify.config.watch", map[string]any{
				"path":  w.path,
				"error": err.Error(),
			})
		}
	}
}
