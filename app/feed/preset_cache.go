package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PresetCache holds the tag presets found in a directory of *.yml files.
type PresetCache struct {
	presetsDir string
	cache      map[string]*Preset
	mu         sync.RWMutex
}

func NewPresetCache(presetsDir string) *PresetCache {
	return &PresetCache{
		presetsDir: presetsDir,
		cache:      make(map[string]*Preset),
	}
}

func (pc *PresetCache) Dir() string {
	return pc.presetsDir
}

// Run loads every preset file. A missing directory is not an error.
func (pc *PresetCache) Run() error {
	if _, err := os.Stat(pc.presetsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(pc.presetsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	loaded := make(map[string]*Preset, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		preset, err := pc.parsePreset(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		preset.Name = name

		if err := validatePreset(preset); err != nil {
			return fmt.Errorf("invalid preset %s: %w", file, err)
		}

		loaded[name] = preset
		slog.Debug("Preset loaded", "preset", name, "tags", preset.Tags, "exclude", preset.Exclude)
	}

	pc.mu.Lock()
	pc.cache = loaded
	pc.mu.Unlock()

	return nil
}

func (pc *PresetCache) GetPreset(name string) (*Preset, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	preset, ok := pc.cache[name]
	if !ok {
		return nil, fmt.Errorf("preset with name '%s' not found", name)
	}
	p := *preset
	return &p, nil
}

// GetPresets returns every preset sorted by name.
func (pc *PresetCache) GetPresets() []Preset {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	presets := make([]Preset, 0, len(pc.cache))
	for _, p := range pc.cache {
		presets = append(presets, *p)
	}
	slices.SortFunc(presets, func(a, b Preset) int {
		return strings.Compare(a.Name, b.Name)
	})
	return presets
}

func (pc *PresetCache) GetPresetCount() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.cache)
}

func (pc *PresetCache) parsePreset(file string) (*Preset, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	preset.Tags = normalizeTagList(preset.Tags)
	preset.Exclude = normalizeTagList(preset.Exclude)

	return &preset, nil
}

func validatePreset(preset *Preset) error {
	if preset.Tags == "" && preset.Exclude == "" {
		return fmt.Errorf("preset must set tags or exclude")
	}
	return nil
}

// normalizeTagList trims and lowercases a comma separated tag list.
func normalizeTagList(list string) string {
	var tags []string
	for _, tag := range strings.Split(list, ",") {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}
	return strings.Join(tags, ",")
}
