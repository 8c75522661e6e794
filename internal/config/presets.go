package config

import (
	"fmt"
	"sort"
	"strings"
)

// Preset is a named output resolution.
type Preset struct {
	Width, Height int
}

var presets = map[string]Preset{
	"1080p": {1920, 1080},
	"16:9":  {1920, 1080},
	"720p":  {1280, 720},
	"9:16":  {1080, 1920},
	"4:5":   {1080, 1350},
}

// LookupPreset resolves a preset name, case-insensitively.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames lists the known presets in stable order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset sets Width and Height from a named preset.
func (c *Config) ApplyPreset(name string) error {
	p, ok := LookupPreset(name)
	if !ok {
		return fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	c.Preset = name
	c.Width, c.Height = p.Width, p.Height
	return nil
}
