// Package presets loads named role/knowledge bundles from disk, the way
// the upstream agent's SkillsLoader discovers and parses skill
// directories — but here each preset is a single JSON file rather than a
// SKILL.md with frontmatter, and the registry is read once at startup
// and never mutated again.
package presets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Preset is a named bundle of persona text plus seed knowledge strings.
type Preset struct {
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Knowledges []string `json:"knowledges"`
	Hidden     bool     `json:"hidden"`
}

// exampleFilename is seeded into an empty preset directory so an
// operator has something to inspect with the presets command.
const exampleFilename = "example.json"

var examplePreset = Preset{
	Name: "example",
	Role: "a friendly, curious group-chat companion who keeps replies short",
	Knowledges: []string{
		"This preset is a starting point; edit or replace it with your own.",
	},
	Hidden: false,
}

// Registry is the immutable, read-only-after-load set of presets found
// in a directory. Loading a preset into a Session mutates the Session,
// never the Registry.
type Registry struct {
	dir     string
	presets map[string]Preset
}

// Load reads every *.json file in dir as a Preset. If dir doesn't exist
// yet or is empty, it's created and seeded with an example preset so the
// registry is never returned empty on a fresh install.
func Load(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create presets dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read presets dir: %w", err)
	}

	if len(entries) == 0 {
		if err := seedExample(dir); err != nil {
			return nil, err
		}
		entries, err = os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read presets dir after seeding: %w", err)
		}
	}

	reg := &Registry{dir: dir, presets: make(map[string]Preset)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read preset %s: %w", e.Name(), err)
		}
		var p Preset
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse preset %s: %w", e.Name(), err)
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(e.Name(), ".json")
		}
		reg.presets[e.Name()] = p
	}
	return reg, nil
}

func seedExample(dir string) error {
	data, err := json.MarshalIndent(examplePreset, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal example preset: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, exampleFilename), data, 0o644)
}

// Get looks up a preset by its filename (as given to the set_preset
// command), reporting whether it was found.
func (r *Registry) Get(filename string) (Preset, bool) {
	p, ok := r.presets[filename]
	return p, ok
}

// List returns every non-hidden preset's filename, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.presets))
	for name, p := range r.presets {
		if p.Hidden {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
