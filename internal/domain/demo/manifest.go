package demo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
	"github.com/GriffinCanCode/livedemo/internal/shared/utils"
)

// ManifestPattern matches demo manifests relative to the demo directory
const ManifestPattern = "**/*.demo.{yaml,yml,toml}"

// Manifest is the on-disk description of a demo
type Manifest struct {
	ID           string                        `yaml:"id" toml:"id"`
	Title        string                        `yaml:"title" toml:"title"`
	Entry        string                        `yaml:"entry" toml:"entry"`
	Iframe       bool                          `yaml:"iframe" toml:"iframe"`
	Dependencies map[string]ManifestDependency `yaml:"dependencies" toml:"dependencies"`
}

// ManifestDependency is a dependency whose FILE value may live on disk
type ManifestDependency struct {
	Type  DependencyType `yaml:"type" toml:"type"`
	Value string         `yaml:"value" toml:"value"`
	Path  string         `yaml:"path" toml:"path"`
}

// ParseManifest decodes a manifest; the format follows the file extension
func ParseManifest(data []byte, filename string) (*Manifest, error) {
	var m Manifest
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", filename, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid TOML in %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", ext)
	}
	return &m, nil
}

// Demo resolves the manifest into a Demo. FILE paths are read relative to
// baseDir; NPM names are looked up in modules and silently left out of the
// context when unknown.
func (m *Manifest) Demo(baseDir string, modules sandbox.Dependencies) (*Demo, error) {
	asset := Asset{
		ID:           m.ID,
		Title:        m.Title,
		Entry:        m.Entry,
		Dependencies: make(map[string]Dependency, len(m.Dependencies)),
	}
	deps := make(sandbox.Dependencies)

	for name, dep := range m.Dependencies {
		switch dep.Type {
		case TypeFile:
			value := dep.Value
			if dep.Path != "" {
				data, err := readSourceFile(filepath.Join(baseDir, dep.Path))
				if err != nil {
					return nil, err
				}
				value = data
			}
			asset.Dependencies[name] = Dependency{Type: TypeFile, Value: value}
		case TypeNPM:
			asset.Dependencies[name] = Dependency{Type: TypeNPM, Value: dep.Value}
			if mod, ok := modules[name]; ok {
				deps[name] = mod
			}
		default:
			return nil, fmt.Errorf("dependency %s: unknown type %q", name, dep.Type)
		}
	}

	if _, err := asset.EntryFile(); err != nil {
		return nil, fmt.Errorf("demo %s: %w", m.ID, err)
	}

	if err := utils.ValidateID(m.ID, "demo id", false); err != nil {
		return nil, err
	}
	demoID := id.DemoID(m.ID)
	if demoID == "" {
		demoID = id.NewDemoID()
		asset.ID = demoID.String()
	}

	return &Demo{
		ID:      demoID,
		Title:   m.Title,
		Asset:   asset,
		Context: deps,
		Iframe:  m.Iframe,
	}, nil
}

func readSourceFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read demo file: %w", err)
	}
	if !isText(data) {
		return "", fmt.Errorf("demo file %s is not text (%s)", path, mimetype.Detect(data).String())
	}
	return string(data), nil
}

func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// FindManifests returns the sorted paths of every manifest under root
func FindManifests(root string) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(ManifestPattern, filepath.ToSlash(rel)); ok {
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

// LoadDir loads every manifest under root. Duplicate ids are an error.
func LoadDir(root string, modules sandbox.Dependencies) ([]*Demo, error) {
	paths, err := FindManifests(root)
	if err != nil {
		return nil, err
	}

	demos := make([]*Demo, 0, len(paths))
	seen := make(map[id.DemoID]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		m, err := ParseManifest(data, p)
		if err != nil {
			return nil, err
		}
		d, err := m.Demo(filepath.Dir(p), modules)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("duplicate demo id %q in %s and %s", d.ID, prev, p)
		}
		seen[d.ID] = p
		demos = append(demos, d)
	}
	return demos, nil
}
