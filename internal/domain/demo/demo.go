package demo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
)

var (
	ErrNoEntryFile    = errors.New("demo has no FILE dependency")
	ErrAmbiguousEntry = errors.New("demo has several FILE dependencies and no entry")
)

// DependencyType classifies asset dependencies
type DependencyType string

const (
	TypeFile DependencyType = "FILE"
	TypeNPM  DependencyType = "NPM"
)

// Dependency describes one entry of an asset's dependency map
type Dependency struct {
	Type  DependencyType `json:"type" yaml:"type" toml:"type"`
	Value string         `json:"value" yaml:"value" toml:"value"`
}

// Asset is the metadata of a demo
type Asset struct {
	ID           string                `json:"id"`
	Title        string                `json:"title,omitempty"`
	Entry        string                `json:"entry,omitempty"`
	Dependencies map[string]Dependency `json:"dependencies"`
}

// EntryFile returns the path of the primary FILE dependency
func (a Asset) EntryFile() (string, error) {
	if a.Entry != "" {
		dep, ok := a.Dependencies[a.Entry]
		if !ok || dep.Type != TypeFile {
			return "", fmt.Errorf("entry %q is not a FILE dependency", a.Entry)
		}
		return a.Entry, nil
	}

	var files []string
	for path, dep := range a.Dependencies {
		if dep.Type == TypeFile {
			files = append(files, path)
		}
	}
	switch len(files) {
	case 0:
		return "", ErrNoEntryFile
	case 1:
		return files[0], nil
	default:
		sort.Strings(files)
		return "", fmt.Errorf("%w: %v", ErrAmbiguousEntry, files)
	}
}

// Source maps logical file paths to source text. A Source handed to a
// controller is treated as immutable.
type Source map[string]string

// Clone returns an independent copy of s
func (s Source) Clone() Source {
	out := make(Source, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Source returns the asset's FILE dependencies as a Source
func (a Asset) Source() Source {
	src := make(Source)
	for path, dep := range a.Dependencies {
		if dep.Type == TypeFile {
			src[path] = dep.Value
		}
	}
	return src
}

// Demo is one catalogue entry
type Demo struct {
	ID      id.DemoID
	Title   string
	Asset   Asset
	Context sandbox.Dependencies
	Iframe  bool
}
