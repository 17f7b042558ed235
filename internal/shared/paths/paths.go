package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FrameworkName names the hidden source directory and config files
const FrameworkName = "dumi"

// DevelopmentEnv keeps the plain tmp directory
const DevelopmentEnv = "development"

// DefaultConfigFiles are probed in order when no config file is given
var DefaultConfigFiles = []string{
	".dumirc.ts",
	".dumirc.js",
	"config/config.ts",
	"config/config.js",
}

// ErrNoConfigFile is returned when no candidate config file exists
var ErrNoConfigFile = errors.New("no config file found")

// Paths is the resolved project layout. Every path is absolute and uses
// forward slashes.
type Paths struct {
	Cwd                string
	AbsSrcPath         string
	AbsPagesPath       string
	AbsAPIRoutesPath   string
	AbsTmpPath         string
	AbsNodeModulesPath string
	AbsOutputPath      string
}

// Resolve lays out the project rooted at cwd for env. Conventional source
// files live under .dumi rather than src.
func Resolve(cwd, env string) (Paths, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve cwd %q: %w", cwd, err)
	}

	tmp := "tmp"
	if env != "" && env != DevelopmentEnv {
		tmp = "tmp-" + env
	}

	src := join(abs, "."+FrameworkName)
	return Paths{
		Cwd:                slash(abs),
		AbsSrcPath:         src,
		AbsPagesPath:       join(src, "pages"),
		AbsAPIRoutesPath:   join(src, "api"),
		AbsTmpPath:         join(src, tmp),
		AbsNodeModulesPath: join(abs, "node_modules"),
		AbsOutputPath:      join(abs, "dist"),
	}, nil
}

// DemosDir is where demo manifests live when no directory is configured
func (p Paths) DemosDir() string {
	return join(p.AbsSrcPath, "demos")
}

// ConfigCandidates lists the config files probed for cwd, the explicit one
// first
func ConfigCandidates(explicit string) []string {
	out := make([]string, 0, len(DefaultConfigFiles)+1)
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		out = append(out, explicit)
	}
	return append(out, DefaultConfigFiles...)
}

// FindConfigFile returns the first candidate that exists under cwd
func FindConfigFile(cwd, explicit string) (string, error) {
	for _, candidate := range ConfigCandidates(explicit) {
		path := candidate
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			return slash(path), nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoConfigFile, cwd)
}

func join(elem ...string) string {
	return slash(filepath.Join(elem...))
}

func slash(p string) string {
	return filepath.ToSlash(p)
}
