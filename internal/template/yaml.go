package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
)

// FileSpec is one filesystem entry in a YAML template
type FileSpec struct {
	Path    string `yaml:"path"`
	Kind    string `yaml:"kind"`
	Content string `yaml:"content"`
	Program string `yaml:"program"`
}

// SystemSpec is the document format of a YAML system template
type SystemSpec struct {
	Name       string     `yaml:"name"`
	SystemName string     `yaml:"system_name"`
	Home       string     `yaml:"home"`
	Files      []FileSpec `yaml:"files"`
	Services   [][]string `yaml:"services"`
}

// YAMLDir serves the *.yaml templates of one directory, keyed by name
type YAMLDir struct {
	dir   string
	specs map[string]*SystemSpec
}

// LoadYAMLDir parses every *.yaml and *.yml file in dir. A missing directory
// yields an empty provider.
func LoadYAMLDir(dir string) (*YAMLDir, error) {
	y := &YAMLDir{dir: dir, specs: make(map[string]*SystemSpec)}
	if dir == "" {
		return y, nil
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return y, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		spec, err := parseSpecFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := y.specs[spec.Name]; dup {
			return nil, fmt.Errorf("template %q defined twice in %s", spec.Name, dir)
		}
		y.specs[spec.Name] = spec
		logger.Debug("loaded template %s from %s", spec.Name, entry.Name())
	}
	return y, nil
}

func parseSpecFile(path string) (*SystemSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	var spec SystemSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i, f := range spec.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("template %s: file %d has no path", spec.Name, i)
		}
		if _, err := model.ParseFileKind(f.Kind); err != nil {
			return nil, fmt.Errorf("template %s: %s: %w", spec.Name, f.Path, err)
		}
	}
	return &spec, nil
}

// Names lists the loaded template names
func (y *YAMLDir) Names() []string {
	names := make([]string, 0, len(y.specs))
	for n := range y.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (y *YAMLDir) Apply(_ context.Context, name string, t Target) error {
	spec, ok := y.specs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	if spec.Home != "" {
		t.Login().Home = expand(spec.Home, t)
	} else if t.Login().Home == "" {
		t.Login().Home = "/home/" + t.Login().User
	}
	if spec.SystemName != "" {
		t.System().Name = expand(spec.SystemName, t)
	}

	for _, f := range spec.Files {
		kind, _ := model.ParseFileKind(f.Kind)
		if err := t.AddFile(expand(f.Path, t), kind, expand(f.Content, t), f.Program); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
	}
	for _, argv := range spec.Services {
		if len(argv) == 0 {
			continue
		}
		if err := t.AddService(argv); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
	}
	return nil
}
