package profiles

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var extensions = []string{".yaml", ".yml", ".json"}

// Loader resolves profile names against the search paths, then the
// builtin profiles. Compiled profiles are cached by name.
type Loader struct {
	cache       sync.Map
	validator   *SchemaValidator
	searchPaths []string
}

func NewLoader(searchPaths []string) (*Loader, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

func (l *Loader) Load(name string) (*Profile, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*Profile), nil
	}

	data, source, err := l.find(name)
	if err != nil {
		return nil, err
	}

	profile, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s (%s): %w", name, source, err)
	}

	actual, _ := l.cache.LoadOrStore(name, profile)
	return actual.(*Profile), nil
}

// Parse validates and compiles a YAML or JSON profile document.
func (l *Loader) Parse(data []byte) (*Profile, error) {
	doc, err := toJSON(data)
	if err != nil {
		return nil, err
	}

	if err := l.validator.Validate(doc); err != nil {
		return nil, err
	}

	var def types.InstrumentProfileDefinition
	if err := json.Unmarshal(doc, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return Compile(&def)
}

// Available lists loadable profile names: builtins plus files found in
// the search paths.
func (l *Loader) Available() []string {
	names := make(map[string]bool)
	for _, n := range Builtin() {
		names[n] = true
	}
	for _, dir := range l.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			for _, want := range extensions {
				if ext == want && !e.IsDir() {
					names[strings.TrimSuffix(e.Name(), ext)] = true
				}
			}
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (l *Loader) ClearCache() {
	l.cache.Range(func(key, value any) bool {
		l.cache.Delete(key)
		return true
	})
}

func (l *Loader) find(name string) ([]byte, string, error) {
	for _, searchPath := range l.searchPaths {
		for _, ext := range extensions {
			fullPath := filepath.Join(searchPath, name+ext)
			data, err := os.ReadFile(fullPath)
			if err == nil {
				return data, fullPath, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", fmt.Errorf("read %s: %w", fullPath, err)
			}
		}
	}

	builtinPath := "builtin/" + name + ".yaml"
	if data, err := builtinFS.ReadFile(builtinPath); err == nil {
		return data, builtinPath, nil
	}

	return nil, "", fmt.Errorf("profile not found: %s (searched in: %v and builtins)", name, l.searchPaths)
}

// Builtin lists the embedded profile names.
func Builtin() []string {
	entries, _ := builtinFS.ReadDir("builtin")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

// toJSON accepts YAML (a superset of JSON) and re-encodes it as JSON for
// schema validation.
func toJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid profile document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("empty profile document")
	}
	out, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	return out, nil
}

// normalize turns non-string mapping keys (unquoted numbers, booleans)
// into strings so the document is JSON-encodable.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
