package confloader

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment variables read by Load.
const DefaultEnvPrefix = "TOKSTASH_"

// ErrUnknownKey is returned for an override naming a key the target
// struct does not declare.
var ErrUnknownKey = errors.New("confloader: unknown key")

// Loader layers configuration sources over the defaults held by a
// koanf-tagged struct.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides []string

	// paths maps the flattened form of every leaf key (storage_data_dir)
	// to its dotted koanf path (storage.data_dir).
	paths map[string]string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides adds key=value assignments applied after the environment,
// e.g. "log.level=debug".
func WithOverrides(assignments ...string) Option {
	return func(l *Loader) { l.overrides = append(l.overrides, assignments...) }
}

// NewLoader returns a Loader reading DefaultEnvPrefix variables.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		paths:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fills target. Later sources win:
//
//  1. values already in target
//  2. the YAML file
//  3. environment variables
//  4. overrides
//
// Keys no source mentions keep the value target had on entry.
func (l *Loader) Load(target any) error {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("confloader: target must be a pointer to a struct, got %T", target)
	}
	walkKeys(t.Elem(), "", func(path string) {
		l.paths[strings.ReplaceAll(path, ".", "_")] = path
	})

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envPath), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	for _, a := range l.overrides {
		if err := l.set(a); err != nil {
			return err
		}
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (l *Loader) set(assignment string) error {
	key, value, ok := strings.Cut(assignment, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("confloader: override %q is not key=value", assignment)
	}
	if _, known := l.paths[strings.ReplaceAll(key, ".", "_")]; !known {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return l.k.Set(key, value)
}

// envPath maps TOKSTASH_STORAGE_DATA_DIR to storage.data_dir when the
// target declares that key. Unknown names fall back to one level per
// underscore.
func (l *Loader) envPath(name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	if p, ok := l.paths[s]; ok {
		return p
	}
	return strings.ReplaceAll(s, "_", ".")
}

// walkKeys calls fn with the dotted path of every koanf-tagged leaf of t.
// Nested structs are descended, except time types.
func walkKeys(t reflect.Type, prefix string, fn func(string)) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			walkKeys(ft, path, fn)
			continue
		}
		fn(path)
	}
}
