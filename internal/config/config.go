// Package config loads asset manager groups from a YAML, JSON(C) or TOML file.
//
// A file either configures a single group at the top level, or holds a
// `default` mapping plus further named groups:
//
//	default:
//	  public_dir: ./public
//	  pipeline: auto
//	admin:
//	  css_dir: admin/css
//
// The sections notify, ledger, server and watch are never groups.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/manager"
)

// DefaultGroup names the group used by flat configuration files.
const DefaultGroup = "default"

// DefaultPublicDir is used for groups that set no public_dir.
const DefaultPublicDir = "public"

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFor derives the format from a file extension; YAML is the default.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// SearchPaths are tried in order by Discover.
var SearchPaths = []string{
	"assetbuilder.yaml",
	"assetbuilder.yml",
	"assetbuilder.toml",
	"assetbuilder.jsonc",
	"assetbuilder.json",
}

// Config is a loaded configuration file.
type Config struct {
	Path   string
	Groups map[string]manager.Options
	Notify NotifyConfig
	Ledger LedgerConfig
	Server ServerConfig
	Watch  WatchConfig
}

// NotifyConfig configures artifact notifications over NATS.
type NotifyConfig struct {
	NATSURL  string `yaml:"nats_url"`
	Subject  string `yaml:"subject"`
	Stream   string `yaml:"stream"`
	KVBucket string `yaml:"kv_bucket"`
}

// LedgerConfig configures the artifact ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the static file server.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce      time.Duration `yaml:"debounce"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

var sections = []string{"notify", "ledger", "server", "watch"}

// Discover returns the first existing file of SearchPaths.
func Discover() (string, error) {
	for _, p := range SearchPaths {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", ferrors.NotFoundError("no configuration file found").
		WithContext("searched", strings.Join(SearchPaths, ", ")).Build()
}

// Load reads, expands and parses the configuration file at path.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load .env file").Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NotFoundError("configuration file not found").WithContext("path", path).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))), FormatFor(path))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration file").
			WithContext("path", path).Fatal().UserAction().Build()
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes data without environment expansion.
func Parse(data []byte, format Format) (*Config, error) {
	raw, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Groups: make(map[string]manager.Options)}
	for _, name := range sections {
		section, ok := raw[name]
		if !ok {
			continue
		}
		delete(raw, name)
		if err := decodeSection(section, cfg.sectionTarget(name)); err != nil {
			return nil, fmt.Errorf("section %s: %w", name, err)
		}
	}

	if _, grouped := raw[DefaultGroup].(map[string]any); grouped {
		for name, v := range raw {
			group, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("group %q must be a mapping", name)
			}
			cfg.Groups[name] = manager.Options(group)
		}
	} else {
		cfg.Groups[DefaultGroup] = manager.Options(raw)
	}

	for _, opts := range cfg.Groups {
		if v, ok := opts[manager.KeyPublicDir]; !ok || v == nil || v == "" {
			opts[manager.KeyPublicDir] = DefaultPublicDir
		}
	}
	return cfg, nil
}

func (c *Config) sectionTarget(name string) any {
	switch name {
	case "notify":
		return &c.Notify
	case "ledger":
		return &c.Ledger
	case "server":
		return &c.Server
	default:
		return &c.Watch
	}
}

// GroupNames returns the group names with the default group first.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		if name != DefaultGroup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := c.Groups[DefaultGroup]; ok {
		names = slices.Insert(names, 0, DefaultGroup)
	}
	return names
}

// Select returns the named groups, or every group when names is empty.
func (c *Config) Select(names ...string) ([]string, error) {
	if len(names) == 0 {
		return c.GroupNames(), nil
	}
	for _, n := range names {
		if _, ok := c.Groups[n]; !ok {
			return nil, ferrors.NotFoundError("the provided group does not exist").WithContext("group", n).Build()
		}
	}
	return names, nil
}

func decode(data []byte, format Format) (map[string]any, error) {
	raw := map[string]any{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// decodeSection converts a generic section into its typed struct by
// round-tripping through YAML, which all three formats can represent.
func decodeSection(v any, target any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, target)
}
