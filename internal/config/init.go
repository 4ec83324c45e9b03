package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

type sampleGroup struct {
	PublicDir           string              `yaml:"public_dir"`
	CSSDir              string              `yaml:"css_dir"`
	JSDir               string              `yaml:"js_dir"`
	PackagesDir         string              `yaml:"packages_dir"`
	Pipeline            any                 `yaml:"pipeline"`
	PipelineDir         string              `yaml:"pipeline_dir"`
	PipelineGzip        any                 `yaml:"pipeline_gzip"`
	PipelineHash        string              `yaml:"pipeline_hash"`
	AssetRegex          string              `yaml:"asset_regex"`
	CSSRegex            string              `yaml:"css_regex"`
	JSRegex             string              `yaml:"js_regex"`
	NoMinificationRegex string              `yaml:"no_minification_regex"`
	Collections         map[string][]string `yaml:"collections"`
	Autoload            []string            `yaml:"autoload"`
}

type sampleFile struct {
	Default sampleGroup  `yaml:"default"`
	Ledger  LedgerConfig `yaml:"ledger"`
	Server  ServerConfig `yaml:"server"`
	Watch   struct {
		Debounce      string `yaml:"debounce"`
		FlushInterval string `yaml:"flush_interval"`
	} `yaml:"watch"`
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}

	sample := sampleFile{
		Default: sampleGroup{
			PublicDir:           DefaultPublicDir,
			CSSDir:              "css",
			JSDir:               "js",
			PackagesDir:         "packages",
			Pipeline:            false,
			PipelineDir:         "min",
			PipelineGzip:        false,
			PipelineHash:        "md5",
			AssetRegex:          `/.\.(css|js)$/i`,
			CSSRegex:            `/.\.css$/i`,
			JSRegex:             `/.\.js$/i`,
			NoMinificationRegex: `/.[-.]min\.(css|js)$/i`,
			Collections: map[string][]string{
				"jquery-cdn": {"//ajax.googleapis.com/ajax/libs/jquery/1.10.2/jquery.min.js"},
				"jquery-ui-cdn": {
					"jquery-cdn",
					"//ajax.googleapis.com/ajax/libs/jqueryui/1.10.3/jquery-ui.min.js",
				},
				"bootstrap-cdn": {
					"jquery-cdn",
					"//netdna.bootstrapcdn.com/bootstrap/3.2.0/css/bootstrap.min.css",
					"//netdna.bootstrapcdn.com/bootstrap/3.2.0/css/bootstrap-theme.min.css",
					"//netdna.bootstrapcdn.com/bootstrap/3.2.0/js/bootstrap.min.js",
				},
				"foundation-cdn": {
					"jquery-cdn",
					"//cdn.jsdelivr.net/foundation/5.3.3/css/normalize.css",
					"//cdn.jsdelivr.net/foundation/5.3.3/css/foundation.min.css",
					"//cdn.jsdelivr.net/foundation/5.3.3/js/foundation.min.js",
					"app.js",
				},
			},
			Autoload: []string{"jquery-cdn"},
		},
		Ledger: LedgerConfig{Path: "./assetbuilder.db"},
		Server: ServerConfig{Addr: ":8080", Metrics: true},
	}
	sample.Watch.Debounce = "300ms"
	sample.Watch.FlushInterval = "24h"

	data, err := yaml.Marshal(&sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 - config file is not secret
		return ferrors.WrapError(err, ferrors.CategoryStorage, "failed to write config file").Build()
	}
	return nil
}
