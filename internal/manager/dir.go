package manager

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// AddDir adds every file below public_dir/dir whose public-relative path
// matches pattern. An empty pattern uses asset_regex. A missing directory
// is not an error.
func (m *Manager) AddDir(dir, pattern string) error {
	m.mu.Lock()
	re := m.cfg.resolver.AssetPattern
	m.mu.Unlock()

	if pattern != "" {
		compiled, err := assets.CompilePattern(pattern)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid directory pattern").
				WithContext("pattern", pattern).Build()
		}
		re = compiled
	}
	return m.addDir(dir, re)
}

// AddDirCSS adds every stylesheet below public_dir/dir.
func (m *Manager) AddDirCSS(dir string) error {
	m.mu.Lock()
	re := m.cfg.resolver.CSSPattern
	m.mu.Unlock()
	return m.addDir(dir, re)
}

// AddDirJS adds every script below public_dir/dir.
func (m *Manager) AddDirJS(dir string) error {
	m.mu.Lock()
	re := m.cfg.resolver.JSPattern
	m.mu.Unlock()
	return m.addDir(dir, re)
}

func (m *Manager) addDir(dir string, re *regexp.Regexp) error {
	root := m.PublicDir()
	files, err := scan(root, dir, re)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.cfg.resolver
	switch {
	case sameRegexp(re, r.JSPattern):
		m.js.Add(files...)
	case sameRegexp(re, r.CSSPattern):
		m.css.Add(files...)
	default:
		for _, f := range files {
			switch r.Classify(f) {
			case assets.KindJS:
				m.js.Add(f)
			case assets.KindCSS:
				m.css.Add(f)
			}
		}
	}
	return nil
}

// scan walks root/dir in lexical order and returns matching files relative
// to root with forward slashes.
func scan(root, dir string, re *regexp.Regexp) ([]string, error) {
	base := filepath.Join(root, filepath.FromSlash(dir))
	fi, err := os.Stat(base)
	if err != nil || !fi.IsDir() {
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if re == nil || re.MatchString(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStorage, "scan asset directory").
			WithContext("dir", base).Build()
	}
	return files, nil
}

func sameRegexp(a, b *regexp.Regexp) bool {
	return a != nil && b != nil && (a == b || a.String() == b.String())
}
