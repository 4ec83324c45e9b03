package manager

import (
	"context"

	"git.home.luguber.info/inful/assetbuilder/internal/assets"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/render"
)

// RenderOptions controls CSS and JS output.
type RenderOptions struct {
	// Attributes are added to every tag. href and src are ignored.
	Attributes []render.Attr
	// Render, when set, receives the (possibly bundled) links and its result
	// is returned instead of tags.
	Render func(links []string) string
	// Secure selects https for protocol-relative links while bundling.
	Secure bool
}

// CSS renders the stylesheet list. An empty list renders as "".
func (m *Manager) CSS(ctx context.Context, opts RenderOptions) (string, error) {
	links, err := m.links(ctx, assets.KindCSS, opts.Secure)
	if err != nil || len(links) == 0 {
		return "", err
	}
	if opts.Render != nil {
		return opts.Render(links), nil
	}
	return render.Stylesheets(links, opts.Attributes)
}

// JS renders the script list. An empty list renders as "".
func (m *Manager) JS(ctx context.Context, opts RenderOptions) (string, error) {
	links, err := m.links(ctx, assets.KindJS, opts.Secure)
	if err != nil || len(links) == 0 {
		return "", err
	}
	if opts.Render != nil {
		return opts.Render(links), nil
	}
	return render.Scripts(links, opts.Attributes)
}

// links returns the list of kind, or the single bundle URL when the pipeline
// is enabled.
func (m *Manager) links(ctx context.Context, kind assets.Kind, secure bool) ([]string, error) {
	s := m.snapshot(kind)
	if len(s.links) == 0 || !s.enabled {
		return s.links, nil
	}
	res, err := m.Pipeline(ctx, kind, secure)
	if err != nil {
		return nil, err
	}
	if res.CompressionErr != nil {
		m.logger.Warn("Bundle served without gzip sibling", logfields.URL(res.URL), logfields.Error(res.CompressionErr))
	}
	return []string{res.URL}, nil
}
