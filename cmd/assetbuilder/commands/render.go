package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/manager"
	"git.home.luguber.info/inful/assetbuilder/internal/render"
)

// RenderCmd implements the 'render' command.
type RenderCmd struct {
	Group  string   `short:"g" help:"Group to render" default:"default"`
	Asset  []string `short:"a" help:"Asset or collection to add (repeatable)"`
	Attr   []string `help:"Extra tag attribute as key=value (repeatable)"`
	Only   string   `help:"Render only one asset type" enum:",css,js" default:""`
	Secure bool     `help:"Fetch protocol-relative links over https"`
}

func (r *RenderCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	attrs, err := parseAttrs(r.Attr)
	if err != nil {
		return err
	}
	return RunRender(context.Background(), g.out(), cfg, r.Group, r.Asset, r.Only, manager.RenderOptions{
		Attributes: attrs,
		Secure:     r.Secure,
	})
}

// RunRender writes the tags of group to w, stylesheets first.
func RunRender(ctx context.Context, w io.Writer, cfg *config.Config, group string, refs []string, only string, opts manager.RenderOptions) error {
	names, err := cfg.Select(group)
	if err != nil {
		return err
	}
	s, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := newManager(cfg.Groups[names[0]], newCache(nil), s.notifier(notifyScope(group)))
	if err != nil {
		return err
	}
	m.Add(refs...)

	var out strings.Builder
	if only != "js" {
		css, err := m.CSS(ctx, opts)
		if err != nil {
			return err
		}
		out.WriteString(css)
	}
	if only != "css" {
		js, err := m.JS(ctx, opts)
		if err != nil {
			return err
		}
		out.WriteString(js)
	}
	_, err = io.WriteString(w, out.String())
	return err
}

func parseAttrs(pairs []string) ([]render.Attr, error) {
	kv := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, ferrors.ValidationError(fmt.Sprintf("invalid attribute %q (want key=value)", p)).Build()
		}
		kv = append(kv, strings.TrimSpace(k), v)
	}
	return render.Attrs(kv...), nil
}
