package mdadapter

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	PageStart = "start"
	PageHelp  = "help"
)

//go:embed pages/*.md
var pages embed.FS

type Frontmatter struct {
	Title string `yaml:"title"`
}

type Page struct {
	Title string
	HTML  string
}

type mdAdapter struct {
	md goldmark.Markdown
}

// NewMDAdapter returns a markdown renderer producing Telegram HTML.
// vars are substituted into {{ var: name }} directives.
func NewMDAdapter(vars map[string]string) *mdAdapter {
	md := goldmark.New(
		goldmark.WithRenderer(
			renderer.NewRenderer(
				renderer.WithNodeRenderers(
					util.Prioritized(NewTelegramRenderer(vars), 1000),
				),
			),
		),
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			NewVarsExtension(),
		),
	)

	return &mdAdapter{md: md}
}

// Render converts markdown source.
func (a *mdAdapter) Render(src []byte) (*Page, error) {
	var buf bytes.Buffer

	ctx := parser.NewContext()
	if err := a.md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("cannot render markdown: %w", err)
	}

	page := &Page{
		HTML: strings.TrimSpace(buf.String()),
	}

	if fm := frontmatter.Get(ctx); fm != nil {
		var meta Frontmatter
		if err := fm.Decode(&meta); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}
		page.Title = meta.Title
	}

	return page, nil
}

// RenderPage renders one of the embedded pages.
func (a *mdAdapter) RenderPage(name string) (*Page, error) {
	src, err := pages.ReadFile("pages/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("cannot find page %s: %w", name, err)
	}

	return a.Render(src)
}
