package mdadapter

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// TelegramRenderer renders markdown into the HTML subset accepted by the Telegram Bot API.
// Nodes without a Telegram counterpart are rendered as plain text.
type TelegramRenderer struct {
	vars map[string]string
}

func NewTelegramRenderer(vars map[string]string) renderer.NodeRenderer {
	return &TelegramRenderer{vars: vars}
}

func (r *TelegramRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindParagraph, r.renderParagraph)
	reg.Register(ast.KindHeading, r.renderHeading)
	reg.Register(ast.KindTextBlock, r.renderTextBlock)
	reg.Register(ast.KindText, r.renderText)
	reg.Register(ast.KindString, r.renderString)
	reg.Register(ast.KindEmphasis, r.renderEmphasis)
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindList, r.renderList)
	reg.Register(ast.KindListItem, r.renderListItem)
	reg.Register(ast.KindThematicBreak, r.renderThematicBreak)
	reg.Register(ast.KindRawHTML, r.skip)
	reg.Register(ast.KindHTMLBlock, r.skip)
	reg.Register(KindVarDirective, r.renderVarDirective)
}

func (r *TelegramRenderer) renderParagraph(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.WriteString("\n\n")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderHeading(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString("<b>")
	} else {
		w.WriteString("</b>\n\n")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderTextBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.WriteString("\n")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderText(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	t := n.(*ast.Text)
	w.Write(util.EscapeHTML(t.Segment.Value(source)))

	if t.HardLineBreak() || t.SoftLineBreak() {
		w.WriteByte('\n')
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderString(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.Write(util.EscapeHTML(n.(*ast.String).Value))
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderEmphasis(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	tag := "i"
	if n.(*ast.Emphasis).Level > 1 {
		tag = "b"
	}

	if entering {
		w.WriteString("<" + tag + ">")
	} else {
		w.WriteString("</" + tag + ">")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderCodeSpan(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString("<code>")
	} else {
		w.WriteString("</code>")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderCodeBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	w.WriteString("<pre>")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.Write(util.EscapeHTML(line.Value(source)))
	}
	w.WriteString("</pre>\n\n")

	return ast.WalkSkipChildren, nil
}

func (r *TelegramRenderer) renderLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		link := n.(*ast.Link)
		w.WriteString(`<a href="`)
		w.Write(util.EscapeHTML(link.Destination))
		w.WriteString(`">`)
	} else {
		w.WriteString("</a>")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderAutoLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	link := n.(*ast.AutoLink)
	url := util.EscapeHTML(link.URL(source))
	w.WriteString(`<a href="`)
	w.Write(url)
	w.WriteString(`">`)
	w.Write(url)
	w.WriteString("</a>")

	return ast.WalkSkipChildren, nil
}

func (r *TelegramRenderer) renderList(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.WriteString("\n")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderListItem(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	list, ok := n.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		w.WriteString("• ")

		return ast.WalkContinue, nil
	}

	num := list.Start
	for prev := n.PreviousSibling(); prev != nil; prev = prev.PreviousSibling() {
		num++
	}
	w.WriteString(fmt.Sprintf("%d. ", num))

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) renderThematicBreak(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		w.WriteString(strings.Repeat("—", 10) + "\n\n")
	}

	return ast.WalkContinue, nil
}

func (r *TelegramRenderer) skip(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	return ast.WalkSkipChildren, nil
}

func (r *TelegramRenderer) renderVarDirective(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	directive := n.(*VarDirective)

	if value, ok := r.vars[directive.Name]; ok {
		w.Write(util.EscapeHTML([]byte(value)))
	} else {
		w.WriteString("<code>" + directive.Name + "</code>")
	}

	return ast.WalkContinue, nil
}
