package mdadapter

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"
)

// VarsExtension enables {{ var: name }} directives.
type VarsExtension struct{}

func NewVarsExtension() goldmark.Extender {
	return &VarsExtension{}
}

func (e *VarsExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(NewVarDirectiveParser(), 500),
		),
	)
}
