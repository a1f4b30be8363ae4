package mdadapter

import (
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var varDirectiveRegexp = regexp.MustCompile(`^{{\s*var:\s*([\w.-]+)\s*}}`)

type VarDirectiveParser struct{}

func NewVarDirectiveParser() parser.InlineParser {
	return &VarDirectiveParser{}
}

func (s *VarDirectiveParser) Trigger() []byte {
	return []byte{'{'}
}

func (s *VarDirectiveParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	matches := varDirectiveRegexp.FindSubmatch(line)
	if matches == nil {
		return nil
	}

	block.Advance(len(matches[0]))

	return &VarDirective{
		Name: string(matches[1]),
	}
}
