package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindVarDirective = ast.NewNodeKind("VarDirective")

// VarDirective is an inline {{ var: name }} placeholder.
type VarDirective struct {
	ast.BaseInline
	Name string
}

func (n *VarDirective) Kind() ast.NodeKind {
	return KindVarDirective
}

func (n *VarDirective) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Name": n.Name,
	}, nil)
}
