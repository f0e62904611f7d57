package syntax

import "strings"

// Node is a node of a parsed Typst file. Every node owns the exact slice of
// source text it was parsed from, so its text is available without going
// back to the file.
type Node struct {
	Kind     Kind
	Start    int // byte offset, inclusive
	End      int // byte offset, exclusive
	Children []*Node

	// Value carries the decoded payload of atoms: identifier names, string
	// contents, operators, raw text, escaped characters and error messages.
	Value string

	text string
}

// Text returns the node's exact source text.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.text
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// ChildOfKind returns the first child with the given kind or nil.
func (n *Node) ChildOfKind(kind Kind) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// Role classifies the node relative to the kind being extracted.
func (n *Node) Role(target Kind) Role {
	switch n.Kind {
	case ModuleImport:
		return RoleImport
	case ModuleInclude:
		return RoleInclude
	}
	if n.Kind == target {
		return RoleTarget
	}
	return RoleOther
}

// LinkSource returns the expression naming the linked file of an import or
// include.
func (n *Node) LinkSource() *Node {
	if n.Kind != ModuleImport && n.Kind != ModuleInclude {
		return nil
	}
	return n.Child(0)
}

// LinkPath returns the literal path of an import or include. ok is false when
// the target is computed (anything but a plain string literal).
func (n *Node) LinkPath() (path string, ok bool) {
	src := n.LinkSource()
	if src == nil || src.Kind != Str {
		return "", false
	}
	return src.Value, true
}

// IsBlock reports whether an equation is display-style: whitespace directly
// after the opening and before the closing dollar sign.
func (n *Node) IsBlock() bool {
	if n.Kind != Equation || len(n.text) < 3 {
		return false
	}
	inner := n.text[1 : len(n.text)-1]
	return len(inner) >= 2 &&
		strings.ContainsAny(inner[:1], " \t\r\n") &&
		strings.ContainsAny(inner[len(inner)-1:], " \t\r\n")
}

// Errors returns all error nodes below n in source order.
func (n *Node) Errors() []*Node {
	var errs []*Node
	Walk(n, func(c *Node) bool {
		if c.Kind == Error {
			errs = append(errs, c)
		}
		return true
	})
	return errs
}

// Walk calls visit for n and its descendants in depth-first pre-order.
// Children are skipped when visit returns false.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, visit)
	}
}
