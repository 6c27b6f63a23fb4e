package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeText returns the source text covered by a node.
func NodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint(len(content)) || end > uint(len(content)) || start >= end {
		return ""
	}
	return string(content[start:end])
}

// FieldChild returns the child for a grammar field name, or nil.
func FieldChild(node *sitter.Node, field string) *sitter.Node {
	if node == nil {
		return nil
	}
	return node.ChildByFieldName(field)
}

// FieldText returns the text of the child for a grammar field name.
func FieldText(node *sitter.Node, field string, content []byte) string {
	return NodeText(FieldChild(node, field), content)
}

// FirstChildOfKind returns the first direct child whose kind matches any of
// the given kinds, or nil.
func FirstChildOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

// ChildrenOfKind returns the direct children whose kind matches any of the
// given kinds.
func ChildrenOfKind(node *sitter.Node, kinds ...string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

// NamedChildren returns all named direct children.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// Descendants walks the subtree depth-first and returns every node whose
// kind matches any of the given kinds. Matching nodes are still descended
// into, so nested matches (a class inside a class) are all returned.
func Descendants(node *sitter.Node, kinds ...string) []*sitter.Node {
	var out []*sitter.Node
	Walk(node, func(n *sitter.Node) bool {
		for _, kind := range kinds {
			if n.Kind() == kind {
				out = append(out, n)
				break
			}
		}
		return true
	})
	return out
}

// Walk traverses the subtree depth-first, calling visit on each node.
// Returning false from visit prunes the node's subtree.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			Walk(child, visit)
		}
	}
}

// Line returns the 1-based start line of a node.
func Line(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// EndLine returns the 1-based end line of a node.
func EndLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// Column returns the 1-based start column of a node.
func Column(node *sitter.Node) int {
	return int(node.StartPosition().Column) + 1
}
