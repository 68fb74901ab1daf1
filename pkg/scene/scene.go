// Package scene defines the read-only scene graph consumed by the exporter:
// nodes of three kinds, geometries with typed attribute arrays, primitive
// sets and materials.
package scene

import (
	"fmt"

	"github.com/Faultbox/prcexport/pkg/math"
)

// NodeKind tags what a node contributes during traversal.
type NodeKind int

const (
	KindGroup     NodeKind = iota // plain grouping node
	KindTransform                 // grouping node with a local matrix
	KindGeode                     // leaf holding geometries
)

// String returns the kind name.
func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "Group"
	case KindTransform:
		return "Transform"
	case KindGeode:
		return "Geode"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is one vertex of the scene graph. Names are not required to be
// unique. Matrix is only read for KindTransform; Geometries only for
// KindGeode. Graphs must be acyclic.
type Node struct {
	Kind       NodeKind
	Name       string
	Children   []*Node
	Matrix     math.Mat4
	Material   *Material
	Geometries []*Geometry
}

// NewGroup creates a plain group.
func NewGroup(name string, children ...*Node) *Node {
	return &Node{Kind: KindGroup, Name: name, Children: children}
}

// NewTransform creates a transform node holding a local matrix.
func NewTransform(name string, m math.Mat4, children ...*Node) *Node {
	return &Node{Kind: KindTransform, Name: name, Matrix: m, Children: children}
}

// NewGeode creates a geometry leaf.
func NewGeode(name string, geoms ...*Geometry) *Node {
	return &Node{Kind: KindGeode, Name: name, Geometries: geoms}
}

// AddChild appends a child and returns it.
func (n *Node) AddChild(c *Node) *Node {
	n.Children = append(n.Children, c)
	return c
}

// Walk visits n and its descendants depth-first in child order.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Stats summarizes a graph.
type Stats struct {
	Nodes         int
	Transforms    int
	Geodes        int
	Geometries    int
	Vertices      int
	PrimitiveSets int
	Materials     int
	MaxDepth      int
}

// Collect gathers Stats for the graph rooted at n. Materials are counted by
// identity.
func Collect(n *Node) Stats {
	var s Stats
	seen := make(map[*Material]bool)
	mark := func(m *Material) {
		if m != nil && !seen[m] {
			seen[m] = true
			s.Materials++
		}
	}

	n.Walk(func(node *Node, depth int) {
		s.Nodes++
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		mark(node.Material)
		switch node.Kind {
		case KindTransform:
			s.Transforms++
		case KindGeode:
			s.Geodes++
			for _, g := range node.Geometries {
				if g == nil {
					continue
				}
				s.Geometries++
				s.PrimitiveSets += len(g.PrimitiveSets)
				if g.Vertices != nil {
					s.Vertices += g.Vertices.Len()
				}
				mark(g.Material)
			}
		}
	})
	return s
}
