package graph

import "fmt"

// Package identifies a resolved dependency: a name plus the exact
// version the resolver picked. The same name may appear several times
// in a graph at different versions; that is expected, not an error.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Key returns the canonical "name@version" identity string.
func (p Package) Key() string {
	return p.Name + "@" + p.Version
}

// Node is one package occurrence in the resolved graph together with
// its detected license data.
type Node struct {
	Package
	// License is the detected license expression. Empty means the
	// package is unlicensed.
	License string `json:"license,omitempty"`
	// LicensePath locates the package's license text, used to validate
	// clarification integrity tokens.
	LicensePath string `json:"license_path,omitempty"`
}

// Graph is a resolved dependency graph: an arena of nodes with
// index-based adjacency lists. It is built once by the resolver
// collaborator and never mutated by analysis, which only derives
// auxiliary indices from it.
type Graph struct {
	nodes    []Node
	children [][]int
	index    map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode inserts a node and returns its arena index. Adding the same
// (name, version) twice returns the existing index.
func (g *Graph) AddNode(n Node) int {
	if i, ok := g.index[n.Key()]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.children = append(g.children, nil)
	g.index[n.Key()] = i
	return i
}

// AddEdge records a directed dependency from parent to child, both
// identified by their "name@version" keys.
func (g *Graph) AddEdge(fromKey, toKey string) error {
	from, ok := g.index[fromKey]
	if !ok {
		return fmt.Errorf("edge references unknown package %q", fromKey)
	}
	to, ok := g.index[toKey]
	if !ok {
		return fmt.Errorf("edge references unknown package %q", toKey)
	}
	g.children[from] = append(g.children[from], to)
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node at the given arena index.
func (g *Graph) Node(i int) Node {
	return g.nodes[i]
}

// Children returns the arena indices of the node's direct dependencies.
func (g *Graph) Children(i int) []int {
	return g.children[i]
}

// Lookup returns the arena index for a "name@version" key.
func (g *Graph) Lookup(key string) (int, bool) {
	i, ok := g.index[key]
	return i, ok
}
