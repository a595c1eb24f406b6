package graph

import (
	"encoding/json"
	"fmt"
	"os"
)

// fileDoc is the JSON document produced by the package-manager resolver
// collaborator. Producing it is out of scope; this loader only decodes.
type fileDoc struct {
	Packages []Node     `json:"packages"`
	Edges    []fileEdge `json:"edges"`
}

type fileEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LoadFile reads a resolved dependency graph from a JSON file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a resolved dependency graph from JSON bytes.
func Parse(data []byte) (*Graph, error) {
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid graph document: %w", err)
	}

	g := New()
	for _, n := range doc.Packages {
		if n.Name == "" || n.Version == "" {
			return nil, fmt.Errorf("graph package entry requires name and version, got %+v", n.Package)
		}
		g.AddNode(n)
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}
