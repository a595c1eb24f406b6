package graph

import "github.com/depwarden/depwarden/pkg/policy"

// MatchSkip reports whether the node's exact (name, version) pair is
// exempted from duplicate-version reporting.
func MatchSkip(n Node, doc *policy.Document) bool {
	return doc.MatchSkip(n.Name, n.Version)
}

// matchSkipTree reports whether the node seeds a skip-tree exclusion.
// An entry without a version matches the named package at every
// occurrence, at any version.
func matchSkipTree(n Node, doc *policy.Document) bool {
	for _, s := range doc.Bans.SkipTree {
		if s.Name != n.Name {
			continue
		}
		if s.Version == "" || s.Version == n.Version {
			return true
		}
	}
	return false
}

// skipTreeSeeds returns the arena indices of every skip-tree seed root.
func skipTreeSeeds(g *Graph, doc *policy.Document) []int {
	var seeds []int
	for i := 0; i < g.Len(); i++ {
		if matchSkipTree(g.Node(i), doc) {
			seeds = append(seeds, i)
		}
	}
	return seeds
}
