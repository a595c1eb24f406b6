package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/depwarden/depwarden/pkg/graph"
)

// Digest returns a stable content digest of the graph: node identities
// with their license data plus the edge set, in canonical order. Two
// graphs with the same packages and edges digest identically no matter
// how they were assembled. Used with the policy digest as the report
// cache key and as stored run identity.
func Digest(g *graph.Graph) string {
	lines := make([]string, 0, g.Len())
	for i := 0; i < g.Len(); i++ {
		n := g.Node(i)
		lines = append(lines, fmt.Sprintf("n\x00%s\x00%s\x00%s", n.Key(), n.License, n.LicensePath))
		for _, c := range g.Children(i) {
			lines = append(lines, fmt.Sprintf("e\x00%s\x00%s", n.Key(), g.Node(c).Key()))
		}
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return "sha256:" + hex.EncodeToString(sum[:])
}
