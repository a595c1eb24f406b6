package graph

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/depwarden/depwarden/pkg/policy"
)

// IntegrityError reports a structural problem with the input graph.
// Dependency graphs are acyclic by construction of any valid resolver,
// so a cycle is fatal: no partial analysis is produced.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "graph integrity: " + e.Reason
}

// DuplicateGroup is the set of distinct resolved versions of a single
// named package present simultaneously in the graph.
type DuplicateGroup struct {
	Name string `json:"name"`
	// Versions is every distinct version in the group, sorted.
	Versions []string `json:"versions"`
	// Reported is the versions remaining after ban skip exemptions.
	// The group is only reportable because len(Reported) >= 2.
	Reported []string `json:"reported"`
}

// Analysis is the derived output of graph analysis. It never aliases
// or mutates the input graph.
type Analysis struct {
	// Excluded holds the "name@version" keys of every node inside a
	// skip-tree closure, including the seed roots themselves.
	Excluded map[string]bool
	// DuplicateGroups lists reportable duplicate-version groups,
	// ordered by package name.
	DuplicateGroups []DuplicateGroup
}

// Analyze computes the skip-tree exclusion closure and the
// duplicate-version groups. It is pure: the same graph and policy
// always yield the same sets, independent of traversal order.
func Analyze(g *Graph, doc *policy.Document) (*Analysis, error) {
	if err := detectCycle(g); err != nil {
		return nil, err
	}

	excluded := excludedSet(g, doc)

	return &Analysis{
		Excluded:        excluded,
		DuplicateGroups: duplicateGroups(g, doc, excluded),
	}, nil
}

// detectCycle runs an iterative DFS with the standard three-color
// scheme; a back edge to an in-progress node is a cycle.
func detectCycle(g *Graph) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make([]int, g.Len())

	var visit func(int) error
	visit = func(i int) error {
		color[i] = gray
		for _, c := range g.Children(i) {
			switch color[c] {
			case gray:
				return &IntegrityError{
					Reason: fmt.Sprintf("dependency cycle through %s and %s", g.Node(i).Key(), g.Node(c).Key()),
				}
			case white:
				if err := visit(c); err != nil {
					return err
				}
			}
		}
		color[i] = black
		return nil
	}

	for i := 0; i < g.Len(); i++ {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// excludedSet flood-fills forward from every skip-tree seed. A node
// reachable from several seeds is excluded exactly once (set union is
// idempotent).
func excludedSet(g *Graph, doc *policy.Document) map[string]bool {
	excluded := make(map[string]bool)
	visited := make([]bool, g.Len())

	stack := skipTreeSeeds(g, doc)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[i] {
			continue
		}
		visited[i] = true
		excluded[g.Node(i).Key()] = true
		stack = append(stack, g.Children(i)...)
	}
	return excluded
}

// duplicateGroups groups the non-excluded nodes by name and keeps the
// groups that still have two or more distinct versions after removing
// ban skip exemptions.
func duplicateGroups(g *Graph, doc *policy.Document, excluded map[string]bool) []DuplicateGroup {
	byName := make(map[string]map[string]bool)
	for i := 0; i < g.Len(); i++ {
		n := g.Node(i)
		if excluded[n.Key()] {
			continue
		}
		if byName[n.Name] == nil {
			byName[n.Name] = make(map[string]bool)
		}
		byName[n.Name][n.Version] = true
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var groups []DuplicateGroup
	for _, name := range names {
		versions := sortedVersions(byName[name])
		if len(versions) < 2 {
			continue
		}
		var reported []string
		for _, v := range versions {
			if !doc.MatchSkip(name, v) {
				reported = append(reported, v)
			}
		}
		if len(reported) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{
			Name:     name,
			Versions: versions,
			Reported: reported,
		})
	}
	return groups
}

// sortedVersions orders versions semantically where possible, falling
// back to lexicographic order for versions semver cannot parse.
func sortedVersions(set map[string]bool) []string {
	versions := make([]string, 0, len(set))
	for v := range set {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		vi, erri := semver.NewVersion(versions[i])
		vj, errj := semver.NewVersion(versions[j])
		if erri == nil && errj == nil {
			return vi.LessThan(vj)
		}
		return versions[i] < versions[j]
	})
	return versions
}
