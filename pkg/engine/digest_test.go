package engine

import (
	"strings"
	"testing"

	"github.com/depwarden/depwarden/pkg/graph"
)

func TestDigestIgnoresInsertionOrder(t *testing.T) {
	a := graph.New()
	a.AddNode(graph.Node{Package: graph.Package{Name: "x", Version: "1.0.0"}, License: "MIT"})
	a.AddNode(graph.Node{Package: graph.Package{Name: "y", Version: "2.0.0"}, License: "ISC"})
	if err := a.AddEdge("x@1.0.0", "y@2.0.0"); err != nil {
		t.Fatal(err)
	}

	b := graph.New()
	b.AddNode(graph.Node{Package: graph.Package{Name: "y", Version: "2.0.0"}, License: "ISC"})
	b.AddNode(graph.Node{Package: graph.Package{Name: "x", Version: "1.0.0"}, License: "MIT"})
	if err := b.AddEdge("x@1.0.0", "y@2.0.0"); err != nil {
		t.Fatal(err)
	}

	if Digest(a) != Digest(b) {
		t.Error("same packages and edges must digest identically")
	}
}

func TestDigestSensitivity(t *testing.T) {
	base := graph.New()
	base.AddNode(graph.Node{Package: graph.Package{Name: "x", Version: "1.0.0"}, License: "MIT"})

	changedLicense := graph.New()
	changedLicense.AddNode(graph.Node{Package: graph.Package{Name: "x", Version: "1.0.0"}, License: "ISC"})

	changedVersion := graph.New()
	changedVersion.AddNode(graph.Node{Package: graph.Package{Name: "x", Version: "1.0.1"}, License: "MIT"})

	d := Digest(base)
	if d == Digest(changedLicense) {
		t.Error("license change must change the digest")
	}
	if d == Digest(changedVersion) {
		t.Error("version change must change the digest")
	}
	if !strings.HasPrefix(d, "sha256:") {
		t.Errorf("digest %q missing sha256 prefix", d)
	}
}
