package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/depwarden/depwarden/pkg/graph"
	"github.com/depwarden/depwarden/pkg/license"
	"github.com/depwarden/depwarden/pkg/policy"
)

// Checker evaluates a resolved dependency graph against a policy
// document. It holds no mutable state between runs; a single Checker
// is safe for concurrent use.
type Checker struct {
	evaluator *license.Evaluator
	workers   int
}

// NewChecker creates a Checker. workers <= 0 uses one worker per CPU.
func NewChecker(ev *license.Evaluator, workers int) *Checker {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Checker{evaluator: ev, workers: workers}
}

// Run evaluates the graph and returns a report. It fails without a
// report on fatal input errors: a malformed policy or a dependency
// cycle. Policy violations are ordinary report findings, not errors.
func (c *Checker) Run(ctx context.Context, g *graph.Graph, doc *policy.Document) (*Report, error) {
	start := time.Now()

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	analysis, err := graph.Analyze(g, doc)
	if err != nil {
		return nil, err
	}

	evals, err := c.evaluateNodes(ctx, g, doc)
	if err != nil {
		return nil, err
	}

	report := c.assemble(g, doc, analysis, evals)

	checksTotal.WithLabelValues(report.Verdict.String()).Inc()
	for _, f := range report.Findings {
		findingsTotal.WithLabelValues(string(f.Kind)).Inc()
	}
	checkDuration.Observe(time.Since(start).Seconds())
	graphNodes.Set(float64(g.Len()))

	return report, nil
}

// evaluateNodes fans license evaluation out across a bounded worker
// pool. Results land in an index-addressed slice so the output is
// deterministic regardless of scheduling; the first fatal error by
// node index wins, also deterministically.
func (c *Checker) evaluateNodes(ctx context.Context, g *graph.Graph, doc *policy.Document) ([]license.Evaluation, error) {
	n := g.Len()
	evals := make([]license.Evaluation, n)
	errs := make([]error, n)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				node := g.Node(i)
				evals[i], errs[i] = c.evaluator.Evaluate(ctx, node.Name, node.License, node.LicensePath, doc)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			return nil, fmt.Errorf("evaluating %s: %w", g.Node(i).Key(), errs[i])
		}
	}
	return evals, nil
}

func (c *Checker) assemble(g *graph.Graph, doc *policy.Document, analysis *graph.Analysis, evals []license.Evaluation) *Report {
	var findings []Finding
	aggregate := policy.VerdictPass

	for i := 0; i < g.Len(); i++ {
		node := g.Node(i)
		ev := evals[i]

		findings = append(findings, Finding{
			Package: node.Package,
			Kind:    nodeFindingKind(ev),
			Verdict: ev.Verdict,
			Reason:  ev.Reason,
		})
		aggregate = policy.Worst(aggregate, ev.Verdict)

		if ev.Mismatch {
			findings = append(findings, Finding{
				Package: node.Package,
				Kind:    FindingClarificationMismatch,
				Verdict: policy.VerdictWarn,
				Reason:  "clarification integrity token does not match the license file; detected license used instead",
			})
			aggregate = policy.Worst(aggregate, policy.VerdictWarn)
		}
	}

	dupVerdict := doc.Bans.MultipleVersions.Verdict()
	for _, group := range analysis.DuplicateGroups {
		findings = append(findings, Finding{
			Package: graph.Package{Name: group.Name},
			Kind:    FindingDuplicateVersion,
			Verdict: dupVerdict,
			Reason:  fmt.Sprintf("multiple versions resolved: %v", group.Reported),
		})
		// Allow mode keeps the group informational: recorded, but the
		// aggregate verdict is unaffected.
		aggregate = policy.Worst(aggregate, dupVerdict)
	}

	sortFindings(findings)

	excluded := make([]string, 0, len(analysis.Excluded))
	for key := range analysis.Excluded {
		excluded = append(excluded, key)
	}
	sort.Strings(excluded)

	return &Report{
		Verdict:         aggregate,
		Findings:        findings,
		Excluded:        excluded,
		DuplicateGroups: analysis.DuplicateGroups,
		PolicyDigest:    doc.Digest(),
		GraphDigest:     Digest(g),
		NodeCount:       g.Len(),
	}
}

func nodeFindingKind(ev license.Evaluation) FindingKind {
	switch {
	case ev.Unlicensed && ev.Verdict == policy.VerdictDeny:
		return FindingUnlicensedDeny
	case ev.Unlicensed && ev.Verdict == policy.VerdictWarn:
		return FindingUnlicensedWarn
	case ev.Verdict == policy.VerdictDeny:
		return FindingLicenseDeny
	case ev.Verdict == policy.VerdictWarn:
		return FindingLicenseWarn
	default:
		return FindingPass
	}
}
