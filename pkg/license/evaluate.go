package license

import (
	"context"
	"fmt"

	"github.com/depwarden/depwarden/pkg/integrity"
	"github.com/depwarden/depwarden/pkg/policy"
)

// Evaluation is the outcome of checking one package's license against
// the policy.
type Evaluation struct {
	Verdict policy.Verdict
	Reason  string
	// Unlicensed marks that the verdict came from the unlicensed rule
	// rather than from expression evaluation.
	Unlicensed bool
	// Mismatch marks that a clarification existed but its integrity
	// token did not match the license file, so it was ignored. The
	// caller records the advisory finding; Verdict reflects only the
	// expression (or unlicensed) outcome.
	Mismatch bool
	// Expression is the effective expression that was evaluated, in
	// normalized form. Empty for unlicensed packages.
	Expression string
}

// Evaluator resolves and checks license expressions. It holds the two
// external collaborators: the copyleft taxonomy and the license-text
// integrity source.
type Evaluator struct {
	taxonomy Taxonomy
	source   integrity.Source
}

// NewEvaluator creates an Evaluator. A nil taxonomy falls back to the
// built-in table.
func NewEvaluator(tax Taxonomy, src integrity.Source) *Evaluator {
	if tax == nil {
		tax = DefaultTaxonomy()
	}
	return &Evaluator{taxonomy: tax, source: src}
}

// Evaluate checks a single package. declared is the detected license
// expression (may be empty), licensePath locates the package's license
// text for clarification validation.
//
// A returned error is always fatal (*policy.ConfigurationError); all
// recoverable conditions degrade to an unlicensed evaluation instead.
func (e *Evaluator) Evaluate(ctx context.Context, pkgName, declared, licensePath string, doc *policy.Document) (Evaluation, error) {
	effective := declared
	mismatch := false

	if clar, ok := doc.ClarificationFor(pkgName); ok {
		resolved, ok, err := e.resolveClarification(ctx, pkgName, licensePath, clar)
		if err != nil {
			return Evaluation{}, err
		}
		if ok {
			effective = resolved
		} else {
			mismatch = true
		}
	}

	if effective == "" {
		ev := e.unlicensed(pkgName, "no license detected", doc)
		ev.Mismatch = mismatch
		return ev, nil
	}

	expr, err := Parse(effective)
	if err != nil {
		// Unparseable detected expressions are a local condition: the
		// package is treated as unlicensed and the run continues.
		ev := e.unlicensed(pkgName, fmt.Sprintf("unparseable license expression %q", effective), doc)
		ev.Mismatch = mismatch
		return ev, nil
	}

	verdict, reason := e.satisfy(pkgName, expr, doc)
	return Evaluation{
		Verdict:    verdict,
		Reason:     reason,
		Mismatch:   mismatch,
		Expression: expr.String(),
	}, nil
}

// resolveClarification validates the integrity token. It returns the
// clarified expression and true when the token matches. A missing or
// unreadable license file is a configuration error: the policy claims
// knowledge about a file that cannot be checked.
func (e *Evaluator) resolveClarification(ctx context.Context, pkgName, licensePath string, clar policy.Clarification) (string, bool, error) {
	if licensePath == "" {
		return "", false, &policy.ConfigurationError{
			Reason: fmt.Sprintf("clarification for %q but package has no license file", pkgName),
		}
	}
	hash, err := e.source.LicenseHash(ctx, pkgName, licensePath)
	if err != nil {
		return "", false, &policy.ConfigurationError{
			Reason: fmt.Sprintf("clarification for %q: %v", pkgName, err),
		}
	}
	if hash != clar.LicenseFileHash {
		return "", false, nil
	}
	if _, err := Parse(clar.Expression); err != nil {
		return "", false, &policy.ConfigurationError{
			Reason: fmt.Sprintf("clarification for %q has invalid expression %q: %v", pkgName, clar.Expression, err),
		}
	}
	return clar.Expression, true, nil
}

func (e *Evaluator) unlicensed(pkgName, cause string, doc *policy.Document) Evaluation {
	v := doc.Licenses.Unlicensed.Verdict()
	return Evaluation{
		Verdict:    v,
		Reason:     fmt.Sprintf("%s (unlicensed mode: %s)", cause, doc.Licenses.Unlicensed),
		Unlicensed: true,
	}
}

// satisfy walks the expression tree. AND takes the worst child verdict
// (deny is absorbing); OR takes the best, since one acceptable branch
// satisfies the expression.
func (e *Evaluator) satisfy(pkgName string, x Expr, doc *policy.Document) (policy.Verdict, string) {
	switch n := x.(type) {
	case Leaf:
		return e.leafVerdict(pkgName, n.ID, doc)
	case And:
		worst, reason := policy.VerdictPass, "all terms acceptable"
		for _, sub := range n.Exprs {
			v, r := e.satisfy(pkgName, sub, doc)
			if v > worst {
				worst, reason = v, r
			}
		}
		return worst, reason
	case Or:
		best, reason := policy.VerdictDeny, "no acceptable alternative"
		for _, sub := range n.Exprs {
			v, r := e.satisfy(pkgName, sub, doc)
			if v < best {
				best, reason = v, r
			}
		}
		return best, reason
	}
	return policy.VerdictDeny, "unknown expression node"
}

func (e *Evaluator) leafVerdict(pkgName, id string, doc *policy.Document) (policy.Verdict, string) {
	// Explicit denial always wins, even over allow and exceptions.
	if doc.IsDenied(id) {
		return policy.VerdictDeny, fmt.Sprintf("license %s is explicitly denied", id)
	}
	if doc.IsAllowed(id) {
		return policy.VerdictPass, fmt.Sprintf("license %s is allowed", id)
	}
	if doc.ExceptionAllows(pkgName, id) {
		return policy.VerdictPass, fmt.Sprintf("license %s is allowed by exception for %s", id, pkgName)
	}
	if e.taxonomy.Classify(id) == CategoryCopyleft {
		switch doc.Licenses.Copyleft {
		case policy.ModeAllow:
			return policy.VerdictPass, fmt.Sprintf("copyleft license %s is allowed", id)
		case policy.ModeWarn:
			return policy.VerdictWarn, fmt.Sprintf("copyleft license %s (mode: warn)", id)
		default:
			return policy.VerdictDeny, fmt.Sprintf("copyleft license %s is denied", id)
		}
	}
	return policy.VerdictDeny, fmt.Sprintf("license %s is not allowed", id)
}
