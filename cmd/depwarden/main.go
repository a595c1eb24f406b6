package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/depwarden/depwarden/pkg/engine"
	"github.com/depwarden/depwarden/pkg/graph"
	"github.com/depwarden/depwarden/pkg/integrity"
	"github.com/depwarden/depwarden/pkg/license"
	"github.com/depwarden/depwarden/pkg/policy"
	"github.com/depwarden/depwarden/pkg/store"
)

var (
	Version   = "v1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Exit codes: 0 = pass or warn, 1 = deny, 2 = fatal input error.
const (
	exitOK    = 0
	exitDeny  = 1
	exitFatal = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("depwarden", flag.ExitOnError)
	policyPath := flags.String("policy", "policy.yaml", "path to the policy document (JSON or YAML)")
	graphPath := flags.String("graph", "", "path to the resolved dependency graph (JSON)")
	format := flags.String("format", "text", "output format: text|json|csv")
	dbPath := flags.String("db", "", "optional SQLite database to record the run in")
	licenseRoot := flags.String("license-root", "", "directory license_path entries are resolved against")
	workers := flags.Int("workers", 0, "evaluation workers (0 = one per CPU)")
	showVersion := flags.Bool("version", false, "print version and exit")
	flags.Parse(args)

	if *showVersion {
		fmt.Printf("depwarden %s (%s, built %s)\n", Version, Commit, BuildTime)
		return exitOK
	}

	if *graphPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: depwarden -policy <file> -graph <file> [-format text|json|csv]")
		return exitFatal
	}

	doc, err := policy.Load(*policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}

	g, err := graph.LoadFile(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}

	evaluator := license.NewEvaluator(license.DefaultTaxonomy(), integrity.NewLocalSource(*licenseRoot))
	checker := engine.NewChecker(evaluator, *workers)

	ctx := context.Background()
	report, err := checker.Run(ctx, g, doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}

	if *dbPath != "" {
		if err := persist(ctx, *dbPath, report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record run: %v\n", err)
		}
	}

	if err := printReport(report, *format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}

	if report.Verdict == policy.VerdictDeny {
		return exitDeny
	}
	return exitOK
}

// printReport writes the report to stdout. In text mode a clean pass
// is silent; warnings and denials print their findings.
func printReport(report *engine.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"package", "version", "kind", "verdict", "reason"}); err != nil {
			return err
		}
		for _, f := range report.Findings {
			if err := w.Write([]string{f.Package.Name, f.Package.Version, string(f.Kind), f.Verdict.String(), f.Reason}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	case "text":
		violations := report.Violations()
		if len(violations) == 0 {
			return nil
		}
		for _, f := range violations {
			name := f.Package.Name
			if f.Package.Version != "" {
				name = f.Package.Key()
			}
			fmt.Printf("%s %s [%s]: %s\n", f.Verdict, name, f.Kind, f.Reason)
		}
		fmt.Printf("\n%d packages checked, %d findings, verdict: %s\n",
			report.NodeCount, len(violations), report.Verdict)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func persist(ctx context.Context, dbPath string, report *engine.Report) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	run := &store.Run{
		RunID:        runID,
		Ts:           time.Now().UTC(),
		Verdict:      report.Verdict.String(),
		PolicyDigest: report.PolicyDigest,
		GraphDigest:  report.GraphDigest,
		NodeCount:    report.NodeCount,
		FindingCount: len(report.Findings),
		Report:       data,
	}

	rows := make([]store.FindingRow, 0, len(report.Findings))
	for _, f := range report.Findings {
		rows = append(rows, store.FindingRow{
			RunID:   runID,
			Name:    f.Package.Name,
			Version: f.Package.Version,
			Kind:    string(f.Kind),
			Verdict: f.Verdict.String(),
			Reason:  f.Reason,
		})
	}

	return st.SaveRun(ctx, run, rows)
}
