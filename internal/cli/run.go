package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/citecheck/internal/config"
	"github.com/dgallion1/citecheck/internal/export"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pipeline"
	"github.com/dgallion1/citecheck/internal/verify"
	"github.com/spf13/cobra"
)

type runFlags struct {
	candidates string
	output     string
}

func newRunCmd(o *options) *cobra.Command {
	var f runFlags
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "run <pdf|dir>",
		Short: "Extract and verify grounded records from a PDF or a directory of PDFs",
		Long: `Run indexes each PDF, obtains candidate records and verifies every citation
against the page text. Kept records are appended to the output JSONL file.

Candidates come from --candidates (a JSON or JSONL file) when given, otherwise
from the configured generator. A directory argument processes every *.pdf in
it in name order; a PDF without a text layer is reported and skipped.

Example:
  citecheck run manual.pdf --candidates manual.jsonl
  citecheck run ./docs --output training.jsonl --policy lenient
  citecheck run manual.pdf --candidates c.jsonl --threshold 0.9 --strategy token-overlap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.candidates, "candidates", "", "JSON or JSONL file of candidate records (disables the generator)")
	fl.StringVarP(&f.output, "output", "o", "out.jsonl", "output JSONL file, appended to when it exists")
	fl.String("policy", def.Policy, "acceptance policy: strict, lenient or audit")
	fl.Float64("threshold", def.FuzzyThreshold, "fuzzy similarity threshold for partial_match, in (0,1]")
	fl.String("strategy", def.FuzzyStrategy, "fuzzy strategy: "+verify.StrategyLevenshtein+" or "+verify.StrategyTokenOverlap)
	fl.Int("min-quote", def.MinQuoteLength, "minimum source quote length in characters")
	fl.Int("concurrency", def.VerifyWorkers, "parallel verification workers")
	fl.Bool("require-section", def.RequireSection, "reject candidates without a section label")
	fl.Bool("reject-injection", def.RejectInjection, "reject candidates whose wording looks like a prompt injection")
	fl.String("generator", def.Generator, "candidate generator: anthropic, openai or none")

	o.bindFlags(cmd, map[string]string{
		"policy":           "policy",
		"threshold":        "fuzzy_threshold",
		"strategy":         "fuzzy_strategy",
		"min-quote":        "min_quote_length",
		"concurrency":      "verify_workers",
		"require-section":  "require_section",
		"reject-injection": "reject_injection",
		"generator":        "generator",
	})
	return cmd
}

func (o *options) run(cmd *cobra.Command, target string, f runFlags) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := config.FromViper(o.v)
	if err != nil {
		return err
	}
	if f.candidates != "" {
		cfg.Generator = config.GeneratorNone
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateGenerator(); err != nil {
		return err
	}

	paths, err := collectPDFs(target)
	if err != nil {
		return err
	}

	var candidates []extract.Decoded
	if f.candidates != "" {
		if len(paths) > 1 {
			return fmt.Errorf("--candidates applies to a single PDF, %s holds %d", target, len(paths))
		}
		if candidates, err = readCandidates(f.candidates); err != nil {
			return err
		}
	}

	log := o.logger(stderr)
	p, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	if candidates == nil && p.Generator() == nil {
		return fmt.Errorf("no candidates: pass --candidates or configure a generator")
	}
	defer extract.CloseGenerator(p.Generator())

	docs := make([]pipeline.Document, len(paths))
	for i, path := range paths {
		docs[i] = pipeline.Document{
			Name:       filepath.Base(path),
			Open:       func() ([]byte, error) { return os.ReadFile(path) },
			Candidates: candidates,
		}
	}

	out, err := export.OpenFile(f.output)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Fprintf(stderr, "Processing %d document(s) with policy %s, generator %s\n\n", len(docs), p.Policy(), cfg.Generator)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	batch, err := p.ProcessDocuments(ctx, docs, func(dr pipeline.DocumentResult) error {
		return writeDocument(out, stderr, dr)
	})
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if len(docs) > 1 {
		if err := export.WriteSummary(stderr, "All documents", batch.Summary); err != nil {
			return err
		}
		fmt.Fprintln(stderr)
	}
	fmt.Fprintf(stdout, "Wrote %d records to %s\n", out.Count(), f.output)

	if batch.Failed == len(docs) {
		return fmt.Errorf("no document could be processed")
	}
	return nil
}

// writeDocument appends one document's kept records and reports its counts.
func writeDocument(out *export.Writer, stderr io.Writer, dr pipeline.DocumentResult) error {
	if dr.Err != nil {
		fmt.Fprintf(stderr, "%s: skipped: %v\n\n", dr.Name, dr.Err)
		return nil
	}
	res := dr.Result
	if err := out.Write(res.Records...); err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return err
	}

	title := fmt.Sprintf("%s (%d pages)", dr.Name, res.Pages)
	if err := export.WriteSummary(stderr, title, res.Summary); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "  warning: %s\n", w)
	}
	fmt.Fprintln(stderr)
	return nil
}

// collectPDFs returns target itself, or every *.pdf directly inside it
// sorted by name.
func collectPDFs(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(target, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s", target)
	}
	sort.Strings(paths)
	return paths, nil
}

func readCandidates(path string) ([]extract.Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	dec, err := extract.NewDecoder()
	if err != nil {
		return nil, err
	}
	decoded, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return decoded, nil
}
