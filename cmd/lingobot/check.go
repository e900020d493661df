package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/correction/diffreport"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/reply"
)

// SurfaceCLI labels the reply metric for the check command.
const SurfaceCLI = "cli"

var (
	deleteColor = color.New(color.FgRed, color.CrossedOut)
	insertColor = color.New(color.FgGreen, color.Bold)
	headerColor = color.New(color.Bold)
	errorColor  = color.New(color.FgRed)
)

type checkOptions struct {
	file     string
	jobs     int
	jsonOut  bool
	noColor  bool
	metrics  *observe.Metrics
	failFast bool
}

func newCheckCmd(flags *rootFlags) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [text...]",
		Short: "Correct utterances and print a colored word diff",
		Long: `Correct one utterance given as arguments, or one utterance per line of
--file ("-" reads stdin). Lines are analyzed concurrently and reported in
input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := checkInput(cmd.InOrStdin(), opts.file, args)
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), flags, nil)
			if err != nil {
				return err
			}
			if opts.noColor {
				color.NoColor = true
			}
			opts.metrics = rt.metrics
			return runCheck(cmd.Context(), cmd.OutOrStdout(), rt.service, lines, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", `read one utterance per line from this file ("-" for stdin)`)
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of utterances analyzed concurrently")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop at the first failing utterance")
	return cmd
}

// checkInput returns the utterances to analyze. Arguments form a single
// utterance; a file yields its non-blank lines.
func checkInput(stdin io.Reader, file string, args []string) ([]string, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, errors.New("pass either text arguments or --file, not both")
	case file == "":
		if len(args) == 0 {
			return nil, errors.New("nothing to check: pass text arguments or --file")
		}
		return []string{strings.Join(args, " ")}, nil
	}

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return lines, nil
}

// checkResult is one analyzed line. Exactly one of Result and Err is set.
type checkResult struct {
	Line   int                `json:"line"`
	Input  string             `json:"input"`
	Result *correction.Result `json:"result,omitempty"`
	Err    string             `json:"error,omitempty"`
}

// analyzeLines runs svc over lines with at most jobs concurrent analyses and
// returns the results in input order. Per-line failures are recorded in the
// result; with failFast the first failure cancels the remaining lines.
func analyzeLines(ctx context.Context, svc *reply.Service, lines []string, jobs int, failFast bool, metrics *observe.Metrics) ([]checkResult, error) {
	if jobs <= 0 {
		jobs = 1
	}
	results := make([]checkResult, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, line := range lines {
		g.Go(func() error {
			results[i] = checkResult{Line: i + 1, Input: line}
			if err := gctx.Err(); err != nil {
				results[i].Err = err.Error()
				return nil
			}
			res, err := svc.Analyze(gctx, line)
			if err != nil {
				results[i].Err = err.Error()
				if failFast {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
				return nil
			}
			results[i].Result = res
			if metrics != nil {
				metrics.RecordReply(gctx, SurfaceCLI)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func runCheck(ctx context.Context, w io.Writer, svc *reply.Service, lines []string, opts *checkOptions) error {
	results, err := analyzeLines(ctx, svc, lines, opts.jobs, opts.failFast, opts.metrics)

	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(results); encErr != nil {
			return encErr
		}
	} else {
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeCheckResult(w, r, len(results) > 1)
		}
	}

	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d utterances failed", failed, len(results))
	}
	return nil
}

func writeCheckResult(w io.Writer, r checkResult, numbered bool) {
	if numbered {
		headerColor.Fprintf(w, "#%d ", r.Line)
	}
	if r.Err != "" {
		errorColor.Fprintln(w, "error: "+r.Err)
		return
	}
	res := r.Result
	fmt.Fprintln(w, renderDiff(res.Segments))
	fmt.Fprintf(w, "%s %s\n", headerColor.Sprint("Corrected:"), res.Final)
	if !res.Sentiment.IsZero() {
		fmt.Fprintf(w, "%s %s (%.2f)\n", headerColor.Sprint("Sentiment:"), res.Sentiment.Label, res.Sentiment.Score)
	}
	if len(res.Emotions) > 0 {
		parts := make([]string, 0, len(res.Emotions))
		for _, e := range reply.SortedEmotions(res.Emotions) {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", e.Label, e.Score))
		}
		fmt.Fprintf(w, "%s %s\n", headerColor.Sprint("Emotions:"), strings.Join(parts, ", "))
	}
	for _, f := range res.Feedback {
		fmt.Fprintf(w, "  %s %s\n", reply.Marker(f.Severity), f.Message)
	}
}

// renderDiff renders segments for a terminal. Deletions are shown as
// [-word-] and insertions as {+word+}, colored when the output supports it.
func renderDiff(segs []diffreport.Segment) string {
	changed := false
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s.Kind {
		case diffreport.Delete:
			parts = append(parts, deleteColor.Sprint("[-"+s.Token+"-]"))
			changed = true
		case diffreport.Insert:
			parts = append(parts, insertColor.Sprint("{+"+s.Token+"+}"))
			changed = true
		default:
			parts = append(parts, s.Token)
		}
	}
	if !changed {
		return diffreport.NoChanges
	}
	return strings.Join(parts, " ")
}
