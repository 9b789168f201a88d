package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	formrules "github.com/goliatone/go-formrules"
	"github.com/goliatone/go-formrules/internal/loader"
	"github.com/goliatone/go-formrules/pkg/engine"
	"github.com/goliatone/go-formrules/pkg/expr"
	"github.com/goliatone/go-formrules/pkg/graph"
	"github.com/goliatone/go-formrules/pkg/prompt"
	"github.com/goliatone/go-formrules/pkg/report"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/schema"
	"github.com/goliatone/go-formrules/pkg/visibility"
)

// newPromptDriver is swapped in tests.
var newPromptDriver = func(e env) prompt.PromptDriver {
	return prompt.NewSurveyDriver(e.stderr)
}

type session struct {
	cfg    config
	logger zerolog.Logger
	engine *engine.Engine
}

func parseFlags(fs *flag.FlagSet, e env, args []string) (session, []string, error) {
	fs.SetOutput(e.stderr)
	resolve := bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return session{}, nil, err
		}
		return session{}, nil, errUsage
	}
	cfg, err := resolve()
	if err != nil {
		return session{}, nil, err
	}
	logger, err := cfg.logger(e.stderr)
	if err != nil {
		return session{}, nil, err
	}
	options, err := cfg.engineOptions(logger)
	if err != nil {
		return session{}, nil, err
	}
	return session{cfg: cfg, logger: logger, engine: engine.New(options...)}, fs.Args(), nil
}

type fileResult struct {
	Source string                   `json:"source"`
	Valid  bool                     `json:"valid"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

func runValidate(ctx context.Context, e env, args []string) (int, error) {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	s, paths, err := parseFlags(fs, e, args)
	if err != nil {
		return exitError, err
	}
	if len(paths) == 0 {
		return exitError, errors.New("at least one definition is required")
	}

	results := make([]fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}
	for i, path := range paths {
		g.Go(func() error {
			src, err := schema.SourceFromLocation(path)
			if err != nil {
				return err
			}
			_, errs, err := s.engine.LoadDefinition(gctx, src)
			if err != nil && !errors.Is(err, engine.ErrInvalidDefinition) {
				return err
			}
			results[i] = fileResult{Source: path, Valid: len(errs) == 0, Errors: errs}
			s.logger.Debug().Str("source", path).Int("errors", len(errs)).Msg("definition checked")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return exitError, err
	}

	code := exitOK
	for _, result := range results {
		if !result.Valid {
			code = exitInvalid
		}
	}

	if s.cfg.Format == "json" {
		return code, writeJSON(e.stdout, results)
	}
	for _, result := range results {
		if result.Valid {
			fmt.Fprintf(e.stdout, "ok    %s\n", result.Source)
			continue
		}
		fmt.Fprintf(e.stdout, "FAIL  %s (%d errors)\n", result.Source, len(result.Errors))
		if err := report.Write(indent(e.stdout), result.Errors); err != nil {
			return exitError, err
		}
	}
	return code, nil
}

type checkOutput struct {
	Visible []string                 `json:"visible"`
	Errors  []schema.ValidationError `json:"errors,omitempty"`
	Grouped report.ErrorMapping      `json:"grouped"`
}

func runCheck(ctx context.Context, e env, args []string) (int, error) {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	answersPath := fs.String("answers", "", "answers document (JSON or YAML, - for stdin)")
	s, rest, err := parseFlags(fs, e, args)
	if err != nil {
		return exitError, err
	}
	if len(rest) != 1 || *answersPath == "" {
		return exitError, errors.New("usage: check -answers <answers> <definition>")
	}

	def, code, err := loadValidDefinition(ctx, s, e, rest[0])
	if err != nil || code != exitOK {
		return code, err
	}
	answers, err := loadAnswers(ctx, s, e, *answersPath)
	if err != nil {
		return exitError, err
	}

	result := s.engine.ValidateSubmission(def, answers)
	code = exitOK
	if !result.Valid() {
		code = exitInvalid
	}

	visible := visibility.VisibleIDs(def, result.Visible)
	if s.cfg.Format == "json" {
		return code, writeJSON(e.stdout, checkOutput{
			Visible: visible,
			Errors:  result.Errors,
			Grouped: report.Group(result.Errors),
		})
	}
	fmt.Fprintf(e.stdout, "visible: %s\n", strings.Join(visible, ", "))
	if result.Valid() {
		fmt.Fprintln(e.stdout, "submission is valid")
		return code, nil
	}
	fmt.Fprintf(e.stdout, "%d errors:\n", len(result.Errors))
	return code, report.Write(indent(e.stdout), result.Errors)
}

type graphOutput struct {
	Dependencies map[string][]string `json:"dependencies"`
	Missing      map[string][]string `json:"missing,omitempty"`
	Order        []string            `json:"order"`
	Cycles       [][]string          `json:"cycles,omitempty"`
}

func runGraph(ctx context.Context, e env, args []string) (int, error) {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	s, rest, err := parseFlags(fs, e, args)
	if err != nil {
		return exitError, err
	}
	if len(rest) != 1 {
		return exitError, errors.New("usage: graph <definition>")
	}

	// The graph is printed for definitions the validator rejects too, so the
	// document is decoded without running it.
	loaderOptions, err := s.cfg.loaderOptions()
	if err != nil {
		return exitError, err
	}
	src, err := schema.SourceFromLocation(rest[0])
	if err != nil {
		return exitError, err
	}
	doc, err := formrules.NewLoader(loaderOptions...).Load(ctx, src)
	if err != nil {
		return exitError, err
	}
	def, err := doc.Definition()
	if err != nil {
		return exitError, err
	}

	depth := graph.WithMaxDepth(s.cfg.MaxDepth)
	g := graph.Build(def)
	cycles, err := graph.DetectCycles(g, depth)
	if err != nil {
		return exitError, err
	}
	order, err := graph.TopologicalOrder(g, depth)
	if err != nil {
		return exitError, err
	}

	code := exitOK
	if len(cycles) > 0 {
		code = exitInvalid
	}
	out := graphOutput{Dependencies: g.Map(), Missing: g.Missing(), Order: order, Cycles: cycles}
	if s.cfg.Format == "json" {
		return code, writeJSON(e.stdout, out)
	}

	fmt.Fprintln(e.stdout, "dependencies:")
	for _, id := range g.Nodes() {
		deps := g.Dependencies(id)
		if len(deps) == 0 {
			fmt.Fprintf(e.stdout, "  %s\n", id)
			continue
		}
		fmt.Fprintf(e.stdout, "  %s -> %s\n", id, strings.Join(deps, ", "))
	}
	if len(out.Missing) > 0 {
		fmt.Fprintln(e.stdout, "unknown references:")
		for _, id := range sortedKeys(out.Missing) {
			fmt.Fprintf(e.stdout, "  %s -> %s\n", id, strings.Join(out.Missing[id], ", "))
		}
	}
	fmt.Fprintf(e.stdout, "order: %s\n", strings.Join(order, ", "))
	for _, cycle := range cycles {
		fmt.Fprintf(e.stdout, "cycle: %s\n", strings.Join(cycle, " -> "))
	}
	return code, nil
}

func runFill(ctx context.Context, e env, args []string) (int, error) {
	fs := flag.NewFlagSet("fill", flag.ContinueOnError)
	prefillPath := fs.String("prefill", "", "answers used as defaults (JSON or YAML)")
	outPath := fs.String("out", "", "write answers to this file instead of stdout")
	attempts := fs.Int("attempts", 3, "times a field is asked again after an invalid answer")
	s, rest, err := parseFlags(fs, e, args)
	if err != nil {
		return exitError, err
	}
	if len(rest) != 1 {
		return exitError, errors.New("usage: fill [-prefill answers] [-out file] <definition>")
	}

	def, code, err := loadValidDefinition(ctx, s, e, rest[0])
	if err != nil || code != exitOK {
		return code, err
	}
	prefill := schema.AnswerMap{}
	if *prefillPath != "" {
		if prefill, err = loadAnswers(ctx, s, e, *prefillPath); err != nil {
			return exitError, err
		}
	}

	clock, err := s.cfg.clock()
	if err != nil {
		return exitError, err
	}
	evaluator := expr.New(expr.WithClock(clock), expr.WithLogger(s.logger))
	collector := prompt.NewCollector(
		prompt.WithPromptDriver(newPromptDriver(e)),
		prompt.WithEvaluator(evaluator),
		prompt.WithValidator(rules.NewValidator(
			rules.WithEvaluator(evaluator),
			rules.WithClock(clock),
			rules.WithLogger(s.logger),
		)),
		prompt.WithMaxAttempts(*attempts),
		prompt.WithLogger(s.logger),
	)

	answers, err := collector.Collect(ctx, def, prefill)
	if err != nil {
		return exitError, err
	}

	result := s.engine.ValidateSubmission(def, answers)
	code = exitOK
	if !result.Valid() {
		code = exitInvalid
		fmt.Fprintf(e.stderr, "%d errors:\n", len(result.Errors))
		if err := report.Write(indent(e.stderr), result.Errors); err != nil {
			return exitError, err
		}
	}

	if *outPath == "" {
		return code, writeJSON(e.stdout, answers)
	}
	payload, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return exitError, err
	}
	if err := os.WriteFile(*outPath, append(payload, '\n'), 0o644); err != nil {
		return exitError, err
	}
	fmt.Fprintf(e.stderr, "answers written to %s\n", *outPath)
	return code, nil
}

// loadValidDefinition loads a definition and prints its errors when the
// validator rejects it.
func loadValidDefinition(ctx context.Context, s session, e env, location string) (schema.FormDefinition, int, error) {
	src, err := schema.SourceFromLocation(location)
	if err != nil {
		return schema.FormDefinition{}, exitError, err
	}
	def, errs, err := s.engine.LoadDefinition(ctx, src)
	if errors.Is(err, engine.ErrInvalidDefinition) {
		fmt.Fprintf(e.stdout, "definition %s is invalid (%d errors)\n", location, len(errs))
		return schema.FormDefinition{}, exitInvalid, report.Write(indent(e.stdout), errs)
	}
	if err != nil {
		return schema.FormDefinition{}, exitError, err
	}
	return def, exitOK, nil
}

func loadAnswers(ctx context.Context, s session, e env, location string) (schema.AnswerMap, error) {
	if location == "-" {
		data, err := io.ReadAll(e.stdin)
		if err != nil {
			return nil, err
		}
		data, err = loader.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("answers from stdin: %w", err)
		}
		doc, err := schema.NewDocument(schema.SourceFromFS("stdin"), data)
		if err != nil {
			return nil, err
		}
		return doc.Answers()
	}
	src, err := schema.SourceFromLocation(location)
	if err != nil {
		return nil, err
	}
	return s.engine.LoadAnswers(ctx, src)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

type indentWriter struct {
	w io.Writer
}

func indent(w io.Writer) io.Writer {
	return indentWriter{w: w}
}

func (iw indentWriter) Write(p []byte) (int, error) {
	lines := strings.SplitAfter(string(p), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, err := io.WriteString(iw.w, "    "+line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
