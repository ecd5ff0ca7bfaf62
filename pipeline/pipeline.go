// Package pipeline runs the diff, translate and merge cycle over a set of
// localized JSON files.
//
// For every target file the keys that are missing or empty compared to the
// base file are collected, sent to the Translator for the file's language,
// and merged back into the file. Documents are independent: each has its own
// diff and merge, and a failure in one leaves the others untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/transdiff/doctree"
	"github.com/minios-linux/transdiff/langmeta"
	"github.com/minios-linux/transdiff/merge"
	"github.com/minios-linux/transdiff/store"
)

// Options controls a Run.
type Options struct {
	// BasePath is the base (reference) document.
	BasePath string
	// Targets are the localized documents to complete.
	Targets []string
	// Language is the tag used for every target. When empty, each target's
	// tag is taken from its file name (de.json -> "de").
	Language string
	// NewTranslator builds the translator for a tag. It is called at most
	// once per distinct tag and never in dry-run mode.
	NewTranslator Factory
	// MaxConcurrent bounds the number of documents translated at the same
	// time. Zero or negative means no bound.
	MaxConcurrent int
	// DryRun only computes diffs; nothing is translated or written.
	DryRun bool

	// OnLog receives progress messages.
	OnLog func(format string, args ...any)
	// OnError receives per-document failures.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else {
		o.log(format, args...)
	}
}

func (o *Options) languageFor(path string) (string, error) {
	if o.Language != "" {
		return o.Language, nil
	}
	return langmeta.ExtractLanguage(path)
}

// job is a document with work to do.
type job struct {
	index int
	path  string
	lang  string
	diff  *doctree.Document
}

// outcome is a finished translation, handed from a worker to the collector.
type outcome struct {
	job
	translated *doctree.Document
	err        error
}

// Run processes every target against the base document.
//
// Only a failure to load the base document aborts the run and is returned
// as an error. Every other failure is recorded in the report for the
// document concerned; use Report.Err to check whether all documents
// succeeded.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.BasePath == "" {
		return nil, errors.New("no base document")
	}
	if !opts.DryRun && opts.NewTranslator == nil {
		return nil, errors.New("no translator factory")
	}

	base, err := store.Load(opts.BasePath)
	if err != nil {
		return nil, fmt.Errorf("loading base document: %w", err)
	}

	targets := uniqueTargets(opts.Targets)
	report := &Report{Results: make([]Result, len(targets))}

	fail := func(i int, err error) {
		report.Results[i].Status = StatusFailed
		report.Results[i].Err = err
		opts.logError("[%s]: %v", report.Results[i].Path, err)
	}

	// Diff every target against the base.
	var jobs []job
	for i, path := range targets {
		res := &report.Results[i]
		res.Path = path

		lang, err := opts.languageFor(path)
		if err != nil {
			fail(i, err)
			continue
		}
		res.Lang = lang

		target, err := store.Load(path)
		if err != nil {
			fail(i, err)
			continue
		}

		diff := doctree.FindMissingOrUntranslated(base, target)
		if diff.IsEmpty() {
			res.Status = StatusUpToDate
			opts.log("[%s]: No missing keys.", path)
			continue
		}
		res.Missing = doctree.CountStrings(diff)

		if opts.DryRun {
			res.Status = StatusPending
			opts.log("[%s]: %d missing keys in language: %s", path, res.Missing, lang)
			continue
		}
		jobs = append(jobs, job{index: i, path: path, lang: lang, diff: diff})
	}

	if len(jobs) == 0 {
		return report, nil
	}

	// Fan out: one worker per document, bounded by MaxConcurrent.
	reg := newRegistry(opts.NewTranslator)
	results := make(chan outcome, len(jobs))

	var g errgroup.Group
	if opts.MaxConcurrent > 0 {
		g.SetLimit(opts.MaxConcurrent)
	}
	go func() {
		for _, j := range jobs {
			g.Go(func() error {
				results <- translateJob(ctx, reg, j)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	// Fan in: merge each document as soon as its translation is ready.
	for out := range results {
		if out.err != nil {
			fail(out.index, out.err)
			continue
		}
		if err := apply(out); err != nil {
			fail(out.index, err)
			continue
		}
		report.Results[out.index].Status = StatusUpdated
		opts.log("[%s]: Added %d missing keys in language: %s", out.path, report.Results[out.index].Missing, out.lang)
	}

	return report, nil
}

func translateJob(ctx context.Context, reg *registry, j job) outcome {
	out := outcome{job: j}

	tr, err := reg.get(j.lang)
	if err != nil {
		out.err = fmt.Errorf("creating translator for %s: %w", j.lang, err)
		return out
	}

	out.translated, out.err = tr.Translate(ctx, j.diff, j.lang)
	if out.err == nil && out.translated == nil {
		out.err = fmt.Errorf("translator for %s returned no result", j.lang)
	}
	return out
}

// apply re-reads the document, merges the translation into what is on disk
// now and saves the result.
func apply(out outcome) error {
	current, err := store.Load(out.path)
	if err != nil {
		return err
	}
	return store.Save(out.path, merge.DeepMerge(current, out.translated))
}

// uniqueTargets drops repeated paths, keeping the first occurrence.
func uniqueTargets(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key := filepath.Clean(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
