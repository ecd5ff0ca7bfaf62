package pipeline

import (
	"errors"
	"fmt"
)

// Status is the outcome of processing one target document.
type Status int

const (
	// StatusUpToDate means the document had no missing keys.
	StatusUpToDate Status = iota
	// StatusPending means missing keys were found but not translated (dry run).
	StatusPending
	// StatusUpdated means missing keys were translated, merged and saved.
	StatusUpdated
	// StatusFailed means the document could not be processed; see Result.Err.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusPending:
		return "pending"
	case StatusUpdated:
		return "updated"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes what happened to one target document.
type Result struct {
	// Path is the target file path as given in Options.Targets.
	Path string
	// Lang is the resolved language tag (empty if resolution failed).
	Lang string
	Status Status
	// Missing is the number of string leaves found missing or untranslated.
	Missing int
	// Err is set when Status is StatusFailed.
	Err error
}

// Report collects the per-document results of a run, in target order.
type Report struct {
	Results []Result
}

// Count returns the number of results with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the errors of all failed documents, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Path, res.Err))
	}
	return errors.Join(errs...)
}
