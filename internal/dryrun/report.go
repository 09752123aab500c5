package dryrun

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteReport prints r as plain text.
func WriteReport(w io.Writer, r *Report) error {
	p := &printer{w: w}

	name := r.Scenario
	if name == "" {
		name = "(unnamed)"
	}
	p.printf("scenario: %s\n", name)
	p.printf("backends: %s\n", strings.Join(r.Backends, ", "))
	p.printf("available: %s\n\n", strings.Join(r.Available, ", "))

	for i, s := range r.Steps {
		p.printf("#%d track(%d, %s)\n", i+1, s.Call.Type, strings.Join(quote(s.Call.Args), ", "))
		switch {
		case s.Outcome.Vetoed:
			p.printf("   vetoed by hook\n")
		default:
			if s.Outcome.NonInteraction {
				p.printf("   non-interaction\n")
			}
			for _, c := range s.Calls {
				p.printf("   %-18s %s%v\n", c.Backend, c.Method, c.Args)
			}
			p.printf("   delivered: %s\n", list(s.Outcome.Delivered))
			p.printf("   skipped:   %s\n", list(s.Outcome.Skipped))
			for _, b := range sortedKeys(s.Outcome.Failed) {
				p.printf("   failed:    %s: %v\n", b, s.Outcome.Failed[b])
			}
		}
		if s.Mismatch != "" {
			p.printf("   MISMATCH:  %s\n", s.Mismatch)
		}
	}

	if len(r.Console) > 0 {
		p.printf("\nconsole:\n")
		for _, args := range r.Console {
			p.printf("   %v\n", args)
		}
	}

	p.printf("\nmetrics:\n")
	for _, s := range r.Metrics {
		p.printf("   %s%s %g\n", s.Name, labelString(s.Labels), s.Value)
	}
	return p.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func quote(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

func list(in []string) string {
	if len(in) == 0 {
		return "-"
	}
	return strings.Join(in, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelString(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, k := range sortedKeys(labels) {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
