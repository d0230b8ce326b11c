// Package render formats command results for the terminal and as JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imamik/k8tenant/internal/archive"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/lifecycle"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (string, error) {
	switch s {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (supported: table, json)", entity.ErrInvalidName, s)
}

// JSON writes v indented.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// detail returns the variant specific column of a record.
func detail(rec *entity.Record) string {
	switch {
	case rec.Account != nil:
		scope := "namespace " + rec.Account.Namespace
		if rec.Account.ClusterScoped {
			scope = "cluster-wide"
		}
		return scope
	case rec.DNS != nil:
		return fmt.Sprintf("%s <%s>", rec.DNS.Provider, rec.DNS.Email)
	case rec.Registry != nil:
		d := rec.Registry.Username + "@" + rec.Registry.Domain
		if rec.Registry.CertResolverRef != "" {
			d += " via " + rec.Registry.CertResolverRef
		}
		return d
	}
	return ""
}

// List renders list entries.
func List(w io.Writer, variant entity.Variant, entries []lifecycle.Entry) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s entities (%d)", variant, len(entries))))
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none"))
		return
	}
	for _, e := range entries {
		status := string(e.Record.Status)
		if status == "" {
			status = string(entity.StatusActive)
		}
		fmt.Fprintf(w, "  %s %-32s %-9s %-20s %s\n",
			healthIcon(e.Health),
			e.Record.Name,
			status,
			e.Record.CreatedAt.Format(time.DateTime),
			dimStyle.Render(detail(e.Record)))
		if len(e.Missing) > 0 {
			fmt.Fprintf(w, "      %s %s\n", failedStyle.Render("missing:"), strings.Join(e.Missing, ", "))
		}
	}
}

// Check renders check results.
func Check(w io.Writer, variant entity.Variant, results []lifecycle.CheckResult) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s credential check", variant)))
	if len(results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  nothing to check"))
		return
	}
	for _, r := range results {
		if r.OK {
			fmt.Fprintf(w, "  %s %s\n", readyStyle.Render(checkMark), r.Name)
			continue
		}
		fmt.Fprintf(w, "  %s %-32s %s\n", failedStyle.Render(crossMark), r.Name, r.Message)
	}
}

// Outcome renders the result of a create, update or delete.
func Outcome(w io.Writer, verb string, variant entity.Variant, name string, out *lifecycle.Outcome) {
	fmt.Fprintf(w, "%s %s %s\n", readyStyle.Render(checkMark), verb, titleStyle.Render(string(variant)+"/"+name))
	if out == nil {
		return
	}
	if out.ArchiveID != "" {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("archive:"), out.ArchiveID)
	}
	if out.Record != nil && out.Record.Account != nil && out.Record.Account.KubeconfigPath != "" {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("kubeconfig:"), out.Record.Account.KubeconfigPath)
	}
	for _, ref := range out.Removed {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("removed:"), ref)
	}
	Warnings(w, out.Warnings)
}

// Warnings renders non-fatal conditions.
func Warnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w, sectionStyle.Render("Warnings"))
	for _, msg := range warnings {
		fmt.Fprintf(w, "  %s %s\n", warningStyle.Render(warnMark), msg)
	}
}

// StepFailure renders the objects a failed create left behind.
func StepFailure(w io.Writer, err *entity.StepError) {
	if len(err.Created) == 0 {
		return
	}
	fmt.Fprintln(w, sectionStyle.Render("Created before the failure (re-run to resume)"))
	for _, ref := range err.Created {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render(pending), ref)
	}
}

// Archives renders archive bundles.
func Archives(w io.Writer, bundles []archive.Bundle) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("archives (%d)", len(bundles))))
	for _, b := range bundles {
		mark := readyStyle.Render(checkMark)
		if len(b.Skipped) > 0 {
			mark = warningStyle.Render(warnMark)
		}
		fmt.Fprintf(w, "  %s %-56s %s\n", mark, b.ID, dimStyle.Render(strings.Join(b.Captured, ",")))
	}
}
