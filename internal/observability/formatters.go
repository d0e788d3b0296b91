// Package observability provides structured logging, Prometheus metrics and
// formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/deliverable-builder/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// PrintMaterial outputs the ingested material record.
func (p *Printer) PrintMaterial(m *types.MaterialRecord) {
	if m == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File:     %s\n", m.Filename))
	sb.WriteString(fmt.Sprintf("Type:     %s\n", m.MIME))
	sb.WriteString(fmt.Sprintf("Size:     %d bytes\n", m.ByteLength))
	sb.WriteString(fmt.Sprintf("Status:   %s", m.Status))
	if m.ErrorCode != nil {
		sb.WriteString(fmt.Sprintf(" (%s)", *m.ErrorCode))
	}
	if m.SHA256 != "" {
		sb.WriteString(fmt.Sprintf("\nSHA-256:  %s", truncate(m.SHA256, 16)))
	}

	p.printBox("INGESTED MATERIAL", sb.String())
}

// PrintDeliverable outputs a summary of the generated deliverable.
func (p *Printer) PrintDeliverable(d *types.Deliverable) {
	if d == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:    %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("Course:   %s\n", d.Metadata.Course))
	if d.Metadata.DueAtISO != "" {
		sb.WriteString(fmt.Sprintf("Due:      %s\n", d.Metadata.DueAtISO))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Sections (%d):\n", len(d.Sections)))
	count := min(len(d.Sections), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", d.Sections[i].Heading))
	}
	if len(d.Sections) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(d.Sections)-maxItemsToShow))
	}

	if len(d.Citations) > 0 {
		sb.WriteString(fmt.Sprintf("\nCitations: %d", len(d.Citations)))
	}

	p.printBox("GENERATED DELIVERABLE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArtifacts outputs the rendered artifacts with their validation verdicts.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintArtifacts(artifacts ...*types.ArtifactRecord) {
	var present []*types.ArtifactRecord
	for _, a := range artifacts {
		if a != nil {
			present = append(present, a)
		}
	}
	if len(present) == 0 {
		return
	}

	var sb strings.Builder
	for i, a := range present {
		icon := "✓"
		if a.Status != types.ArtifactValid {
			icon = "⚠"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s  %d bytes\n", icon, strings.ToUpper(string(a.Type)), a.Status, a.ByteLength))

		var stats []string
		if a.PageCount != nil {
			stats = append(stats, fmt.Sprintf("pages=%d", *a.PageCount))
		}
		if a.ParagraphCount != nil {
			stats = append(stats, fmt.Sprintf("paragraphs=%d", *a.ParagraphCount))
		}
		if a.TextLength != nil {
			stats = append(stats, fmt.Sprintf("text=%d", *a.TextLength))
		}
		if len(stats) > 0 {
			sb.WriteString(fmt.Sprintf("  %s\n", strings.Join(stats, " ")))
		}
		if a.ErrorCode != nil {
			sb.WriteString(fmt.Sprintf("  %s", *a.ErrorCode))
			if a.ErrorMessage != nil {
				sb.WriteString(": " + *a.ErrorMessage)
			}
			sb.WriteString("\n")
		}
		if i < len(present)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("RENDERED ARTIFACTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobLogs outputs a job's trace, one line per entry.
func (p *Printer) PrintJobLogs(logs []types.JobLogRecord) {
	if len(logs) == 0 {
		return
	}

	var sb strings.Builder
	for i, entry := range logs {
		status := "open"
		if entry.FinishedAt != nil {
			status = entry.FinishedAt.Sub(entry.StartedAt).Round(1e6).String()
		}
		line := fmt.Sprintf("%-9s %-10s %s", entry.Stage, status, entry.Message)
		if entry.ErrorCode != nil {
			line = fmt.Sprintf("%-9s %-10s %s", entry.Stage, *entry.ErrorCode, entry.Message)
		}
		sb.WriteString(line)
		if i < len(logs)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("JOB LOG "+logs[0].JobID, sb.String())
}
