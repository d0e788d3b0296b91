package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/deliverable-builder/internal/fsutil"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/rendering"
	"github.com/jonathan/deliverable-builder/internal/schemas"
	"github.com/jonathan/deliverable-builder/internal/types"
	"github.com/jonathan/deliverable-builder/internal/validation"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a deliverable JSON file to DOCX and PDF",
	Long:  "Checks a deliverable JSON file against the schema, renders DOCX and PDF next to each other in --out-dir, and reports each artifact's validation verdict.",
	RunE:  runRender,
}

var (
	renderInput  string
	renderOutDir string
)

func init() {
	renderCmd.Flags().StringVarP(&renderInput, "in", "i", "", "Path to deliverable JSON file (required)")
	renderCmd.Flags().StringVarP(&renderOutDir, "out-dir", "o", ".", "Directory for deliverable.docx and deliverable.pdf")

	if err := renderCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	_, err := renderDeliverableFile(cmd.OutOrStdout(), renderInput, renderOutDir)
	return err
}

// renderDeliverableFile renders inPath into outDir and returns the artifacts
// with their verdicts applied. Failing verdicts are reported, not returned as errors.
func renderDeliverableFile(out io.Writer, inPath, outDir string) ([]*types.ArtifactRecord, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read deliverable file: %w", err)
	}

	deliverable, err := schemas.ValidateDeliverable(raw)
	if err != nil {
		return nil, fmt.Errorf("deliverable failed the schema: %w", err)
	}

	docx, err := rendering.RenderDocx(deliverable)
	if err != nil {
		return nil, fmt.Errorf("failed to render DOCX: %w", err)
	}
	pdf, err := rendering.RenderPDF(deliverable)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := []struct {
		kind       types.ArtifactType
		data       []byte
		textLength *int
	}{
		{types.ArtifactDocx, docx.Buffer, nil},
		{types.ArtifactPDF, pdf.Buffer, types.IntPtr(pdf.TextLength)},
	}

	var artifacts []*types.ArtifactRecord
	for _, o := range outputs {
		path := filepath.Join(outDir, "deliverable."+o.kind.Extension())
		if err := fsutil.WriteFileAtomic(path, o.data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		verdict := validation.ValidateBytes(o.kind, o.kind.MIME(), o.data, o.textLength)
		artifacts = append(artifacts, artifactFromVerdict(o.kind, o.data, verdict))
		_, _ = fmt.Fprintf(out, "Wrote %s\n", path)
	}

	observability.NewPrinter(out).PrintArtifacts(artifacts...)
	return artifacts, nil
}

// artifactFromVerdict builds a display record for bytes that were never stored.
func artifactFromVerdict(kind types.ArtifactType, data []byte, v *validation.Verdict) *types.ArtifactRecord {
	a := &types.ArtifactRecord{
		Type:           kind,
		Status:         v.Status,
		MIME:           kind.MIME(),
		ByteLength:     int64(len(data)),
		PageCount:      v.PageCount,
		ParagraphCount: v.ParagraphCount,
		TextLength:     v.TextLength,
	}
	if !v.Valid() {
		a.ErrorCode = types.StringPtr(string(v.Code))
		a.ErrorMessage = types.StringPtr(v.Message)
	}
	return a
}
