package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/types"
	"github.com/jonathan/deliverable-builder/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a DOCX or PDF artifact file",
	Long:  "Runs the artifact acceptance gates (MIME sniffing, size floors, structure and text checks) over a local file. Exits non-zero with the failure code when a gate fails.",
	RunE:  runValidate,
}

var (
	validateInput string
	validateType  string
)

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "in", "i", "", "Path to DOCX or PDF file (required)")
	validateCmd.Flags().StringVarP(&validateType, "type", "t", "", "Artifact type: docx or pdf (defaults to the file extension)")

	if err := validateCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	return validateArtifactFile(cmd.OutOrStdout(), validateInput, validateType)
}

// artifactTypeFor resolves an explicit type or falls back to the extension.
func artifactTypeFor(path, explicit string) (types.ArtifactType, error) {
	name := strings.ToLower(explicit)
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch types.ArtifactType(name) {
	case types.ArtifactDocx:
		return types.ArtifactDocx, nil
	case types.ArtifactPDF:
		return types.ArtifactPDF, nil
	default:
		return "", fmt.Errorf("cannot tell artifact type of %s; pass --type docx or --type pdf", path)
	}
}

func validateArtifactFile(out io.Writer, path, explicitType string) error {
	kind, err := artifactTypeFor(path, explicitType)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	verdict := validation.ValidateBytes(kind, kind.MIME(), data, nil)
	observability.NewPrinter(out).PrintArtifacts(artifactFromVerdict(kind, data, verdict))
	if !verdict.Valid() {
		return types.NewPipelineError(verdict.Code, types.StageValidate, verdict.Message, nil)
	}
	return nil
}
