// Package prompts holds the embedded prompt templates for deliverable
// generation. Templates use {{.Name}} placeholders.
package prompts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// GenerationFile is the embedded prompt file name, used in error messages.
const GenerationFile = "generation.json"

//go:embed generation.json
var generationJSON []byte

// Keys every generation prompt file must define
const (
	KeySystemInstruction     = "system-instruction"
	KeyDeliverableHeader     = "deliverable-header"
	KeyDeliverableAssignment = "deliverable-assignment"
	KeyDeliverableMaterial   = "deliverable-material"
)

var requiredKeys = []string{
	KeySystemInstruction,
	KeyDeliverableHeader,
	KeyDeliverableAssignment,
	KeyDeliverableMaterial,
}

// Template is prompt text with {{.Name}} placeholders.
type Template string

// Fill replaces the placeholders named in values in a single pass, so text
// substituted for one placeholder is never expanded again. Placeholders with
// no value are left as they are.
func (t Template) Fill(values map[string]string) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "{{."+name+"}}", values[name])
	}
	return strings.NewReplacer(pairs...).Replace(string(t))
}

// Generation is the prompt set for one deliverable generation call.
type Generation struct {
	SystemInstruction Template
	Header            Template // {{.Prompt}}
	Assignment        Template // {{.AssignmentID}}
	Material          Template // {{.Index}} {{.Filename}} {{.MIME}} {{.Text}}
}

// MissingKeysError reports required keys absent from a prompt file.
type MissingKeysError struct {
	File string
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("prompt file %s is missing keys: %s", e.File, strings.Join(e.Keys, ", "))
}

var (
	loadOnce   sync.Once
	generation *Generation
	loadErr    error
)

// LoadGeneration parses the embedded generation prompts once.
func LoadGeneration() (*Generation, error) {
	loadOnce.Do(func() {
		generation, loadErr = ParseGeneration(GenerationFile, generationJSON)
	})
	return generation, loadErr
}

// MustLoadGeneration is LoadGeneration for callers that cannot proceed
// without prompts. It panics when the embedded file is broken.
func MustLoadGeneration() *Generation {
	g, err := LoadGeneration()
	if err != nil {
		panic(fmt.Sprintf("failed to load prompts: %v", err))
	}
	return g
}

// ParseGeneration decodes a prompt file and checks that every required key
// is present and non-blank.
func ParseGeneration(name string, data []byte) (*Generation, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(raw[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{File: name, Keys: missing}
	}

	return &Generation{
		SystemInstruction: Template(raw[KeySystemInstruction]),
		Header:            Template(raw[KeyDeliverableHeader]),
		Assignment:        Template(raw[KeyDeliverableAssignment]),
		Material:          Template(raw[KeyDeliverableMaterial]),
	}, nil
}
