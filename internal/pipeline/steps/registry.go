// Package steps provides stage definitions, dependency validation and job
// progress derived from the job log of a deliverable run.
package steps

import (
	"fmt"

	"github.com/jonathan/deliverable-builder/internal/types"
)

// Stage categories
const (
	CategoryIngestion  = "ingestion"
	CategoryGeneration = "generation"
	CategoryRendering  = "rendering"
	CategoryValidation = "validation"
)

// StageDefinition defines metadata for a pipeline stage
type StageDefinition struct {
	Stage        types.JobStage
	Category     string
	Dependencies []types.JobStage
	// Entries is how many job log entries a completed stage has
	Entries int
}

// StageRegistry holds all stage definitions
var StageRegistry = map[types.JobStage]StageDefinition{
	types.StageIngest: {
		Stage:    types.StageIngest,
		Category: CategoryIngestion,
		Entries:  1,
	},
	types.StageGenerate: {
		Stage:        types.StageGenerate,
		Category:     CategoryGeneration,
		Dependencies: []types.JobStage{types.StageIngest},
		Entries:      1,
	},
	types.StageRender: {
		Stage:        types.StageRender,
		Category:     CategoryRendering,
		Dependencies: []types.JobStage{types.StageGenerate},
		Entries:      1,
	},
	types.StageValidate: {
		Stage:        types.StageValidate,
		Category:     CategoryValidation,
		Dependencies: []types.JobStage{types.StageRender},
		Entries:      2, // docx, then pdf
	},
}

// Order lists the stages in execution order.
var Order = []types.JobStage{types.StageIngest, types.StageGenerate, types.StageRender, types.StageValidate}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Stage               types.JobStage
	MissingDependencies []types.JobStage
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s: missing dependencies: %v", e.Stage, e.MissingDependencies)
}

// Progress summarizes a job from its log entries.
type Progress struct {
	JobID     string           `json:"job_id"`
	Completed []types.JobStage `json:"completed"`
	Running   []types.JobStage `json:"running"`
	Available []types.JobStage `json:"available"`
	Blocked   []types.JobStage `json:"blocked"`
	// Terminal is "done", "failed" or "" while the job is in flight
	Terminal  types.JobStage `json:"terminal,omitempty"`
	ErrorCode *string        `json:"error_code,omitempty"`
	// FailedStage is the stage whose entry was left open by a failed job
	FailedStage types.JobStage `json:"failed_stage,omitempty"`
}

type stageEntries struct {
	total  int
	closed int
}

func tally(logs []types.JobLogRecord) map[types.JobStage]*stageEntries {
	counts := make(map[types.JobStage]*stageEntries)
	for _, entry := range logs {
		c, ok := counts[entry.Stage]
		if !ok {
			c = &stageEntries{}
			counts[entry.Stage] = c
		}
		c.total++
		if entry.FinishedAt != nil {
			c.closed++
		}
	}
	return counts
}

func completed(def StageDefinition, c *stageEntries) bool {
	return c != nil && c.closed >= def.Entries && c.closed == c.total
}

// ValidateDependencies checks that every dependency of stage is complete in logs
func ValidateDependencies(logs []types.JobLogRecord, stage types.JobStage) error {
	def, ok := StageRegistry[stage]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}

	counts := tally(logs)
	var missing []types.JobStage
	for _, dep := range def.Dependencies {
		if !completed(StageRegistry[dep], counts[dep]) {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Stage: stage, MissingDependencies: missing}
	}
	return nil
}

// Summarize derives job progress from its log entries. Entries are expected
// in append order, as returned by the record store.
func Summarize(jobID string, logs []types.JobLogRecord) *Progress {
	p := &Progress{
		JobID:     jobID,
		Completed: []types.JobStage{},
		Running:   []types.JobStage{},
		Available: []types.JobStage{},
		Blocked:   []types.JobStage{},
	}

	for _, entry := range logs {
		if entry.Stage == types.StageDone || entry.Stage == types.StageFailed {
			p.Terminal = entry.Stage
			p.ErrorCode = entry.ErrorCode
		}
	}

	counts := tally(logs)
	for _, stage := range Order {
		def := StageRegistry[stage]
		c := counts[stage]
		switch {
		case completed(def, c):
			p.Completed = append(p.Completed, stage)
		case c != nil && c.closed < c.total:
			if p.Terminal == types.StageFailed {
				p.FailedStage = stage
			} else {
				p.Running = append(p.Running, stage)
			}
		case p.Terminal != "":
			// a finished job has nothing left to schedule
		case c != nil:
			// between the entries of a multi-entry stage
			p.Running = append(p.Running, stage)
		case ValidateDependencies(logs, stage) == nil:
			p.Available = append(p.Available, stage)
		default:
			p.Blocked = append(p.Blocked, stage)
		}
	}

	return p
}
