package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/deliverable-builder/internal/fsutil"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// EnvelopeFileName is the name of the record envelope inside a store directory
const EnvelopeFileName = "records.json"

// Envelope is the on-disk shape of a FileStore
type Envelope struct {
	Artifacts    []types.ArtifactRecord        `json:"artifacts"`
	Materials    []types.MaterialRecord        `json:"materials"`
	Jobs         []types.JobLogRecord          `json:"jobs"`
	JSONPayloads []types.DeliverableJSONRecord `json:"jsonPayloads"`
}

// FileStore keeps every record in a single JSON envelope. Each mutation reads
// the whole envelope, modifies it in memory and rewrites it atomically.
//
// The mutex serializes writers inside one process only. Two processes sharing
// the same envelope file will race and lose updates.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or lazily creates) the envelope at <dir>/records.json
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("db: store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, EnvelopeFileName)}, nil
}

// Path returns the envelope file path
func (s *FileStore) Path() string {
	return s.path
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() (*Envelope, error) {
	env := &Envelope{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return env, nil
		}
		return nil, fmt.Errorf("failed to read record envelope: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("failed to parse record envelope %s: %w", s.path, err)
	}
	return env, nil
}

func (s *FileStore) save(env *Envelope) error {
	if env.Artifacts == nil {
		env.Artifacts = []types.ArtifactRecord{}
	}
	if env.Materials == nil {
		env.Materials = []types.MaterialRecord{}
	}
	if env.Jobs == nil {
		env.Jobs = []types.JobLogRecord{}
	}
	if env.JSONPayloads == nil {
		env.JSONPayloads = []types.DeliverableJSONRecord{}
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record envelope: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write record envelope: %w", err)
	}
	return nil
}

// mutate runs fn against a freshly loaded envelope and persists the result
func (s *FileStore) mutate(fn func(env *Envelope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(env); err != nil {
		return err
	}
	return s.save(env)
}

func (s *FileStore) read() (*Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// UpsertMaterial inserts or replaces the material keyed by (AssignmentID, ExternalFileID).
// The existing record's ID and CreatedAt are preserved on replace. Once the
// existing record carries a content hash its content fields are kept too, and
// m is updated to match what was stored.
func (s *FileStore) UpsertMaterial(_ context.Context, m *types.MaterialRecord) error {
	return s.mutate(func(env *Envelope) error {
		for i := range env.Materials {
			existing := &env.Materials[i]
			if existing.AssignmentID == m.AssignmentID && existing.ExternalFileID == m.ExternalFileID {
				m.ID = existing.ID
				m.CreatedAt = existing.CreatedAt
				if existing.SHA256 != "" {
					keepMaterialContent(m, existing)
				}
				env.Materials[i] = *m
				return nil
			}
		}
		env.Materials = append(env.Materials, *m)
		return nil
	})
}

// GetMaterial retrieves a material by ID
func (s *FileStore) GetMaterial(_ context.Context, id string) (*types.MaterialRecord, error) {
	env, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range env.Materials {
		if env.Materials[i].ID == id {
			m := env.Materials[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("material %s: %w", id, ErrRecordNotFound)
}

// FindMaterial retrieves a material by its application-level key
func (s *FileStore) FindMaterial(_ context.Context, assignmentID, externalFileID string) (*types.MaterialRecord, error) {
	env, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range env.Materials {
		m := env.Materials[i]
		if m.AssignmentID == assignmentID && m.ExternalFileID == externalFileID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("material %s/%s: %w", assignmentID, externalFileID, ErrRecordNotFound)
}

// CreateArtifact appends a new artifact record
func (s *FileStore) CreateArtifact(_ context.Context, a *types.ArtifactRecord) error {
	return s.mutate(func(env *Envelope) error {
		for i := range env.Artifacts {
			if env.Artifacts[i].ID == a.ID {
				return fmt.Errorf("artifact %s already exists", a.ID)
			}
		}
		env.Artifacts = append(env.Artifacts, *a)
		return nil
	})
}

// FinalizeArtifact replaces an artifact record that is still pending
func (s *FileStore) FinalizeArtifact(_ context.Context, a *types.ArtifactRecord) (bool, error) {
	applied := false
	err := s.mutate(func(env *Envelope) error {
		for i := range env.Artifacts {
			if env.Artifacts[i].ID != a.ID {
				continue
			}
			if env.Artifacts[i].Status != types.ArtifactPending {
				return nil
			}
			env.Artifacts[i] = *a
			applied = true
			return nil
		}
		return fmt.Errorf("artifact %s: %w", a.ID, ErrRecordNotFound)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// UpdateArtifact replaces an existing artifact record
func (s *FileStore) UpdateArtifact(_ context.Context, a *types.ArtifactRecord) error {
	return s.mutate(func(env *Envelope) error {
		for i := range env.Artifacts {
			if env.Artifacts[i].ID == a.ID {
				env.Artifacts[i] = *a
				return nil
			}
		}
		return fmt.Errorf("artifact %s: %w", a.ID, ErrRecordNotFound)
	})
}

// GetArtifact retrieves an artifact by ID
func (s *FileStore) GetArtifact(_ context.Context, id string) (*types.ArtifactRecord, error) {
	env, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range env.Artifacts {
		if env.Artifacts[i].ID == id {
			a := env.Artifacts[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("artifact %s: %w", id, ErrRecordNotFound)
}

// ListArtifacts returns artifacts matching filters, oldest first
func (s *FileStore) ListArtifacts(_ context.Context, filters ArtifactFilters) ([]types.ArtifactRecord, error) {
	env, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []types.ArtifactRecord
	for i := range env.Artifacts {
		if matchesArtifact(&env.Artifacts[i], filters) {
			out = append(out, env.Artifacts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateDeliverableJSON appends an immutable deliverable JSON record
func (s *FileStore) CreateDeliverableJSON(_ context.Context, r *types.DeliverableJSONRecord) error {
	return s.mutate(func(env *Envelope) error {
		for i := range env.JSONPayloads {
			if env.JSONPayloads[i].ID == r.ID {
				return fmt.Errorf("deliverable json %s already exists", r.ID)
			}
		}
		env.JSONPayloads = append(env.JSONPayloads, *r)
		return nil
	})
}

// GetDeliverableJSON retrieves a deliverable JSON record by ID
func (s *FileStore) GetDeliverableJSON(_ context.Context, id string) (*types.DeliverableJSONRecord, error) {
	env, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range env.JSONPayloads {
		if env.JSONPayloads[i].ID == id {
			r := env.JSONPayloads[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("deliverable json %s: %w", id, ErrRecordNotFound)
}

// AppendJobLog appends a job log entry
func (s *FileStore) AppendJobLog(_ context.Context, entry *types.JobLogRecord) error {
	return s.mutate(func(env *Envelope) error {
		env.Jobs = append(env.Jobs, *entry)
		return nil
	})
}

// CloseJobLog sets FinishedAt on the latest open entry for (jobID, stage)
func (s *FileStore) CloseJobLog(_ context.Context, jobID string, stage types.JobStage, finishedAt time.Time) error {
	return s.mutate(func(env *Envelope) error {
		for i := len(env.Jobs) - 1; i >= 0; i-- {
			entry := &env.Jobs[i]
			if entry.JobID == jobID && entry.Stage == stage && entry.FinishedAt == nil {
				t := finishedAt
				entry.FinishedAt = &t
				return nil
			}
		}
		return fmt.Errorf("open %s log for job %s: %w", stage, jobID, ErrRecordNotFound)
	})
}

// ListJobLogs returns the log entries of a job in append order
func (s *FileStore) ListJobLogs(_ context.Context, jobID string) ([]types.JobLogRecord, error) {
	env, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []types.JobLogRecord
	for _, entry := range env.Jobs {
		if entry.JobID == jobID {
			out = append(out, entry)
		}
	}
	return out, nil
}
