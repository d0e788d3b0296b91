package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/deliverable-builder/internal/types"
)

// schemaSQL creates the record tables if they are missing
const schemaSQL = `
CREATE TABLE IF NOT EXISTS materials (
	id               TEXT PRIMARY KEY,
	assignment_id    TEXT NOT NULL,
	external_file_id TEXT NOT NULL,
	filename         TEXT NOT NULL DEFAULT '',
	mime             TEXT NOT NULL DEFAULT '',
	byte_length      BIGINT NOT NULL DEFAULT 0,
	sha256           TEXT NOT NULL DEFAULT '',
	storage_key      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	error_code       TEXT,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (assignment_id, external_file_id)
);
CREATE TABLE IF NOT EXISTS deliverable_json (
	id                TEXT PRIMARY KEY,
	assignment_id     TEXT NOT NULL,
	artifact_group_id TEXT NOT NULL,
	payload           JSONB NOT NULL,
	sha256            TEXT NOT NULL,
	storage_key       TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS artifacts (
	id                TEXT PRIMARY KEY,
	assignment_id     TEXT NOT NULL,
	artifact_group_id TEXT NOT NULL,
	type              TEXT NOT NULL,
	status            TEXT NOT NULL,
	sha256            TEXT NOT NULL,
	mime              TEXT NOT NULL,
	byte_length       BIGINT NOT NULL,
	page_count        INTEGER,
	paragraph_count   INTEGER,
	text_length       INTEGER,
	error_code        TEXT,
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL,
	validated_at      TIMESTAMPTZ,
	signed_url        TEXT,
	storage_key       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS job_logs (
	seq         BIGSERIAL PRIMARY KEY,
	job_id      TEXT NOT NULL,
	stage       TEXT NOT NULL,
	message     TEXT NOT NULL,
	error_code  TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS job_logs_job_id_idx ON job_logs (job_id, seq);
`

const artifactColumns = `id, assignment_id, artifact_group_id, type, status, sha256, mime, byte_length,
	page_count, paragraph_count, text_length, error_code, error_message, created_at,
	validated_at, signed_url, storage_key`

const materialColumns = `id, assignment_id, external_file_id, filename, mime, byte_length, sha256,
	storage_key, status, error_code, error_message, created_at, updated_at`

// PostgresStore implements Store on a PostgreSQL connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and ensures the schema exists
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// UpsertMaterial inserts or replaces the material keyed by (assignment_id, external_file_id).
// Content columns are frozen once a row has a sha256; m is updated to the stored values.
func (s *PostgresStore) UpsertMaterial(ctx context.Context, m *types.MaterialRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO materials (`+materialColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (assignment_id, external_file_id) DO UPDATE SET
		   filename    = CASE WHEN materials.sha256 = '' THEN EXCLUDED.filename ELSE materials.filename END,
		   mime        = CASE WHEN materials.sha256 = '' THEN EXCLUDED.mime ELSE materials.mime END,
		   byte_length = CASE WHEN materials.sha256 = '' THEN EXCLUDED.byte_length ELSE materials.byte_length END,
		   storage_key = CASE WHEN materials.sha256 = '' THEN EXCLUDED.storage_key ELSE materials.storage_key END,
		   sha256      = CASE WHEN materials.sha256 = '' THEN EXCLUDED.sha256 ELSE materials.sha256 END,
		   status = EXCLUDED.status, error_code = EXCLUDED.error_code,
		   error_message = EXCLUDED.error_message, updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, filename, mime, byte_length, sha256, storage_key`,
		m.ID, m.AssignmentID, m.ExternalFileID, m.Filename, m.MIME, m.ByteLength, m.SHA256,
		m.StorageKey, string(m.Status), m.ErrorCode, m.ErrorMessage, m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID, &m.CreatedAt, &m.Filename, &m.MIME, &m.ByteLength, &m.SHA256, &m.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to upsert material: %w", err)
	}
	return nil
}

func scanMaterial(row pgx.Row) (*types.MaterialRecord, error) {
	var m types.MaterialRecord
	var status string
	err := row.Scan(&m.ID, &m.AssignmentID, &m.ExternalFileID, &m.Filename, &m.MIME, &m.ByteLength,
		&m.SHA256, &m.StorageKey, &status, &m.ErrorCode, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = types.MaterialStatus(status)
	return &m, nil
}

// GetMaterial retrieves a material by ID
func (s *PostgresStore) GetMaterial(ctx context.Context, id string) (*types.MaterialRecord, error) {
	m, err := scanMaterial(s.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("material %s: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return m, nil
}

// FindMaterial retrieves a material by its application-level key
func (s *PostgresStore) FindMaterial(ctx context.Context, assignmentID, externalFileID string) (*types.MaterialRecord, error) {
	m, err := scanMaterial(s.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE assignment_id = $1 AND external_file_id = $2`,
		assignmentID, externalFileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("material %s/%s: %w", assignmentID, externalFileID, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to find material: %w", err)
	}
	return m, nil
}

// CreateArtifact inserts a new artifact record
func (s *PostgresStore) CreateArtifact(ctx context.Context, a *types.ArtifactRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.AssignmentID, a.ArtifactGroupID, string(a.Type), string(a.Status), a.SHA256, a.MIME,
		a.ByteLength, a.PageCount, a.ParagraphCount, a.TextLength, a.ErrorCode, a.ErrorMessage,
		a.CreatedAt, a.ValidatedAt, a.SignedURL, a.StorageKey,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

// FinalizeArtifact writes the verdict fields while the row is still pending
func (s *PostgresStore) FinalizeArtifact(ctx context.Context, a *types.ArtifactRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE artifacts SET status = $2, page_count = $3, paragraph_count = $4, text_length = $5,
		   error_code = $6, error_message = $7, validated_at = $8, signed_url = $9
		 WHERE id = $1 AND status = 'pending'`,
		a.ID, string(a.Status), a.PageCount, a.ParagraphCount, a.TextLength,
		a.ErrorCode, a.ErrorMessage, a.ValidatedAt, a.SignedURL,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize artifact: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.GetArtifact(ctx, a.ID); err != nil {
		return false, err
	}
	return false, nil
}

// UpdateArtifact replaces the mutable fields of an artifact record
func (s *PostgresStore) UpdateArtifact(ctx context.Context, a *types.ArtifactRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE artifacts SET status = $2, page_count = $3, paragraph_count = $4, text_length = $5,
		   error_code = $6, error_message = $7, validated_at = $8, signed_url = $9
		 WHERE id = $1`,
		a.ID, string(a.Status), a.PageCount, a.ParagraphCount, a.TextLength,
		a.ErrorCode, a.ErrorMessage, a.ValidatedAt, a.SignedURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("artifact %s: %w", a.ID, ErrRecordNotFound)
	}
	return nil
}

func scanArtifact(row pgx.Row) (*types.ArtifactRecord, error) {
	var a types.ArtifactRecord
	var typ, status string
	err := row.Scan(&a.ID, &a.AssignmentID, &a.ArtifactGroupID, &typ, &status, &a.SHA256, &a.MIME,
		&a.ByteLength, &a.PageCount, &a.ParagraphCount, &a.TextLength, &a.ErrorCode, &a.ErrorMessage,
		&a.CreatedAt, &a.ValidatedAt, &a.SignedURL, &a.StorageKey)
	if err != nil {
		return nil, err
	}
	a.Type = types.ArtifactType(typ)
	a.Status = types.ArtifactStatus(status)
	return &a, nil
}

// GetArtifact retrieves an artifact by ID
func (s *PostgresStore) GetArtifact(ctx context.Context, id string) (*types.ArtifactRecord, error) {
	a, err := scanArtifact(s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("artifact %s: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts retrieves artifacts with optional filters
func (s *PostgresStore) ListArtifacts(ctx context.Context, filters ArtifactFilters) ([]types.ArtifactRecord, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.AssignmentID != "" {
		query += fmt.Sprintf(" AND assignment_id = $%d", argNum)
		args = append(args, filters.AssignmentID)
		argNum++
	}
	if filters.ArtifactGroupID != "" {
		query += fmt.Sprintf(" AND artifact_group_id = $%d", argNum)
		args = append(args, filters.ArtifactGroupID)
		argNum++
	}
	if filters.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(filters.Type))
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []types.ArtifactRecord
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateDeliverableJSON inserts an immutable deliverable JSON record
func (s *PostgresStore) CreateDeliverableJSON(ctx context.Context, r *types.DeliverableJSONRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deliverable_json (id, assignment_id, artifact_group_id, payload, sha256, storage_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.AssignmentID, r.ArtifactGroupID, []byte(r.Payload), r.SHA256, r.StorageKey, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deliverable json: %w", err)
	}
	return nil
}

// GetDeliverableJSON retrieves a deliverable JSON record by ID
func (s *PostgresStore) GetDeliverableJSON(ctx context.Context, id string) (*types.DeliverableJSONRecord, error) {
	var r types.DeliverableJSONRecord
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, assignment_id, artifact_group_id, payload, sha256, storage_key, created_at
		 FROM deliverable_json WHERE id = $1`, id,
	).Scan(&r.ID, &r.AssignmentID, &r.ArtifactGroupID, &payload, &r.SHA256, &r.StorageKey, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deliverable json %s: %w", id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get deliverable json: %w", err)
	}
	r.Payload = payload
	return &r, nil
}

// AppendJobLog appends a job log entry
func (s *PostgresStore) AppendJobLog(ctx context.Context, entry *types.JobLogRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_logs (job_id, stage, message, error_code, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.JobID, string(entry.Stage), entry.Message, entry.ErrorCode, entry.StartedAt, entry.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	return nil
}

// CloseJobLog sets finished_at on the latest open entry for (jobID, stage)
func (s *PostgresStore) CloseJobLog(ctx context.Context, jobID string, stage types.JobStage, finishedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_logs SET finished_at = $3
		 WHERE seq = (
		   SELECT seq FROM job_logs
		   WHERE job_id = $1 AND stage = $2 AND finished_at IS NULL
		   ORDER BY seq DESC LIMIT 1
		 )`,
		jobID, string(stage), finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to close job log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("open %s log for job %s: %w", stage, jobID, ErrRecordNotFound)
	}
	return nil
}

// ListJobLogs returns the log entries of a job in append order
func (s *PostgresStore) ListJobLogs(ctx context.Context, jobID string) ([]types.JobLogRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, stage, message, error_code, started_at, finished_at
		 FROM job_logs WHERE job_id = $1 ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job logs: %w", err)
	}
	defer rows.Close()

	var out []types.JobLogRecord
	for rows.Next() {
		var entry types.JobLogRecord
		var stage string
		if err := rows.Scan(&entry.JobID, &stage, &entry.Message, &entry.ErrorCode, &entry.StartedAt, &entry.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job log: %w", err)
		}
		entry.Stage = types.JobStage(stage)
		out = append(out, entry)
	}
	return out, rows.Err()
}
