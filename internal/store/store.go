// Package store is the relational datastore boundary: it reads candidate
// registration records and upserts finalized interview records.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ai-interview-service/internal/contract"
	"ai-interview-service/internal/models"
)

// Store is a SQLite-backed datastore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return New(db)
}

// New creates the tables if they don't exist and returns a Store backed by
// the provided *sql.DB.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candidates (
			id                    TEXT PRIMARY KEY,
			full_name             TEXT NOT NULL,
			target_role           TEXT NOT NULL,
			years_of_experience   INTEGER NOT NULL DEFAULT 0,
			expected_salary       INTEGER NOT NULL DEFAULT 0,
			has_field_experience  INTEGER NOT NULL DEFAULT 0,
			proximity_to_branch   TEXT,
			can_start_immediately TEXT,
			academic_status       TEXT,
			form_data             TEXT
		)
	`); err != nil {
		return nil, fmt.Errorf("create candidates table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS interviews (
			session_id       TEXT PRIMARY KEY,
			candidate_id     TEXT NOT NULL,
			status           TEXT NOT NULL,
			started_at       TEXT NOT NULL,
			duration_seconds REAL NOT NULL DEFAULT 0,
			transcript       TEXT NOT NULL DEFAULT '[]',
			inconsistencies  TEXT NOT NULL DEFAULT '[]',
			assessment       TEXT
		)
	`); err != nil {
		return nil, fmt.Errorf("create interviews table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_interviews_candidate
		ON interviews (candidate_id, started_at)
	`); err != nil {
		return nil, fmt.Errorf("create interviews index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetRegistration fetches one registration record by candidate identifier.
// Returns contract.ErrNotFound when no row exists. Raw form fields are
// validated (well-formed JSON object) here, at the datastore boundary only.
func (s *Store) GetRegistration(ctx context.Context, candidateID string) (*models.RegistrationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, target_role, years_of_experience, expected_salary,
		       has_field_experience, proximity_to_branch, can_start_immediately,
		       academic_status, form_data
		FROM candidates WHERE id = ?`, candidateID)

	var (
		rec       models.RegistrationRecord
		fieldExp  int
		proximity sql.NullString
		start     sql.NullString
		academic  sql.NullString
		formData  sql.NullString
	)
	err := row.Scan(&rec.CandidateID, &rec.FullName, &rec.TargetRole,
		&rec.YearsOfExperience, &rec.ExpectedSalary, &fieldExp,
		&proximity, &start, &academic, &formData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: candidate %s", contract.ErrNotFound, candidateID)
	}
	if err != nil {
		return nil, fmt.Errorf("query registration: %w", err)
	}

	rec.HasFieldExperience = fieldExp != 0
	rec.ProximityToBranch = proximity.String
	rec.CanStartImmediately = start.String
	rec.AcademicStatus = academic.String

	if formData.Valid && strings.TrimSpace(formData.String) != "" {
		if err := json.Unmarshal([]byte(formData.String), &rec.Extra); err != nil {
			return nil, fmt.Errorf("%w: malformed raw form data: %v", contract.ErrValidation, err)
		}
	}

	return &rec, nil
}

// InsertRegistration writes a registration record. Used by intake ingestion
// and tests.
func (s *Store) InsertRegistration(ctx context.Context, rec *models.RegistrationRecord) error {
	var formData any
	if rec.Extra != nil {
		raw, err := json.Marshal(rec.Extra)
		if err != nil {
			return fmt.Errorf("marshal raw form data: %w", err)
		}
		formData = string(raw)
	}

	fieldExp := 0
	if rec.HasFieldExperience {
		fieldExp = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates
			(id, full_name, target_role, years_of_experience, expected_salary,
			 has_field_experience, proximity_to_branch, can_start_immediately,
			 academic_status, form_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name=excluded.full_name,
			target_role=excluded.target_role,
			years_of_experience=excluded.years_of_experience,
			expected_salary=excluded.expected_salary,
			has_field_experience=excluded.has_field_experience,
			proximity_to_branch=excluded.proximity_to_branch,
			can_start_immediately=excluded.can_start_immediately,
			academic_status=excluded.academic_status,
			form_data=excluded.form_data`,
		rec.CandidateID, rec.FullName, rec.TargetRole, rec.YearsOfExperience,
		rec.ExpectedSalary, fieldExp, rec.ProximityToBranch,
		rec.CanStartImmediately, rec.AcademicStatus, formData)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// UpsertInterview writes one interview record keyed by session identifier.
func (s *Store) UpsertInterview(ctx context.Context, rec *models.InterviewRecord) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	inconsistencies, err := json.Marshal(rec.Inconsistencies)
	if err != nil {
		return fmt.Errorf("marshal inconsistencies: %w", err)
	}
	var assessment any
	if rec.Assessment != nil {
		raw, err := json.Marshal(rec.Assessment)
		if err != nil {
			return fmt.Errorf("marshal assessment: %w", err)
		}
		assessment = string(raw)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interviews
			(session_id, candidate_id, status, started_at, duration_seconds,
			 transcript, inconsistencies, assessment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status=excluded.status,
			duration_seconds=excluded.duration_seconds,
			transcript=excluded.transcript,
			inconsistencies=excluded.inconsistencies,
			assessment=COALESCE(excluded.assessment, interviews.assessment)`,
		rec.SessionID, rec.CandidateID, string(rec.Status),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationSeconds, string(transcript), string(inconsistencies), assessment)
	if err != nil {
		return fmt.Errorf("upsert interview: %w", err)
	}
	return nil
}

// GetInterview fetches one interview record by session identifier.
func (s *Store) GetInterview(ctx context.Context, sessionID string) (*models.InterviewRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, candidate_id, status, started_at, duration_seconds,
		       transcript, inconsistencies, assessment
		FROM interviews WHERE session_id = ?`, sessionID)

	var (
		rec             models.InterviewRecord
		status          string
		startedAt       string
		transcript      string
		inconsistencies string
		assessment      sql.NullString
	)
	err := row.Scan(&rec.SessionID, &rec.CandidateID, &status, &startedAt,
		&rec.DurationSeconds, &transcript, &inconsistencies, &assessment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", contract.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query interview: %w", err)
	}

	rec.Status = models.InterviewStatus(status)
	if err := rec.StartedAt.UnmarshalText([]byte(startedAt)); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if err := json.Unmarshal([]byte(transcript), &rec.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(inconsistencies), &rec.Inconsistencies); err != nil {
		return nil, fmt.Errorf("decode inconsistencies: %w", err)
	}
	if assessment.Valid && assessment.String != "" {
		rec.Assessment = &models.CredibilityAssessment{}
		if err := json.Unmarshal([]byte(assessment.String), rec.Assessment); err != nil {
			return nil, fmt.Errorf("decode assessment: %w", err)
		}
	}

	return &rec, nil
}
