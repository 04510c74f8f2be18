// Package store provides implementations of the participant record store:
// a SQLite store for production and an in-memory store for tests and local
// development.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/audiopanel/adstudy/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS participants (
	participant_id     TEXT PRIMARY KEY,
	condition          TEXT NOT NULL,
	created_at         TIMESTAMP NOT NULL,
	audio_status       TEXT NOT NULL DEFAULT 'pending',
	audio_path         TEXT,
	audio_error        TEXT,
	audio_generated_at TIMESTAMP,
	qc_status          TEXT NOT NULL DEFAULT 'pending',
	qc_checked_at      TIMESTAMP,
	qc_notes           TEXT,
	qc_replacements    INTEGER NOT NULL DEFAULT 0,
	t0_completed_at    TIMESTAMP,
	t1_completed_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_participants_audio_status
	ON participants(audio_status, condition);
CREATE TABLE IF NOT EXISTS responses (
	id             TEXT PRIMARY KEY,
	participant_id TEXT NOT NULL,
	answers        TEXT NOT NULL,
	completed_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_participant
	ON responses(participant_id, completed_at);
`

const participantColumns = `participant_id, condition, created_at,
	audio_status, audio_path, audio_error, audio_generated_at,
	qc_status, qc_checked_at, qc_notes, qc_replacements,
	t0_completed_at, t1_completed_at`

// SQLiteStore implements core.RecordStore over a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at '%s': %w", path, err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to apply schema: %w (close: %w)", err, closeErr)
		}

		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close sqlite database: %w", err)
	}

	return nil
}

// Get returns the record for id, or core.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE participant_id = ?`, id)

	participant, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query participant '%s': %w", id, err)
	}

	return participant, nil
}

// UpsertT0 creates the record for id or overwrites its condition and T0
// stamp. Audio and QC columns are deliberately absent from the conflict
// update so resubmission never erases generation or review state.
func (s *SQLiteStore) UpsertT0(ctx context.Context, id string, condition core.Condition, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants
			(participant_id, condition, created_at, audio_status, qc_status, qc_replacements, t0_completed_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			condition = excluded.condition,
			t0_completed_at = excluded.t0_completed_at`,
		id, string(condition), completedAt, string(core.AudioPending), string(core.QCPending), completedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert participant '%s': %w", id, err)
	}

	return nil
}

// Update applies the non-nil fields of upd to an existing record.
func (s *SQLiteStore) Update(ctx context.Context, id string, upd core.RecordUpdate) error {
	assignments := make([]string, 0, 7)
	args := make([]any, 0, 8)

	appendSet := func(column string, value any) {
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}

	if upd.AudioStatus != nil {
		appendSet("audio_status", string(*upd.AudioStatus))
	}

	if upd.AudioPath != nil {
		appendSet("audio_path", *upd.AudioPath)
	}

	if upd.AudioError != nil {
		appendSet("audio_error", nullableString(*upd.AudioError))
	}

	if upd.AudioGeneratedAt != nil {
		appendSet("audio_generated_at", *upd.AudioGeneratedAt)
	}

	if upd.QCStatus != nil {
		appendSet("qc_status", string(*upd.QCStatus))
	}

	if upd.QCCheckedAt != nil {
		appendSet("qc_checked_at", *upd.QCCheckedAt)
	}

	if upd.QCNotes != nil {
		appendSet("qc_notes", *upd.QCNotes)
	}

	if len(assignments) == 0 {
		return nil
	}

	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE participants SET `+strings.Join(assignments, ", ")+` WHERE participant_id = ?`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to update participant '%s': %w", id, err)
	}

	return requireRow(result, id)
}

// ListPending returns up to limit records awaiting generation for the given
// conditions.
func (s *SQLiteStore) ListPending(ctx context.Context, conditions []core.Condition, limit int) ([]core.Participant, error) {
	if len(conditions) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(conditions))
	args := make([]any, 0, len(conditions)+2)
	args = append(args, string(core.AudioPending))

	for _, c := range conditions {
		placeholders = append(placeholders, "?")
		args = append(args, string(c))
	}

	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants
		WHERE audio_status = ? AND condition IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY created_at LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending participants: %w", err)
	}

	return collectParticipants(rows)
}

// MarkLowGenerated bulk-updates every pending low record, stamping the
// shared path and clearing stale errors. Already-generated records are
// untouched, which makes batch re-runs a no-op for this arm.
func (s *SQLiteStore) MarkLowGenerated(ctx context.Context, path string, generatedAt time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE participants SET
			audio_status = ?,
			audio_path = ?,
			audio_generated_at = ?,
			audio_error = NULL
		WHERE condition = ? AND audio_status = ?`,
		string(core.AudioGenerated), path, generatedAt,
		string(core.ConditionLow), string(core.AudioPending))
	if err != nil {
		return 0, fmt.Errorf("failed to bulk-mark low participants generated: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count bulk-marked rows: %w", err)
	}

	return int(affected), nil
}

// ListQCQueue returns high-condition records with generated audio still
// awaiting review, newest generation first.
func (s *SQLiteStore) ListQCQueue(ctx context.Context) ([]core.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants
		WHERE condition = ? AND audio_status = ? AND qc_status IN (?, ?)
		ORDER BY audio_generated_at DESC`,
		string(core.ConditionHigh), string(core.AudioGenerated),
		string(core.QCPending), string(core.QCNeedsFix))
	if err != nil {
		return nil, fmt.Errorf("failed to list QC queue: %w", err)
	}

	return collectParticipants(rows)
}

// IncrementReplacements adds one to the replacement counter in a single
// statement, so concurrent replace calls cannot lose an increment.
func (s *SQLiteStore) IncrementReplacements(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE participants SET qc_replacements = qc_replacements + 1 WHERE participant_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment replacements for '%s': %w", id, err)
	}

	return requireRow(result, id)
}

// AppendResponse appends one survey response to the log.
func (s *SQLiteStore) AppendResponse(ctx context.Context, resp *core.SurveyResponse) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers for '%s': %w", resp.ParticipantID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (id, participant_id, answers, completed_at) VALUES (?, ?, ?, ?)`,
		resp.ID, resp.ParticipantID, string(answers), resp.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to append response for '%s': %w", resp.ParticipantID, err)
	}

	return nil
}

// ListResponses returns all responses for id, oldest first.
func (s *SQLiteStore) ListResponses(ctx context.Context, id string) ([]core.SurveyResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_id, answers, completed_at FROM responses
		WHERE participant_id = ? ORDER BY completed_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses for '%s': %w", id, err)
	}

	defer rows.Close()

	var responses []core.SurveyResponse

	for rows.Next() {
		var (
			resp    core.SurveyResponse
			answers string
		)

		err := rows.Scan(&resp.ID, &resp.ParticipantID, &answers, &resp.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}

		err = json.Unmarshal([]byte(answers), &resp.Answers)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
		}

		responses = append(responses, resp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}

	return responses, nil
}

// StampT1 sets the T1 completion timestamp for id.
func (s *SQLiteStore) StampT1(ctx context.Context, id string, completedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE participants SET t1_completed_at = ? WHERE participant_id = ?`, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to stamp T1 completion for '%s': %w", id, err)
	}

	return requireRow(result, id)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*core.Participant, error) {
	var (
		p                core.Participant
		conditionText    string
		audioStatusText  string
		qcStatusText     string
		audioPath        sql.NullString
		audioError       sql.NullString
		qcNotes          sql.NullString
		audioGeneratedAt sql.NullTime
		qcCheckedAt      sql.NullTime
		t0CompletedAt    sql.NullTime
		t1CompletedAt    sql.NullTime
	)

	err := row.Scan(&p.ID, &conditionText, &p.CreatedAt,
		&audioStatusText, &audioPath, &audioError, &audioGeneratedAt,
		&qcStatusText, &qcCheckedAt, &qcNotes, &p.QCReplacements,
		&t0CompletedAt, &t1CompletedAt)
	if err != nil {
		return nil, err
	}

	p.Condition = core.Condition(conditionText)
	p.AudioStatus = core.AudioStatus(audioStatusText)
	p.QCStatus = core.QCStatus(qcStatusText)
	p.AudioPath = audioPath.String
	p.AudioError = audioError.String
	p.QCNotes = qcNotes.String
	p.AudioGeneratedAt = timePtr(audioGeneratedAt)
	p.QCCheckedAt = timePtr(qcCheckedAt)
	p.T0CompletedAt = timePtr(t0CompletedAt)
	p.T1CompletedAt = timePtr(t1CompletedAt)

	return &p, nil
}

func collectParticipants(rows *sql.Rows) ([]core.Participant, error) {
	defer rows.Close()

	var participants []core.Participant

	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}

		participants = append(participants, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participant rows: %w", err)
	}

	return participants, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count affected rows for '%s': %w", id, err)
	}

	if affected == 0 {
		return core.ErrNotFound
	}

	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time

	return &value
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
