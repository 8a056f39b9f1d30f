package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/meetscribe/backend/internal/db/models"
)

// ErrNotFound is returned when no meeting exists for the given ID.
var ErrNotFound = errors.New("meeting not found")

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meetings (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		audio_ref TEXT NOT NULL,
		transcript TEXT,
		summary TEXT NOT NULL DEFAULT '',
		is_favorite INTEGER NOT NULL DEFAULT 0,
		uploaded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summary_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meeting_id TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (meeting_id) REFERENCES meetings(id)
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_uploaded ON meetings(uploaded_at DESC, seq ASC);
	CREATE INDEX IF NOT EXISTS idx_history_meeting ON summary_history(meeting_id, id);
	`
	_, err := d.db.Exec(schema)
	return err
}

// CreateMeeting inserts a new meeting. Any entries already present in
// m.SummaryHistory are written to the history table in the same transaction.
func (d *Database) CreateMeeting(m *models.Meeting) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var transcript sql.NullString
	if m.Transcript != "" {
		transcript = sql.NullString{String: m.Transcript, Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO meetings (id, title, owner_id, audio_ref, transcript, summary, is_favorite, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.OwnerID, m.AudioRef, transcript, m.Summary, boolToInt(m.IsFavorite), m.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}

	for _, s := range m.SummaryHistory {
		if _, err := tx.Exec(
			"INSERT INTO summary_history (meeting_id, summary) VALUES (?, ?)",
			m.ID, s,
		); err != nil {
			return fmt.Errorf("insert summary history: %w", err)
		}
	}

	return tx.Commit()
}

// GetMeeting returns a single meeting with its full summary history.
func (d *Database) GetMeeting(id string) (*models.Meeting, error) {
	m, err := d.scanMeeting(d.db.QueryRow(
		"SELECT id, title, owner_id, audio_ref, transcript, summary, is_favorite, uploaded_at FROM meetings WHERE id = ?",
		id,
	))
	if err != nil {
		return nil, err
	}

	history, err := d.loadHistory(id)
	if err != nil {
		return nil, err
	}
	m.SummaryHistory = history
	return m, nil
}

// ListMeetings returns all meetings sorted newest-first by upload time.
// Equal timestamps keep insertion order.
func (d *Database) ListMeetings() ([]*models.Meeting, error) {
	return d.listWhere("")
}

// ListFavorites returns favorited meetings, newest-first.
func (d *Database) ListFavorites() ([]*models.Meeting, error) {
	return d.listWhere("WHERE is_favorite = 1")
}

func (d *Database) listWhere(where string) ([]*models.Meeting, error) {
	rows, err := d.db.Query(fmt.Sprintf(
		"SELECT id, title, owner_id, audio_ref, transcript, summary, is_favorite, uploaded_at FROM meetings %s ORDER BY uploaded_at DESC, seq ASC",
		where,
	))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meetings := []*models.Meeting{}
	for rows.Next() {
		m, err := d.scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range meetings {
		history, err := d.loadHistory(m.ID)
		if err != nil {
			return nil, err
		}
		m.SummaryHistory = history
	}
	return meetings, nil
}

// UpdateFavorite sets the favorite flag and returns the updated meeting.
func (d *Database) UpdateFavorite(id string, isFavorite bool) (*models.Meeting, error) {
	res, err := d.db.Exec("UPDATE meetings SET is_favorite = ? WHERE id = ?", boolToInt(isFavorite), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return d.GetMeeting(id)
}

// UpdateSummary overwrites the current summary without touching history.
func (d *Database) UpdateSummary(id, summary string) (*models.Meeting, error) {
	res, err := d.db.Exec("UPDATE meetings SET summary = ? WHERE id = ?", summary, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return d.GetMeeting(id)
}

// AppendSummary atomically appends to the summary history and makes the new
// entry the current summary.
func (d *Database) AppendSummary(id, summary string) (*models.Meeting, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE meetings SET summary = ? WHERE id = ?", summary, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(
		"INSERT INTO summary_history (meeting_id, summary) VALUES (?, ?)",
		id, summary,
	); err != nil {
		return nil, fmt.Errorf("insert summary history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d.GetMeeting(id)
}

// SummaryInHistory reports whether the given text was ever appended to the
// meeting's summary history.
func (d *Database) SummaryInHistory(id, summary string) (bool, error) {
	var count int
	err := d.db.QueryRow(
		"SELECT COUNT(*) FROM summary_history WHERE meeting_id = ? AND summary = ?",
		id, summary,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetTranscript records the transcript for a meeting that was created without
// one. The transcript is written once and never overwritten.
func (d *Database) SetTranscript(id, transcript string) (*models.Meeting, error) {
	res, err := d.db.Exec(
		"UPDATE meetings SET transcript = ? WHERE id = ? AND transcript IS NULL",
		transcript, id,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := d.GetMeeting(id); err != nil {
			return nil, err
		}
		return nil, errors.New("transcript already set")
	}
	return d.GetMeeting(id)
}

// DeleteMeeting removes a meeting and its history, returning the deleted
// record so the caller can release the audio blob.
func (d *Database) DeleteMeeting(id string) (*models.Meeting, error) {
	m, err := d.GetMeeting(id)
	if err != nil {
		return nil, err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM summary_history WHERE meeting_id = ?", id); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM meetings WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Database) loadHistory(meetingID string) ([]string, error) {
	rows, err := d.db.Query(
		"SELECT summary FROM summary_history WHERE meeting_id = ? ORDER BY id ASC",
		meetingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		history = append(history, s)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanMeeting(row rowScanner) (*models.Meeting, error) {
	m := &models.Meeting{}
	var transcript sql.NullString
	var favorite int
	var uploadedAt time.Time

	err := row.Scan(&m.ID, &m.Title, &m.OwnerID, &m.AudioRef, &transcript, &m.Summary, &favorite, &uploadedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if transcript.Valid {
		m.Transcript = transcript.String
	}
	m.IsFavorite = favorite != 0
	m.UploadedAt = uploadedAt
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying sql.DB for use in tests.
func (d *Database) DB() *sql.DB {
	return d.db
}
