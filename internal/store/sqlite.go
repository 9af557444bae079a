// Package store persists users, monitoring sessions and entries in
// SQLite. Calendar dates are stored as YYYY-MM-DD text so a day written
// from any timezone reads back as the same day.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash BLOB NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	medication_name TEXT NOT NULL,
	dosage          TEXT NOT NULL,
	intake_times    TEXT NOT NULL,
	monitoring_from TEXT NOT NULL,
	monitoring_to   TEXT NOT NULL,
	is_locked       INTEGER NOT NULL DEFAULT 1,
	stopped_at      DATETIME,
	created_at      DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	type         TEXT NOT NULL,
	date         TEXT NOT NULL,
	period_start TEXT NOT NULL,
	answers      TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
	UNIQUE (session_id, type, period_start)
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_entries_session_date ON entries(session_id, date);
`

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// --- users and tokens ---

// CreateUser inserts a new account. The email must be unused.
func (s *Store) CreateUser(email, name string, passwordHash []byte) (*domain.User, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.Exec(
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		id, email, name, passwordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s is already registered", email)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &domain.User{ID: id, Email: email, Name: name, CreatedAt: now}, nil
}

// UserByEmail returns the account and its password hash, or nil if the
// email is unknown
func (s *Store) UserByEmail(email string) (*domain.User, []byte, error) {
	var u domain.User
	var hash []byte
	err := s.db.QueryRow(
		"SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?",
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &hash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, hash, nil
}

// UserByID returns the account, or nil if unknown
func (s *Store) UserByID(id string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(
		"SELECT id, email, name, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// InsertToken persists an issued bearer token
func (s *Store) InsertToken(token, userID string, expiresAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO auth_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// UserByToken resolves a bearer token to its account; nil if the token
// is unknown or expired at the given instant
func (s *Store) UserByToken(token string, now time.Time) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(`
		SELECT u.id, u.email, u.name, u.created_at
		FROM users u
		JOIN auth_tokens t ON t.user_id = u.id
		WHERE t.token = ? AND t.expires_at > ?
	`, token, now).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	return &u, nil
}

// DeleteToken revokes a bearer token
func (s *Store) DeleteToken(token string) error {
	if _, err := s.db.Exec("DELETE FROM auth_tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// --- sessions ---

const sessionColumns = "id, user_id, medication_name, dosage, intake_times, monitoring_from, monitoring_to, is_locked, stopped_at, created_at"

func scanSession(row interface {
	Scan(dest ...interface{}) error
}) (*domain.MonitoringSession, error) {
	var sess domain.MonitoringSession
	var intakeTimes, from, to string
	var stoppedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.MedicationName, &sess.Dosage,
		&intakeTimes, &from, &to, &sess.IsLocked, &stoppedAt, &sess.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(intakeTimes), &sess.IntakeTimes); err != nil {
		return nil, fmt.Errorf("decode intake times: %w", err)
	}
	if sess.MonitoringFrom, err = dateutil.ParseDate(from); err != nil {
		return nil, err
	}
	if sess.MonitoringTo, err = dateutil.ParseDate(to); err != nil {
		return nil, err
	}
	if stoppedAt.Valid {
		sess.StoppedAt = &stoppedAt.Time
	}
	return &sess, nil
}

// CreateSession inserts a new locked session for its user. The
// active-session check and the insert run in one immediate
// transaction; SQLite's single writer makes the pair atomic, so two
// racing creates cannot both succeed.
func (s *Store) CreateSession(sess *domain.MonitoringSession, today time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM sessions WHERE user_id = ? AND is_locked = 1 AND stopped_at IS NULL AND monitoring_to >= ?",
		sess.UserID, dateutil.FormatDate(today),
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("check active session: %w", err)
	}
	if active > 0 {
		return domain.ErrSessionConflict
	}

	intakeTimes, err := json.Marshal(sess.IntakeTimes)
	if err != nil {
		return fmt.Errorf("encode intake times: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sess.ID, sess.UserID, sess.MedicationName, sess.Dosage, string(intakeTimes),
		dateutil.FormatDate(sess.MonitoringFrom), dateutil.FormatDate(sess.MonitoringTo),
		sess.IsLocked, nil, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return tx.Commit()
}

// ActiveSession returns the user's session that is locked, not stopped
// and not past its end date, newest first; nil if none qualifies.
func (s *Store) ActiveSession(userID string, today time.Time) (*domain.MonitoringSession, error) {
	sess, err := scanSession(s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? AND is_locked = 1 AND stopped_at IS NULL AND monitoring_to >= ? ORDER BY created_at DESC LIMIT 1",
		userID, dateutil.FormatDate(today),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return sess, nil
}

// SessionByID returns the session if it belongs to the user, nil
// otherwise
func (s *Store) SessionByID(userID, id string) (*domain.MonitoringSession, error) {
	sess, err := scanSession(s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ? AND user_id = ?",
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns every session owned by the user, newest-created
// first, with its entry count. IsActive is left for the caller to
// derive.
func (s *Store) ListSessions(userID string) ([]domain.SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT `+sessionColumns+`,
			(SELECT COUNT(*) FROM entries e WHERE e.session_id = sessions.id)
		FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []domain.SessionSummary
	for rows.Next() {
		var sum domain.SessionSummary
		var intakeTimes, from, to string
		var stoppedAt sql.NullTime

		err := rows.Scan(
			&sum.ID, &sum.UserID, &sum.MedicationName, &sum.Dosage,
			&intakeTimes, &from, &to, &sum.IsLocked, &stoppedAt, &sum.CreatedAt,
			&sum.EntryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(intakeTimes), &sum.IntakeTimes); err != nil {
			return nil, fmt.Errorf("decode intake times: %w", err)
		}
		if sum.MonitoringFrom, err = dateutil.ParseDate(from); err != nil {
			return nil, err
		}
		if sum.MonitoringTo, err = dateutil.ParseDate(to); err != nil {
			return nil, err
		}
		if stoppedAt.Valid {
			sum.StoppedAt = &stoppedAt.Time
		}
		summaries = append(summaries, sum)
	}

	return summaries, nil
}

// StopSession sets the stop timestamp on the user's locked, not yet
// stopped session. Returns ErrSessionNotFound when nothing matched, so
// a second stop attempt is rejected rather than silently accepted.
func (s *Store) StopSession(userID, id string, now time.Time) error {
	res, err := s.db.Exec(
		"UPDATE sessions SET stopped_at = ? WHERE id = ? AND user_id = ? AND is_locked = 1 AND stopped_at IS NULL",
		now, id, userID,
	)
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// --- entries ---

// CreateEntry inserts an entry. The unique index on
// (session_id, type, period_start) is the authoritative guard against
// two submissions for the same period; a violation surfaces as
// DuplicateEntryError.
func (s *Store) CreateEntry(e *domain.Entry, periodStart time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO entries (id, session_id, type, date, period_start, answers, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.SessionID, string(e.Type), dateutil.FormatDate(e.Date),
		dateutil.FormatDate(periodStart), string(e.Answers), e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateEntryError{Type: e.Type, PeriodStart: periodStart}
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// EntriesBySession returns all entries for a session, newest date
// first
func (s *Store) EntriesBySession(sessionID string) ([]domain.Entry, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, type, date, answers, created_at FROM entries WHERE session_id = ? ORDER BY date DESC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

func scanEntry(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Entry, error) {
	var e domain.Entry
	var typ, date, answers string
	if err := row.Scan(&e.ID, &e.SessionID, &typ, &date, &answers, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = domain.EntryType(typ)
	var err error
	if e.Date, err = dateutil.ParseDate(date); err != nil {
		return nil, err
	}
	e.Answers = json.RawMessage(answers)
	return &e, nil
}

// WorkdayEntry returns the WORKDAY entry at the exact date, nil if
// none exists
func (s *Store) WorkdayEntry(sessionID string, date time.Time) (*domain.Entry, error) {
	e, err := scanEntry(s.db.QueryRow(
		"SELECT id, session_id, type, date, answers, created_at FROM entries WHERE session_id = ? AND type = ? AND date = ?",
		sessionID, string(domain.EntryTypeWorkday), dateutil.FormatDate(date),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workday entry: %w", err)
	}
	return e, nil
}

// WeekendEntry returns the WEEKEND entry whose date falls inside the
// Saturday/Sunday pair, nil if none exists
func (s *Store) WeekendEntry(sessionID string, saturday, sunday time.Time) (*domain.Entry, error) {
	e, err := scanEntry(s.db.QueryRow(
		"SELECT id, session_id, type, date, answers, created_at FROM entries WHERE session_id = ? AND type = ? AND date >= ? AND date <= ?",
		sessionID, string(domain.EntryTypeWeekend),
		dateutil.FormatDate(saturday), dateutil.FormatDate(sunday),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get weekend entry: %w", err)
	}
	return e, nil
}
