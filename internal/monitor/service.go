// Package monitor implements the diary's business rules: when a
// monitoring session is active, which dates are legal for which entry
// type, and the one-entry-per-period invariant.
package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/domain"
	"github.com/mweber/meddiary/internal/store"
	"github.com/mweber/meddiary/internal/validate"
)

// Service gates session lifecycle and entry recording for
// authenticated users. Callers supply user identity; the service never
// authenticates.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// New creates a Service using the wall clock
func New(st *store.Store) *Service {
	return NewWithClock(st, time.Now)
}

// NewWithClock creates a Service with an injected clock
func NewWithClock(st *store.Store, now func() time.Time) *Service {
	return &Service{store: st, now: now}
}

func (s *Service) today() time.Time {
	return dateutil.NormalizeDay(s.now())
}

// ActiveSession returns the user's session that is locked, not stopped
// and whose end date has not passed; nil if none.
func (s *Service) ActiveSession(userID string) (*domain.MonitoringSession, error) {
	return s.store.ActiveSession(userID, s.today())
}

// CreateAndStartSession validates the form, rejects it when an active
// session already exists, and persists a new locked session with
// midnight-normalized dates.
func (s *Service) CreateAndStartSession(userID string, in validate.SessionInput) (*domain.MonitoringSession, error) {
	from, to, errs := validate.Session(in)
	if !errs.Empty() {
		return nil, &domain.ValidationError{Fields: errs}
	}

	// Fast-path check; the store repeats it atomically with the insert
	existing, err := s.ActiveSession(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSessionConflict
	}

	sess := &domain.MonitoringSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		MedicationName: in.MedicationName,
		Dosage:         in.Dosage,
		IntakeTimes:    in.IntakeTimes,
		MonitoringFrom: from,
		MonitoringTo:   to,
		IsLocked:       true,
		CreatedAt:      s.now(),
	}

	if err := s.store.CreateSession(sess, s.today()); err != nil {
		return nil, err
	}
	return sess, nil
}

// StopSession sets the stop timestamp on the user's session.
// Irreversible; a second attempt fails with ErrSessionNotFound.
func (s *Service) StopSession(userID, sessionID string) error {
	return s.store.StopSession(userID, sessionID, s.now())
}

// SessionByID returns the session with its full entry history, newest
// entry first, decorated with the derived active flag; nil if the
// session does not belong to the user.
func (s *Service) SessionByID(userID, sessionID string) (*domain.SessionDetail, error) {
	sess, err := s.store.SessionByID(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	entries, err := s.store.EntriesBySession(sess.ID)
	if err != nil {
		return nil, err
	}

	return &domain.SessionDetail{
		MonitoringSession: *sess,
		IsActive:          sess.IsActive(s.today()),
		Entries:           entries,
	}, nil
}

// Sessions returns every session owned by the user, newest-created
// first, each with its entry count and derived active flag
func (s *Service) Sessions(userID string) ([]domain.SessionSummary, error) {
	summaries, err := s.store.ListSessions(userID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	for i := range summaries {
		summaries[i].IsActive = summaries[i].MonitoringSession.IsActive(today)
	}
	return summaries, nil
}

// activeSessionOrErr loads the active session required by every entry
// operation
func (s *Service) activeSessionOrErr(userID string) (*domain.MonitoringSession, error) {
	sess, err := s.ActiveSession(userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrNoActiveSession
	}
	return sess, nil
}

// SaveWorkdayEntry validates a workday questionnaire against the
// active session's window and records it, one entry per weekday.
func (s *Service) SaveWorkdayEntry(userID string, in validate.WorkdayInput) (*domain.Entry, error) {
	sess, err := s.activeSessionOrErr(userID)
	if err != nil {
		return nil, err
	}

	schema := validate.NewWorkdaySchema(sess.MonitoringFrom, sess.EffectiveEnd())
	date, answers, errs := schema.Validate(in)
	if !errs.Empty() {
		return nil, &domain.ValidationError{Fields: errs}
	}

	// Fast-path duplicate check; the unique index is the real guard
	existing, err := s.store.WorkdayEntry(sess.ID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.DuplicateEntryError{Type: domain.EntryTypeWorkday, PeriodStart: date}
	}

	return s.createEntry(sess.ID, domain.EntryTypeWorkday, date, date, answers)
}

// SaveWeekendEntry validates a weekend questionnaire against the
// active session's window and records it, one entry per
// Saturday/Sunday pair. The pair containing the submitted date is the
// deduplication key.
func (s *Service) SaveWeekendEntry(userID string, in validate.WeekendInput) (*domain.Entry, error) {
	sess, err := s.activeSessionOrErr(userID)
	if err != nil {
		return nil, err
	}

	schema := validate.NewWeekendSchema(sess.MonitoringFrom, sess.EffectiveEnd())
	date, answers, errs := schema.Validate(in)
	if !errs.Empty() {
		return nil, &domain.ValidationError{Fields: errs}
	}

	saturday, sunday := dateutil.WeekendWindowOf(date)
	existing, err := s.store.WeekendEntry(sess.ID, saturday, sunday)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.DuplicateEntryError{Type: domain.EntryTypeWeekend, PeriodStart: saturday}
	}

	return s.createEntry(sess.ID, domain.EntryTypeWeekend, date, saturday, answers)
}

func (s *Service) createEntry(sessionID string, typ domain.EntryType, date, periodStart time.Time, answers interface{}) (*domain.Entry, error) {
	payload, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	entry := &domain.Entry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      typ,
		Date:      date,
		Answers:   payload,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateEntry(entry, periodStart); err != nil {
		return nil, err
	}
	return entry, nil
}

// WorkdayEntry returns the user's WORKDAY entry at the given date, nil
// if none was submitted. Used by form pages to show an already
// submitted day read-only.
func (s *Service) WorkdayEntry(userID, sessionID string, date time.Time) (*domain.Entry, error) {
	sess, err := s.store.SessionByID(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s.store.WorkdayEntry(sess.ID, dateutil.NormalizeDay(date))
}

// WeekendEntry returns the user's WEEKEND entry for the current
// weekend window, nil if none was submitted yet
func (s *Service) WeekendEntry(userID, sessionID string) (*domain.Entry, error) {
	sess, err := s.store.SessionByID(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	saturday, sunday := dateutil.CurrentWeekendWindow(s.now())
	return s.store.WeekendEntry(sess.ID, saturday, sunday)
}

// Analytics aggregates a session's entries for the chart and export
// views: arithmetic means of the workday sliders, the dated series,
// and weekend rating counts.
func (s *Service) Analytics(userID, sessionID string) (*domain.AnalyticsSummary, error) {
	sess, err := s.store.SessionByID(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}

	entries, err := s.store.EntriesBySession(sess.ID)
	if err != nil {
		return nil, err
	}

	summary := &domain.AnalyticsSummary{
		SessionID:     sess.ID,
		Means:         map[string]float64{},
		WeeklyRatings: map[string]int{},
	}

	sums := map[string]int{}
	// Entries arrive newest first; the series reads oldest first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.Type {
		case domain.EntryTypeWorkday:
			var a domain.WorkdayAnswers
			if err := json.Unmarshal(e.Answers, &a); err != nil {
				return nil, fmt.Errorf("decode workday answers: %w", err)
			}
			ratings := a.Ratings()
			for field, v := range ratings {
				sums[field] += v
			}
			summary.Series = append(summary.Series, domain.WorkdayPoint{Date: e.Date, Ratings: ratings})
			summary.WorkdayCount++
		case domain.EntryTypeWeekend:
			var a domain.WeekendAnswers
			if err := json.Unmarshal(e.Answers, &a); err != nil {
				return nil, fmt.Errorf("decode weekend answers: %w", err)
			}
			summary.WeeklyRatings[a.WeeklyRating]++
			summary.WeekendCount++
		}
	}

	if summary.WorkdayCount > 0 {
		for _, field := range domain.WorkdayRatingFields {
			summary.Means[field] = float64(sums[field]) / float64(summary.WorkdayCount)
		}
	}

	return summary, nil
}
