package monitor

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/domain"
	"github.com/mweber/meddiary/internal/store"
	"github.com/mweber/meddiary/internal/validate"
)

// testClock lets tests move "now" during a scenario
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clock := &testClock{now: time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)}
	return NewWithClock(st, clock.Now), clock
}

func sessionInput() validate.SessionInput {
	return validate.SessionInput{
		MedicationName: "Medikinet",
		Dosage:         "10mg",
		IntakeTimes:    []string{"08:00"},
		MonitoringFrom: "2024-03-01",
		MonitoringTo:   "2024-03-21",
	}
}

func workdayInput(date string) validate.WorkdayInput {
	return validate.WorkdayInput{
		Date:      date,
		Attention: 3, Participation: 4, Homework: 2, Organisation: 3,
		Tiredness: 2, Sleep: 4, Concentration: 3,
		Mood: 4, Irritability: 2, Motivation: 3, Hobby: 4,
		SleepQuality: 3, Asleep: 3, Morning: 2, Appetite: 3,
	}
}

func weekendInput(date string) validate.WeekendInput {
	return validate.WeekendInput{
		Date:             date,
		WhatWasBetter:    "more focus",
		WhatWasDifficult: "evenings",
		SideEffects:      "none",
		Concentration:    domain.AnswerYes,
		StartingTasks:    domain.AnswerYes,
		LessTired:        domain.AnswerNo,
		MedicationHelps:  domain.AnswerYes,
		WeeklyRating:     domain.RatingClear,
	}
}

func startSession(t *testing.T, svc *Service, userID string) *domain.MonitoringSession {
	t.Helper()
	sess, err := svc.CreateAndStartSession(userID, sessionInput())
	if err != nil {
		t.Fatalf("CreateAndStartSession() error = %v", err)
	}
	return sess
}

func TestCreateAndStartSession(t *testing.T) {
	svc, _ := newTestService(t)

	sess := startSession(t, svc, "user-1")
	if !sess.IsLocked {
		t.Errorf("session not locked on creation")
	}
	if sess.StoppedAt != nil {
		t.Errorf("session created already stopped")
	}
	if dateutil.FormatDate(sess.MonitoringFrom) != "2024-03-01" {
		t.Errorf("from = %v, want 2024-03-01", sess.MonitoringFrom)
	}

	active, err := svc.ActiveSession("user-1")
	if err != nil || active == nil {
		t.Fatalf("ActiveSession() = (%v, %v), want session", active, err)
	}
	if active.ID != sess.ID {
		t.Errorf("ActiveSession() id = %s, want %s", active.ID, sess.ID)
	}
}

func TestCreateSessionValidationBeatsConflict(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "user-1")

	// An invalid date range fails VALIDATION regardless of the other
	// fields and before the conflict check
	in := sessionInput()
	in.MonitoringFrom = "2024-03-21"
	in.MonitoringTo = "2024-03-01"

	_, err := svc.CreateAndStartSession("user-1", in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateAndStartSession() error = %v, want ValidationError", err)
	}
	if len(verr.Fields["monitoring_to"]) == 0 {
		t.Errorf("validation fields = %v, want message on monitoring_to", verr.Fields)
	}
}

func TestCreateSessionConflict(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "user-1")

	_, err := svc.CreateAndStartSession("user-1", sessionInput())
	if !errors.Is(err, domain.ErrSessionConflict) {
		t.Errorf("CreateAndStartSession() error = %v, want ErrSessionConflict", err)
	}
}

func TestStopSessionIsFinal(t *testing.T) {
	svc, _ := newTestService(t)
	sess := startSession(t, svc, "user-1")

	if err := svc.StopSession("user-1", sess.ID); err != nil {
		t.Fatalf("StopSession() error = %v", err)
	}

	if err := svc.StopSession("user-1", sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second StopSession() error = %v, want ErrSessionNotFound", err)
	}

	active, err := svc.ActiveSession("user-1")
	if err != nil {
		t.Fatalf("ActiveSession() error = %v", err)
	}
	if active != nil {
		t.Errorf("session still active after stop")
	}
}

func TestSaveWorkdayEntry(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "user-1")

	entry, err := svc.SaveWorkdayEntry("user-1", workdayInput("2024-03-05"))
	if err != nil {
		t.Fatalf("SaveWorkdayEntry() error = %v", err)
	}
	if entry.Type != domain.EntryTypeWorkday {
		t.Errorf("type = %s, want WORKDAY", entry.Type)
	}

	// Same date again is a duplicate
	var dup *domain.DuplicateEntryError
	_, err = svc.SaveWorkdayEntry("user-1", workdayInput("2024-03-05"))
	if !errors.As(err, &dup) {
		t.Fatalf("resubmission error = %v, want DuplicateEntryError", err)
	}

	// The adjacent weekday succeeds
	if _, err := svc.SaveWorkdayEntry("user-1", workdayInput("2024-03-06")); err != nil {
		t.Errorf("adjacent day error = %v", err)
	}
}

func TestSaveWorkdayEntryRequiresActiveSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveWorkdayEntry("user-1", workdayInput("2024-03-05"))
	if !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("SaveWorkdayEntry() error = %v, want ErrNoActiveSession", err)
	}
}

func TestSaveWorkdayEntryDateRules(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "user-1")

	tests := []struct {
		name string
		date string
	}{
		{"outside the window", "2024-03-25"},
		{"a Saturday", "2024-03-09"},
		{"a Sunday", "2024-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveWorkdayEntry("user-1", workdayInput(tt.date))
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("SaveWorkdayEntry() error = %v, want ValidationError", err)
			}
			if len(verr.Fields["date"]) == 0 {
				t.Errorf("validation fields = %v, want message on date", verr.Fields)
			}
		})
	}
}

func TestSaveWeekendEntryDeduplicatesThePair(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "user-1")

	if _, err := svc.SaveWeekendEntry("user-1", weekendInput("2024-03-09")); err != nil {
		t.Fatalf("SaveWeekendEntry() error = %v", err)
	}

	// The other day of the same pair is still a duplicate
	var dup *domain.DuplicateEntryError
	_, err := svc.SaveWeekendEntry("user-1", weekendInput("2024-03-10"))
	if !errors.As(err, &dup) {
		t.Fatalf("same-pair submission error = %v, want DuplicateEntryError", err)
	}
	if dateutil.FormatDate(dup.PeriodStart) != "2024-03-09" {
		t.Errorf("duplicate period start = %v, want 2024-03-09", dup.PeriodStart)
	}

	// A different weekend within the window succeeds
	if _, err := svc.SaveWeekendEntry("user-1", weekendInput("2024-03-16")); err != nil {
		t.Errorf("next weekend error = %v", err)
	}
}

func TestSaveWeekendEntryRatingValidation(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "user-1")

	in := weekendInput("2024-03-09")
	in.WeeklyRating = "a5"
	_, err := svc.SaveWeekendEntry("user-1", in)

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("SaveWeekendEntry() error = %v, want ValidationError", err)
	}
	if len(verr.Fields["weekly_rating"]) == 0 {
		t.Errorf("validation fields = %v, want message on weekly_rating", verr.Fields)
	}
}

func TestStoppedSessionShortensTheWindow(t *testing.T) {
	svc, clock := newTestService(t)
	sess := startSession(t, svc, "user-1")

	// Stop on March 10, well before the planned March 21 end
	clock.now = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	if err := svc.StopSession("user-1", sess.ID); err != nil {
		t.Fatalf("StopSession() error = %v", err)
	}

	detail, err := svc.SessionByID("user-1", sess.ID)
	if err != nil {
		t.Fatalf("SessionByID() error = %v", err)
	}
	if detail.IsActive {
		t.Errorf("stopped session reported active")
	}
	if got := dateutil.FormatDate(detail.EffectiveEnd()); got != "2024-03-10" {
		t.Errorf("effective end = %s, want 2024-03-10", got)
	}

	// The schema built from the stopped session rejects dates after
	// the stop even though they precede the planned end
	schema := validate.NewWorkdaySchema(detail.MonitoringFrom, detail.EffectiveEnd())
	_, _, errs := schema.Validate(workdayInput("2024-03-15"))
	if len(errs["date"]) == 0 {
		t.Errorf("validation fields = %v, want message on date", errs)
	}
}

func TestSessionByIDDecoratesAndOrdersEntries(t *testing.T) {
	svc, _ := newTestService(t)
	sess := startSession(t, svc, "user-1")

	for _, d := range []string{"2024-03-04", "2024-03-06", "2024-03-05"} {
		if _, err := svc.SaveWorkdayEntry("user-1", workdayInput(d)); err != nil {
			t.Fatalf("SaveWorkdayEntry(%s) error = %v", d, err)
		}
	}

	detail, err := svc.SessionByID("user-1", sess.ID)
	if err != nil {
		t.Fatalf("SessionByID() error = %v", err)
	}
	if !detail.IsActive {
		t.Errorf("active session reported inactive")
	}
	if len(detail.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(detail.Entries))
	}
	for i, want := range []string{"2024-03-06", "2024-03-05", "2024-03-04"} {
		if got := dateutil.FormatDate(detail.Entries[i].Date); got != want {
			t.Errorf("entries[%d].Date = %s, want %s", i, got, want)
		}
	}

	// Another user's lookup comes back absent
	other, err := svc.SessionByID("user-2", sess.ID)
	if err != nil {
		t.Fatalf("SessionByID() for other user error = %v", err)
	}
	if other != nil {
		t.Errorf("session visible to non-owner")
	}
}

func TestSessionsListDecoration(t *testing.T) {
	svc, clock := newTestService(t)
	startSession(t, svc, "user-1")

	if _, err := svc.SaveWorkdayEntry("user-1", workdayInput("2024-03-05")); err != nil {
		t.Fatalf("SaveWorkdayEntry() error = %v", err)
	}

	sessions, err := svc.Sessions("user-1")
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Sessions() = %d, want 1", len(sessions))
	}
	if !sessions[0].IsActive || sessions[0].EntryCount != 1 {
		t.Errorf("summary = active %v count %d, want active with 1 entry", sessions[0].IsActive, sessions[0].EntryCount)
	}

	// Past the end date the same session reads as inactive
	clock.now = time.Date(2024, time.March, 22, 9, 0, 0, 0, time.UTC)
	sessions, err = svc.Sessions("user-1")
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if sessions[0].IsActive {
		t.Errorf("expired session reported active")
	}
}

func TestWeekendEntryLookupUsesCurrentWindow(t *testing.T) {
	svc, clock := newTestService(t)
	sess := startSession(t, svc, "user-1")

	// Submit on Saturday March 9, then look it up on the following
	// Monday: the most recent weekend window still finds it
	clock.now = time.Date(2024, time.March, 9, 11, 0, 0, 0, time.UTC)
	if _, err := svc.SaveWeekendEntry("user-1", weekendInput("2024-03-09")); err != nil {
		t.Fatalf("SaveWeekendEntry() error = %v", err)
	}

	clock.now = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)
	entry, err := svc.WeekendEntry("user-1", sess.ID)
	if err != nil {
		t.Fatalf("WeekendEntry() error = %v", err)
	}
	if entry == nil {
		t.Fatalf("WeekendEntry() = nil, want the Saturday entry")
	}

	// By the next Saturday the window has moved on
	clock.now = time.Date(2024, time.March, 16, 9, 0, 0, 0, time.UTC)
	entry, err = svc.WeekendEntry("user-1", sess.ID)
	if err != nil {
		t.Fatalf("WeekendEntry() error = %v", err)
	}
	if entry != nil {
		t.Errorf("WeekendEntry() found last weekend's entry in the new window")
	}
}

func TestWorkdayEntryLookup(t *testing.T) {
	svc, _ := newTestService(t)
	sess := startSession(t, svc, "user-1")

	if _, err := svc.SaveWorkdayEntry("user-1", workdayInput("2024-03-05")); err != nil {
		t.Fatalf("SaveWorkdayEntry() error = %v", err)
	}

	d := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	entry, err := svc.WorkdayEntry("user-1", sess.ID, d)
	if err != nil || entry == nil {
		t.Fatalf("WorkdayEntry() = (%v, %v), want entry", entry, err)
	}

	if _, err := svc.WorkdayEntry("user-2", sess.ID, d); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("WorkdayEntry() for non-owner error = %v, want ErrSessionNotFound", err)
	}
}

func TestAnalytics(t *testing.T) {
	svc, _ := newTestService(t)
	sess := startSession(t, svc, "user-1")

	in := workdayInput("2024-03-05")
	in.Mood = 2
	if _, err := svc.SaveWorkdayEntry("user-1", in); err != nil {
		t.Fatalf("SaveWorkdayEntry() error = %v", err)
	}
	in = workdayInput("2024-03-06")
	in.Mood = 4
	if _, err := svc.SaveWorkdayEntry("user-1", in); err != nil {
		t.Fatalf("SaveWorkdayEntry() error = %v", err)
	}
	if _, err := svc.SaveWeekendEntry("user-1", weekendInput("2024-03-09")); err != nil {
		t.Fatalf("SaveWeekendEntry() error = %v", err)
	}

	summary, err := svc.Analytics("user-1", sess.ID)
	if err != nil {
		t.Fatalf("Analytics() error = %v", err)
	}
	if summary.WorkdayCount != 2 || summary.WeekendCount != 1 {
		t.Errorf("counts = %d workday, %d weekend, want 2 and 1", summary.WorkdayCount, summary.WeekendCount)
	}
	if got := summary.Means["mood"]; got != 3.0 {
		t.Errorf("mean mood = %v, want 3.0", got)
	}
	if got := summary.WeeklyRatings[domain.RatingClear]; got != 1 {
		t.Errorf("weekly ratings = %v, want one %q", summary.WeeklyRatings, domain.RatingClear)
	}
	if len(summary.Series) != 2 {
		t.Fatalf("series length = %d, want 2", len(summary.Series))
	}
	if !summary.Series[0].Date.Before(summary.Series[1].Date) {
		t.Errorf("series not in chronological order")
	}

	if _, err := svc.Analytics("user-2", sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Analytics() for non-owner error = %v, want ErrSessionNotFound", err)
	}
}
