package domain

import (
	"encoding/json"
	"time"
)

// EntryType distinguishes the two questionnaire kinds
type EntryType string

const (
	EntryTypeWorkday EntryType = "WORKDAY"
	EntryTypeWeekend EntryType = "WEEKEND"
)

// User represents an account as seen by the diary core
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MonitoringSession is one medication-monitoring configuration.
// It is created locked and its fields never change afterwards; the
// only later mutation is setting StoppedAt, exactly once.
type MonitoringSession struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	MedicationName string     `json:"medication_name"`
	Dosage         string     `json:"dosage"`
	IntakeTimes    []string   `json:"intake_times"`
	MonitoringFrom time.Time  `json:"monitoring_from"`
	MonitoringTo   time.Time  `json:"monitoring_to"`
	IsLocked       bool       `json:"is_locked"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsActive reports whether the session is accepting entries on the
// given day: locked, not stopped, and not yet past its end date.
// Derived at read time, never stored.
func (s *MonitoringSession) IsActive(today time.Time) bool {
	return s.IsLocked && s.StoppedAt == nil && !s.MonitoringTo.Before(today)
}

// EffectiveEnd is the last day entries may be dated: the stop day if
// the session was stopped early, else the planned end date.
func (s *MonitoringSession) EffectiveEnd() time.Time {
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return s.MonitoringTo
}

// Entry is one submitted questionnaire, read-only once created
type Entry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EntryType       `json:"type"`
	Date      time.Time       `json:"date"`
	Answers   json.RawMessage `json:"answers"`
	CreatedAt time.Time       `json:"created_at"`
}

// SessionSummary decorates a session for list views
type SessionSummary struct {
	MonitoringSession
	IsActive   bool `json:"is_active"`
	EntryCount int  `json:"entry_count"`
}

// SessionDetail decorates a session with its full entry history,
// newest entry first
type SessionDetail struct {
	MonitoringSession
	IsActive bool    `json:"is_active"`
	Entries  []Entry `json:"entries"`
}

// WorkdayAnswers is the payload of a WORKDAY entry. Every rated field
// is an integer 1-5.
type WorkdayAnswers struct {
	// Attention and school
	Attention     int `json:"attention"`
	Participation int `json:"participation"`
	Homework      int `json:"homework"`
	Organisation  int `json:"organisation"`
	// Energy and fatigue
	Tiredness     int `json:"tiredness"`
	Sleep         int `json:"sleep"`
	Concentration int `json:"concentration"`
	// Mood
	Mood         int `json:"mood"`
	Irritability int `json:"irritability"`
	Motivation   int `json:"motivation"`
	Hobby        int `json:"hobby"`
	// Sleep and appetite
	SleepQuality int `json:"sleep_quality"`
	Asleep       int `json:"asleep"`
	Morning      int `json:"morning"`
	Appetite     int `json:"appetite"`

	Comment string `json:"comment,omitempty"`
}

// Weekend enumeration values
const (
	AnswerYes     = "yes"
	AnswerNo      = "no"
	AnswerUnknown = "unknown"

	RatingNoImprovement = "no-improvement"
	RatingSlight        = "slight"
	RatingClear         = "clear"
	RatingVeryGood      = "very-good"
)

// WeekendAnswers is the payload of a WEEKEND entry
type WeekendAnswers struct {
	WhatWasBetter    string `json:"what_was_better"`
	WhatWasDifficult string `json:"what_was_difficult"`
	SideEffects      string `json:"side_effects"`
	Concentration    string `json:"concentration"`
	StartingTasks    string `json:"starting_tasks"`
	LessTired        string `json:"less_tired"`
	MedicationHelps  string `json:"medication_helps"`
	WeeklyRating     string `json:"weekly_rating"`
	Comment          string `json:"comment,omitempty"`
}

// WorkdayRatingFields lists the rated workday fields in form order,
// used by validation and analytics
var WorkdayRatingFields = []string{
	"attention", "participation", "homework", "organisation",
	"tiredness", "sleep", "concentration",
	"mood", "irritability", "motivation", "hobby",
	"sleep_quality", "asleep", "morning", "appetite",
}

// Ratings returns the rated fields keyed by field name
func (a *WorkdayAnswers) Ratings() map[string]int {
	return map[string]int{
		"attention":     a.Attention,
		"participation": a.Participation,
		"homework":      a.Homework,
		"organisation":  a.Organisation,
		"tiredness":     a.Tiredness,
		"sleep":         a.Sleep,
		"concentration": a.Concentration,
		"mood":          a.Mood,
		"irritability":  a.Irritability,
		"motivation":    a.Motivation,
		"hobby":         a.Hobby,
		"sleep_quality": a.SleepQuality,
		"asleep":        a.Asleep,
		"morning":       a.Morning,
		"appetite":      a.Appetite,
	}
}

// AnalyticsSummary holds the per-session aggregates the presentation
// layer charts from: arithmetic means of the workday sliders, the
// per-day series, and weekend rating counts
type AnalyticsSummary struct {
	SessionID     string             `json:"session_id"`
	WorkdayCount  int                `json:"workday_count"`
	WeekendCount  int                `json:"weekend_count"`
	Means         map[string]float64 `json:"means"`
	Series        []WorkdayPoint     `json:"series"`
	WeeklyRatings map[string]int     `json:"weekly_ratings"`
}

// WorkdayPoint is one dated set of slider values
type WorkdayPoint struct {
	Date    time.Time      `json:"date"`
	Ratings map[string]int `json:"ratings"`
}
