package validate

import (
	"strings"
	"time"

	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/domain"
)

// WeekendInput is the raw weekend questionnaire submission
type WeekendInput struct {
	Date string `json:"date"`

	WhatWasBetter    string `json:"what_was_better"`
	WhatWasDifficult string `json:"what_was_difficult"`
	SideEffects      string `json:"side_effects"`
	Concentration    string `json:"concentration"`
	StartingTasks    string `json:"starting_tasks"`
	LessTired        string `json:"less_tired"`
	MedicationHelps  string `json:"medication_helps"`
	WeeklyRating     string `json:"weekly_rating"`
	Comment          string `json:"comment"`
}

// WeekendSchema validates weekend submissions against one session's
// monitoring window
type WeekendSchema struct {
	start time.Time
	end   time.Time
}

// NewWeekendSchema builds a schema for the window [start, end]
func NewWeekendSchema(start, end time.Time) *WeekendSchema {
	return &WeekendSchema{start: dateutil.NormalizeDay(start), end: dateutil.NormalizeDay(end)}
}

// Validate checks the submission and, when it passes, returns the
// normalized date and the answers payload to persist.
func (s *WeekendSchema) Validate(in WeekendInput) (time.Time, *domain.WeekendAnswers, FieldErrors) {
	errs := FieldErrors{}

	date, err := dateutil.ParseDate(in.Date)
	switch {
	case err != nil:
		errs.Add("date", "date is required")
	case !dateutil.IsWeekend(date):
		errs.Add("date", "date must be a Saturday or Sunday")
	case !dateutil.WithinRange(date, s.start, s.end):
		errs.Add("date", "date must be within the monitoring period")
	}

	required := []struct {
		field string
		value string
	}{
		{"what_was_better", in.WhatWasBetter},
		{"what_was_difficult", in.WhatWasDifficult},
		{"side_effects", in.SideEffects},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs.Add(r.field, "this field is required")
		}
	}

	yesNo := []struct {
		field string
		value string
	}{
		{"concentration", in.Concentration},
		{"starting_tasks", in.StartingTasks},
		{"less_tired", in.LessTired},
	}
	for _, q := range yesNo {
		if !oneOf(q.value, domain.AnswerYes, domain.AnswerNo) {
			errs.Add(q.field, "please choose an option")
		}
	}

	if !oneOf(in.MedicationHelps, domain.AnswerYes, domain.AnswerNo, domain.AnswerUnknown) {
		errs.Add("medication_helps", "please choose an option")
	}

	if !oneOf(in.WeeklyRating,
		domain.RatingNoImprovement, domain.RatingSlight,
		domain.RatingClear, domain.RatingVeryGood) {
		errs.Add("weekly_rating", "please choose a rating")
	}

	if !errs.Empty() {
		return time.Time{}, nil, errs
	}

	return date, &domain.WeekendAnswers{
		WhatWasBetter:    in.WhatWasBetter,
		WhatWasDifficult: in.WhatWasDifficult,
		SideEffects:      in.SideEffects,
		Concentration:    in.Concentration,
		StartingTasks:    in.StartingTasks,
		LessTired:        in.LessTired,
		MedicationHelps:  in.MedicationHelps,
		WeeklyRating:     in.WeeklyRating,
		Comment:          in.Comment,
	}, errs
}
