package validate

import (
	"time"

	"github.com/mweber/meddiary/internal/dateutil"
	"github.com/mweber/meddiary/internal/domain"
)

// WorkdayInput is the raw workday questionnaire submission
type WorkdayInput struct {
	Date string `json:"date"`

	Attention     int `json:"attention"`
	Participation int `json:"participation"`
	Homework      int `json:"homework"`
	Organisation  int `json:"organisation"`
	Tiredness     int `json:"tiredness"`
	Sleep         int `json:"sleep"`
	Concentration int `json:"concentration"`
	Mood          int `json:"mood"`
	Irritability  int `json:"irritability"`
	Motivation    int `json:"motivation"`
	Hobby         int `json:"hobby"`
	SleepQuality  int `json:"sleep_quality"`
	Asleep        int `json:"asleep"`
	Morning       int `json:"morning"`
	Appetite      int `json:"appetite"`

	Comment string `json:"comment"`
}

// WorkdaySchema validates workday submissions against one session's
// monitoring window. It can only be built from a window, so the range
// check always uses the session's own bounds.
type WorkdaySchema struct {
	start time.Time
	end   time.Time
}

// NewWorkdaySchema builds a schema for the window [start, end]
func NewWorkdaySchema(start, end time.Time) *WorkdaySchema {
	return &WorkdaySchema{start: dateutil.NormalizeDay(start), end: dateutil.NormalizeDay(end)}
}

// Validate checks the submission and, when it passes, returns the
// normalized date and the answers payload to persist.
func (s *WorkdaySchema) Validate(in WorkdayInput) (time.Time, *domain.WorkdayAnswers, FieldErrors) {
	errs := FieldErrors{}

	date, err := dateutil.ParseDate(in.Date)
	switch {
	case err != nil:
		errs.Add("date", "date is required")
	case dateutil.IsWeekend(date):
		errs.Add("date", "date must be a weekday")
	case !dateutil.WithinRange(date, s.start, s.end):
		errs.Add("date", "date must be within the monitoring period")
	}

	answers := &domain.WorkdayAnswers{
		Attention:     in.Attention,
		Participation: in.Participation,
		Homework:      in.Homework,
		Organisation:  in.Organisation,
		Tiredness:     in.Tiredness,
		Sleep:         in.Sleep,
		Concentration: in.Concentration,
		Mood:          in.Mood,
		Irritability:  in.Irritability,
		Motivation:    in.Motivation,
		Hobby:         in.Hobby,
		SleepQuality:  in.SleepQuality,
		Asleep:        in.Asleep,
		Morning:       in.Morning,
		Appetite:      in.Appetite,
		Comment:       in.Comment,
	}

	ratings := answers.Ratings()
	for _, field := range domain.WorkdayRatingFields {
		if v := ratings[field]; v < 1 || v > 5 {
			errs.Add(field, "please choose a value from 1 to 5")
		}
	}

	if !errs.Empty() {
		return time.Time{}, nil, errs
	}
	return date, answers, errs
}
