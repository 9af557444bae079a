package validate

import (
	"strings"
	"time"

	"github.com/mweber/meddiary/internal/dateutil"
)

// SessionInput is the raw form data for starting a monitoring session.
// Dates arrive as YYYY-MM-DD strings and intake times as HH:MM.
type SessionInput struct {
	MedicationName string   `json:"medication_name"`
	Dosage         string   `json:"dosage"`
	IntakeTimes    []string `json:"intake_times"`
	MonitoringFrom string   `json:"monitoring_from"`
	MonitoringTo   string   `json:"monitoring_to"`
}

// Session checks the session form: non-empty text fields, at least one
// parseable intake time, two parseable dates with the end strictly
// after the start. Returns the normalized date range when valid.
func Session(in SessionInput) (from, to time.Time, errs FieldErrors) {
	errs = FieldErrors{}

	if strings.TrimSpace(in.MedicationName) == "" {
		errs.Add("medication_name", "medication name is required")
	}
	if strings.TrimSpace(in.Dosage) == "" {
		errs.Add("dosage", "dosage is required")
	}

	if len(in.IntakeTimes) == 0 {
		errs.Add("intake_times", "at least one intake time is required")
	}
	for _, it := range in.IntakeTimes {
		if _, err := time.Parse("15:04", it); err != nil {
			errs.Add("intake_times", "intake time must be HH:MM")
			break
		}
	}

	from, errFrom := dateutil.ParseDate(in.MonitoringFrom)
	if errFrom != nil {
		errs.Add("monitoring_from", "start date is required")
	}
	to, errTo := dateutil.ParseDate(in.MonitoringTo)
	if errTo != nil {
		errs.Add("monitoring_to", "end date is required")
	}

	if errFrom == nil && errTo == nil && !to.After(from) {
		errs.Add("monitoring_to", "end date must be after the start date")
	}

	return from, to, errs
}
