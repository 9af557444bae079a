package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors for the recoverable business-rule failures. The API
// layer classifies them with errors.Is; none of them abort a request
// beyond the single response they produce.
var (
	// ErrUnauthorized means no authenticated identity; fatal for the
	// whole operation
	ErrUnauthorized = errors.New("authentication required")

	// ErrSessionConflict means the user already has an active session
	ErrSessionConflict = errors.New("an active monitoring session already exists")

	// ErrSessionNotFound covers stop attempts on a session that is not
	// the caller's, not locked, or already stopped
	ErrSessionNotFound = errors.New("session not found or already stopped")

	// ErrNoActiveSession means an entry was submitted with no
	// qualifying active session
	ErrNoActiveSession = errors.New("no active monitoring session")
)

// ValidationError carries field-keyed messages so the caller can
// render feedback next to each input
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// DuplicateEntryError reports the period that already has an entry
type DuplicateEntryError struct {
	Type        EntryType
	PeriodStart time.Time
}

func (e *DuplicateEntryError) Error() string {
	day := e.PeriodStart.Format("2006-01-02")
	if e.Type == EntryTypeWeekend {
		return fmt.Sprintf("an entry already exists for the weekend starting %s", day)
	}
	return fmt.Sprintf("an entry already exists for %s", day)
}
