// Package validate holds the per-entry-type rule sets. Schemas return
// field-keyed messages rather than aborting on the first failure, so
// form pages can annotate every offending input at once.
package validate

// FieldErrors maps a field name to its human-readable messages
type FieldErrors map[string][]string

// Add appends a message for a field
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Empty reports whether no field failed
func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
