// Package edit tracks unsaved cell edits (grades, attendance marks) made across many students at once
// and reconciles them against the persisted records in one batch.
package edit

import "strings"

const keySeparator = "-"

// Key identifies one (subject, context) cell being edited.
type Key string

// Context is the non-subject axis of an edited cell, e.g. (semester, aspect, sub-aspect) for a grade
// or (date) for an attendance mark.
type Context []string

// Normalize trims every part and drops trailing empty parts, so an absent optional part
// (nil, "", whitespace) compares equal to a context that never had it.
// It is the only matching rule: record loading, key derivation and saving all go through it.
func (c Context) Normalize() Context {
	out := make(Context, len(c))
	for i, p := range c {
		out[i] = strings.TrimSpace(p)
	}
	n := len(out)
	for n > 0 && out[n-1] == "" {
		n--
	}
	return out[:n]
}

// Equal compares two contexts after normalisation.
func (c Context) Equal(other Context) bool {
	a, b := c.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c Context) String() string {
	return strings.Join(c.Normalize(), keySeparator)
}

// Optional returns the context part for an optional value; nil means "no value".
func Optional(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// DeriveKey maps a subject and its context parts to a stable key.
// An empty subject id is a programming error.
func DeriveKey(subjectID string, parts ...string) Key {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		panic("edit: DeriveKey called with an empty subject id")
	}
	return Key(subjectID + keySeparator + Context(parts).String())
}
