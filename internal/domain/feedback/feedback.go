// Package feedback holds the severity-ranked message containers every check
// reports into.
package feedback

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity ranks a feedback entry. The zero value is not a valid severity.
type Severity int

// Severities in ascending order.
const (
	Success Severity = iota + 1
	Warning
	Error
)

// String returns the lower-case name used in logs and JSON.
func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < Success || s > Error {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeverity, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses the names produced by String.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "success":
		return Success, nil
	case "warning":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, v)
}

// Max returns the higher of two severities.
func Max(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}

// Feedback is a single immutable message.
type Feedback struct {
	message  string
	severity Severity
}

// New creates a feedback entry.
func New(message string, severity Severity) Feedback {
	return Feedback{message: message, severity: severity}
}

// Successf, Warningf and Errorf format a message at the given severity.
func Successf(format string, args ...any) Feedback { return New(fmt.Sprintf(format, args...), Success) }
func Warningf(format string, args ...any) Feedback { return New(fmt.Sprintf(format, args...), Warning) }
func Errorf(format string, args ...any) Feedback   { return New(fmt.Sprintf(format, args...), Error) }

// Message returns the text.
func (f Feedback) Message() string { return f.message }

// Severity returns the rank.
func (f Feedback) Severity() Severity { return f.severity }

type feedbackJSON struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// MarshalJSON implements json.Marshaler.
func (f Feedback) MarshalJSON() ([]byte, error) {
	return json.Marshal(feedbackJSON{Message: f.message, Severity: f.severity})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Feedback) UnmarshalJSON(b []byte) error {
	var v feedbackJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = New(v.Message, v.Severity)
	return nil
}

// Group is a titled, ordered list of feedback. Its severity is the maximum
// over its entries and Success when empty.
type Group struct {
	title    string
	items    []Feedback
	severity Severity
}

// NewGroup returns an empty group. Always build a fresh group per check;
// groups are never shared between evaluations.
func NewGroup(title string) *Group {
	return &Group{title: title, severity: Success}
}

// Add appends feedback and raises the group severity if needed.
func (g *Group) Add(items ...Feedback) {
	for _, fb := range items {
		g.items = append(g.items, fb)
		g.severity = Max(g.severity, fb.severity)
	}
}

// Title returns the group heading.
func (g *Group) Title() string { return g.title }

// Severity returns the maximum severity of the group.
func (g *Group) Severity() Severity { return g.severity }

// Len returns the number of entries.
func (g *Group) Len() int { return len(g.items) }

// Items returns a copy of the entries in insertion order.
func (g *Group) Items() []Feedback {
	out := make([]Feedback, len(g.items))
	copy(out, g.items)
	return out
}

type groupJSON struct {
	Title    string     `json:"title"`
	Severity Severity   `json:"severity"`
	Feedback []Feedback `json:"feedback"`
}

// MarshalJSON implements json.Marshaler.
func (g *Group) MarshalJSON() ([]byte, error) {
	items := g.items
	if items == nil {
		items = []Feedback{}
	}
	return json.Marshal(groupJSON{Title: g.title, Severity: g.severity, Feedback: items})
}

// UnmarshalJSON rebuilds the group; the stored severity is ignored and
// derived again from the entries.
func (g *Group) UnmarshalJSON(b []byte) error {
	var v groupJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*g = *NewGroup(v.Title)
	g.Add(v.Feedback...)
	return nil
}

// Collection is one full verdict: an ordered list of groups.
type Collection struct {
	groups []*Group
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// AddGroup appends a group. Groups are held by reference, so entries added
// to the group afterwards are reflected in the collection severity.
func (c *Collection) AddGroup(g *Group) {
	if g == nil {
		return
	}
	c.groups = append(c.groups, g)
}

// Groups returns the groups in insertion order.
func (c *Collection) Groups() []*Group {
	out := make([]*Group, len(c.groups))
	copy(out, c.groups)
	return out
}

// Severity is the maximum over all groups, Success when empty.
func (c *Collection) Severity() Severity {
	sev := Success
	for _, g := range c.groups {
		sev = Max(sev, g.Severity())
	}
	return sev
}

// Passed reports whether no group carries an Error. Warnings never fail a
// verdict on their own.
func (c *Collection) Passed() bool {
	return c.Severity() < Error
}

type collectionJSON struct {
	Severity Severity `json:"severity"`
	Groups   []*Group `json:"groups"`
}

// MarshalJSON implements json.Marshaler.
func (c *Collection) MarshalJSON() ([]byte, error) {
	groups := c.groups
	if groups == nil {
		groups = []*Group{}
	}
	return json.Marshal(collectionJSON{Severity: c.Severity(), Groups: groups})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Collection) UnmarshalJSON(b []byte) error {
	var v collectionJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	c.groups = nil
	for _, g := range v.Groups {
		c.AddGroup(g)
	}
	return nil
}
