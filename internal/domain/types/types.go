// Package types contains the JSON shapes returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/model"
)

// Feedback is one rendered verdict line.
type Feedback struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Tag      string `json:"tag"`
}

// Group is a titled list of verdict lines.
type Group struct {
	Title    string     `json:"title"`
	Severity string     `json:"severity"`
	Tag      string     `json:"tag"`
	Feedback []Feedback `json:"feedback"`
}

// Verdict is a full validation result.
type Verdict struct {
	Severity string  `json:"severity"`
	Tag      string  `json:"tag"`
	Passed   bool    `json:"passed"`
	Groups   []Group `json:"groups"`
}

// Submission is the API view of a stored submission.
type Submission struct {
	ID          string    `json:"id"`
	SubmitterID string    `json:"submitter_id"`
	AccountName string    `json:"account_name"`
	Tier        int       `json:"tier"`
	Role        string    `json:"role,omitempty"`
	LogURL      string    `json:"log_url"`
	EncounterID int       `json:"encounter_id,omitempty"`
	Pool        string    `json:"pool,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Verdict     *Verdict  `json:"verdict,omitempty"`
}

// Accepted acknowledges a queued submission.
type Accepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// FromGroup converts a feedback group.
func FromGroup(g *feedback.Group) Group {
	out := Group{
		Title:    g.Title(),
		Severity: g.Severity().String(),
		Tag:      feedback.Tag(g.Severity()),
		Feedback: make([]Feedback, 0, g.Len()),
	}
	for _, fb := range g.Items() {
		out.Feedback = append(out.Feedback, Feedback{
			Message:  fb.Message(),
			Severity: fb.Severity().String(),
			Tag:      feedback.Tag(fb.Severity()),
		})
	}
	return out
}

// FromCollection converts a verdict. A nil collection yields nil.
func FromCollection(c *feedback.Collection) *Verdict {
	if c == nil {
		return nil
	}
	groups := c.Groups()
	out := &Verdict{
		Severity: c.Severity().String(),
		Tag:      feedback.Tag(c.Severity()),
		Passed:   c.Passed(),
		Groups:   make([]Group, 0, len(groups)),
	}
	for _, g := range groups {
		out.Groups = append(out.Groups, FromGroup(g))
	}
	return out
}

// FromSubmission converts a stored submission.
func FromSubmission(s model.Submission) Submission {
	return Submission{
		ID:          s.ID,
		SubmitterID: s.SubmitterID,
		AccountName: s.AccountName,
		Tier:        s.Tier,
		Role:        s.Role,
		LogURL:      s.LogURL,
		EncounterID: s.EncounterID,
		Pool:        string(s.Pool),
		Status:      string(s.Status),
		Message:     s.Message,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Verdict:     FromCollection(s.Verdict),
	}
}

// FromSubmissions converts a list, never returning nil.
func FromSubmissions(subs []model.Submission) []Submission {
	out := make([]Submission, 0, len(subs))
	for _, s := range subs {
		out = append(out, FromSubmission(s))
	}
	return out
}
