package model

import "time"

// Run is a finished pipeline invocation: the request parameters plus every
// lead it produced. Created exactly once per invocation, after all
// candidates finish processing, and immutable thereafter. Owned by the
// requesting user's archive.
type Run struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Date      time.Time `json:"date"`
	Keywords  string    `json:"keywords"`
	Locations string    `json:"locations"`
	LeadCount int       `json:"leadCount"`
	Leads     []Lead    `json:"leads"`
}

// RunSummary is a Run without its lead records, for listings.
type RunSummary struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Keywords  string    `json:"keywords"`
	Locations string    `json:"locations"`
	LeadCount int       `json:"leadCount"`
}

// Summary returns the listing view of the run.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:        r.ID,
		Date:      r.Date,
		Keywords:  r.Keywords,
		Locations: r.Locations,
		LeadCount: r.LeadCount,
	}
}
