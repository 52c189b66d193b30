package campaign

import "time"

// Status of a campaign. Open -> Closed is the only transition and Closed is
// terminal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Campaign is one time-boxed drawing. A campaign whose closes_at has passed
// stops accepting joins even while Status is still Open; closing is an
// explicit idempotent action, not a timer.
type Campaign struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	WinnerCount     int       `json:"winner_count"`
	OpensAt         time.Time `json:"opens_at"`
	ClosesAt        time.Time `json:"closes_at"`
	Status          Status    `json:"status"`
	AnnouncementRef string    `json:"announcement_ref,omitempty"`
}

// Joinable reports whether the campaign accepts entries at the given instant.
func (c Campaign) Joinable(now time.Time) bool {
	return c.Status == StatusOpen && !now.After(c.ClosesAt)
}
